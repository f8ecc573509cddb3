package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"prodcons/internal/events"
	"prodcons/internal/pipeline"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	engine := pipeline.New(pipeline.BasicPreset())
	s := NewServer("127.0.0.1:0", engine)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHandleStatus(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if status.Running {
		t.Error("expected engine not running")
	}
	if status.Name != "basic" {
		t.Errorf("expected name 'basic', got '%s'", status.Name)
	}
	if status.Consumers != 2 || status.QueueCap != 3 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/api/status", "/api/metrics", "/api/presets"} {
		resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader("{}"))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(ts.URL + "/api/shutdown")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("/api/shutdown GET: expected 405, got %d", resp.StatusCode)
	}
}

func TestHandleMetrics(t *testing.T) {
	s, ts := newTestServer(t)
	s.engine.Metrics().RecordProduced()

	resp, err := http.Get(ts.URL + "/api/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var snap map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if snap["produced"] != float64(1) {
		t.Errorf("expected produced 1, got %v", snap["produced"])
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	s.engine.Metrics().RecordDeadLettered()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"prodcons_items_deadlettered_total 1", "prodcons_queue_depth"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestHandleShutdown(t *testing.T) {
	s, ts := newTestServer(t)

	post := func(body string) int {
		resp, err := http.Post(ts.URL+"/api/shutdown", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(`{"mode":"hup"}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown mode, got %d", code)
	}
	if code := post(`{"mode":""}`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty mode, got %d", code)
	}
	if code := post(`not json`); code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad body, got %d", code)
	}

	if code := post(`{"mode":"terminate"}`); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	flags := s.engine.State().Flags()
	if !flags.StopProduction || flags.WriteDeadLetter {
		t.Errorf("unexpected flags after terminate: %+v", flags)
	}

	if code := post(`{"mode":"interrupt"}`); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !s.engine.State().WriteDeadLetter() {
		t.Error("expected write-deadletter after interrupt")
	}
}

func TestHandlePresets(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/presets")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var presets []PresetInfo
	if err := json.NewDecoder(resp.Body).Decode(&presets); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(presets) != len(pipeline.ListPresets()) {
		t.Errorf("expected %d presets, got %d", len(pipeline.ListPresets()), len(presets))
	}
}

func TestWebSocketForwardsEvents(t *testing.T) {
	s, ts := newTestServer(t)
	bus := events.NewBus()
	s.SetEventBus(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.forwardEvents(ctx, bus.Subscribe())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()
	_ = ws.SetDeadline(time.Now().Add(2 * time.Second))

	var msg string
	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !strings.Contains(msg, `"type":"status"`) {
		t.Errorf("expected initial status message, got %s", msg)
	}

	bus.Publish(events.NewDeadLetterModeEvent("interrupt"))

	if err := websocket.Message.Receive(ws, &msg); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if !strings.Contains(msg, `"deadletter_mode"`) {
		t.Errorf("expected forwarded event, got %s", msg)
	}
	if s.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", s.ClientCount())
	}
}
