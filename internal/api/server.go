package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"prodcons/internal/events"
	"prodcons/internal/logger"
	"prodcons/internal/pipeline"
	"prodcons/internal/shutdown"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr     string
	engine   *pipeline.Engine
	eventBus *events.Bus

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string, engine *pipeline.Engine) *Server {
	return &Server{
		addr:      addr,
		engine:    engine,
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// SetEventBus はWebSocketへ中継するイベントバスを設定する
func (s *Server) SetEventBus(bus *events.Bus) {
	s.eventBus = bus
}

// Handler はルーティング済みのハンドラを返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)
	mux.HandleFunc("/api/presets", s.handlePresets)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.engine.Metrics().Registry(), promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctxが終わるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドで状態とイベントを配信
	go s.broadcastLoop(ctx)
	if s.eventBus != nil {
		go s.forwardEvents(ctx, s.eventBus.Subscribe())
	}

	logger.Info("API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Running   bool           `json:"running"`
	Name      string         `json:"name,omitempty"`
	RunID     string         `json:"run_id,omitempty"`
	Consumers int            `json:"consumers"`
	QueueLen  int            `json:"queue_len"`
	QueueCap  int            `json:"queue_cap"`
	Produced  uint64         `json:"produced"`
	Consumed  uint64         `json:"consumed"`
	Dead      uint64         `json:"deadlettered"`
	Flags     shutdown.Flags `json:"flags"`
}

func (s *Server) status() StatusResponse {
	config := s.engine.Config()
	m := s.engine.Metrics()
	return StatusResponse{
		Running:   s.engine.IsRunning(),
		Name:      config.Name,
		RunID:     s.engine.RunID(),
		Consumers: config.Consumers,
		QueueLen:  s.engine.QueueLen(),
		QueueCap:  config.QueueCapacity,
		Produced:  m.Produced(),
		Consumed:  m.Consumed(),
		Dead:      m.DeadLettered(),
		Flags:     s.engine.State().Flags(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.engine.Metrics().Snapshot())
}

// ShutdownRequest はシャットダウン要求
type ShutdownRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ShutdownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	mode, err := shutdown.ParseMode(req.Mode)
	if err != nil || mode == shutdown.ModeNone {
		http.Error(w, "mode must be terminate or interrupt", http.StatusBadRequest)
		return
	}

	if err := s.engine.Coordinator().Trigger(mode); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Info("Shutdown requested via API: %s", mode)

	s.writeJSON(w, map[string]any{
		"status": "requested",
		"mode":   mode.String(),
		"flags":  s.engine.State().Flags(),
	})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Items       int    `json:"items"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range pipeline.ListPresets() {
		c, _ := pipeline.GetPreset(name)
		presets = append(presets, PresetInfo{Name: c.Name, Description: c.Description, Items: c.Items})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// 接続直後に現在の状態を送る
	if data, err := json.Marshal(map[string]any{"type": "status", "status": s.status()}); err == nil {
		_ = websocket.Message.Send(ws, string(data))
	}

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

// ClientCount は接続中のWebSocketクライアント数を返す
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) forwardEvents(ctx context.Context, ch <-chan events.Event) {
	defer s.eventBus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": e,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.engine.IsRunning() {
				continue
			}
			s.broadcast(map[string]any{
				"type":   "status",
				"status": s.status(),
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON: %v", err)
	}
}
