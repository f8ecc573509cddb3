package logger

import (
	"sync"
)

// entry はチャネル内の要素。stopは停止センチネル
type entry struct {
	rec  Record
	stop bool
}

// Channel は複数ワーカーから1つのListenerへレコードを運ぶ無制限FIFO
//
// Sendはブロックしない。Receiveはレコードか停止センチネルが届くまでブロックする。
type Channel struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []entry
	closed  bool
	sent    uint64
	dropped uint64
}

// Ensure Channel implements Handler
var _ Handler = (*Channel)(nil)

// NewChannel は新しいChannelを作成する
func NewChannel() *Channel {
	c := &Channel{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Handle はSendを呼ぶ（Handlerの実装）
func (c *Channel) Handle(r Record) {
	c.Send(r)
}

// Send はレコードを末尾に追加する。Close後のレコードは破棄してfalseを返す
func (c *Channel) Send(r Record) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.dropped++
		return false
	}
	c.buf = append(c.buf, entry{rec: r})
	c.sent++
	c.cond.Signal()
	return true
}

// Close は停止センチネルを一度だけ追加する
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.buf = append(c.buf, entry{stop: true})
	c.cond.Broadcast()
}

// Receive は先頭のレコードを取り出す。停止センチネルならokはfalse
func (c *Channel) Receive() (r Record, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.buf) == 0 {
		c.cond.Wait()
	}

	e := c.buf[0]
	c.buf[0] = entry{}
	c.buf = c.buf[1:]
	if e.stop {
		return Record{}, false
	}
	return e.rec, true
}

// Len はキュー内の要素数を返す
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Sent は受け付けたレコード数を返す
func (c *Channel) Sent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Dropped はClose後に破棄されたレコード数を返す
func (c *Channel) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}
