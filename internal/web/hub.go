package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Frame is one websocket message to the browser. The client switches on
// Type and swaps the HTML into the matching slot.
type Frame struct {
	Type   string `json:"type"` // list | thread | close | typing | theme | feed | toast
	ChatID string `json:"chat_id,omitempty"`
	HTML   string `json:"html,omitempty"`
	Typing bool   `json:"typing,omitempty"`
	Theme  string `json:"theme,omitempty"`
	Unread int    `json:"unread,omitempty"`
	Toast  *Toast `json:"toast,omitempty"`
}

type Toast struct {
	ChatID  string `json:"chat_id"`
	Sender  string `json:"sender_name"`
	Message string `json:"message"`
}

// writeFrame JSON-encodes without HTML escaping so fragment markup
// arrives verbatim.
func writeFrame(conn *websocket.Conn, f Frame) error {
	w, err := conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return err
	}
	return w.Close()
}

// hub fans frames out to every connected browser tab. The chat state
// lives elsewhere; the hub only moves rendered fragments.
type hub struct {
	mu     sync.RWMutex
	conns  map[*websocket.Conn]struct{}
	connMu map[*websocket.Conn]*sync.Mutex // per-connection write locks
	wg     sync.WaitGroup

	// bootstrap produces the frames a fresh connection needs to catch up.
	bootstrap func() []Frame
}

func newHub() *hub {
	return &hub{
		conns:  map[*websocket.Conn]struct{}{},
		connMu: map[*websocket.Conn]*sync.Mutex{},
	}
}

func (h *hub) broadcast(f Frame) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		h.mu.RLock()
		mu := h.connMu[c]
		h.mu.RUnlock()
		if mu == nil {
			continue
		}
		mu.Lock()
		_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
		_ = writeFrame(c, f)
		mu.Unlock()
	}
}

// closeAll force-closes all active connections (used during shutdown).
func (h *hub) closeAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		h.mu.RLock()
		mu := h.connMu[c]
		h.mu.RUnlock()
		if mu != nil {
			mu.Lock()
			_ = c.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"))
			mu.Unlock()
		}
	}
}

// wait blocks until all websocket handler goroutines have finished.
func (h *hub) wait() {
	h.wg.Wait()
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin:      func(r *http.Request) bool { return true },
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	mu := &sync.Mutex{}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.connMu[conn] = mu
	h.mu.Unlock()

	if h.bootstrap != nil {
		for _, f := range h.bootstrap() {
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = writeFrame(conn, f)
			mu.Unlock()
		}
	}

	ticker := time.NewTicker(20 * time.Second)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					mu.Unlock()
					return
				}
				mu.Unlock()
			case <-done:
				return
			}
		}
	}()

	h.wg.Add(1)
	go func() {
		defer func() {
			close(done)
			h.mu.Lock()
			delete(h.conns, conn)
			delete(h.connMu, conn)
			h.mu.Unlock()
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			mu.Unlock()
			h.wg.Done()
		}()
		// Mutations arrive over HTTP; the read loop only keeps the
		// connection alive and notices the close.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			if _, _, err := conn.ReadMessage(); err != nil {
				log.Debug().Err(err).Msg("[web] websocket closed")
				return
			}
		}
	}()
}
