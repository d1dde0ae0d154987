package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ZaguanLabs/lingoflow"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingEvery  = 25 * time.Second
	wsReadLimit  = 8 << 20
	wsCloseGrace = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Inbound is a client message on a job socket.
type Inbound struct {
	Type string `json:"type"` // "submit", "cancel" or "ping"
	// Payload is the raw message, for the caller to decode a submission.
	Payload json.RawMessage `json:"-"`
}

// Socket carries job events to a websocket client and reads its control
// messages. Writes are serialized; a ping is sent periodically.
type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// Upgrade switches the request to a websocket.
func Upgrade(w http.ResponseWriter, r *http.Request) (*Socket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewSocket(conn), nil
}

// NewSocket wraps an established connection and starts its ping loop.
func NewSocket(conn *websocket.Conn) *Socket {
	s := &Socket{conn: conn, done: make(chan struct{})}

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	go s.pingLoop()
	return s
}

func (s *Socket) pingLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := s.conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// WriteEvent sends ev as one JSON text message.
func (s *Socket) WriteEvent(ev lingoflow.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage blocks for the next client message.
func (s *Socket) ReadMessage() (Inbound, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return Inbound{}, err
	}
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, fmt.Errorf("decode message: %w", err)
	}
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Payload = data
	return in, nil
}

// WatchCancel reads client messages until the connection drops or ctx is
// done, calling cancel on a cancel message or a dropped connection.
// Pings are answered with a pong frame of the same shape.
func (s *Socket) WatchCancel(ctx context.Context, cancel context.CancelFunc) {
	go func() {
		<-ctx.Done()
		// Unblock the pending read once the job is over.
		_ = s.conn.SetReadDeadline(time.Now())
	}()

	for {
		in, err := s.ReadMessage()
		if err != nil {
			cancel()
			return
		}
		switch in.Type {
		case "cancel":
			cancel()
			return
		case "ping":
			s.writeMu.Lock()
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
			s.writeMu.Unlock()
		}
	}
}

// Close sends a normal close frame and closes the connection.
func (s *Socket) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsCloseGrace))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
