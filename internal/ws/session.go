package ws

import (
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64
)

type inboundMessage struct {
	Type string `json:"type"`
}

type pongMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

type connectedMessage struct {
	Event     string `json:"event"`
	OrderID   string `json:"orderId"`
	Timestamp int64  `json:"timestamp"`
}

// Session is one subscriber connection. Whatever terminates it - peer close,
// read error, write error, or a broadcaster-side detach - funnels into a
// single teardown routine guarded by closed, so unsubscribe runs exactly once.
type Session struct {
	id          string
	orderID     string
	conn        *websocket.Conn
	send        chan []byte
	done        chan struct{}
	broadcaster *Broadcaster
	logger      *zap.Logger
	closed      atomic.Bool
}

// NewSession registers the connection under the order id, sends the connected
// greeting, and starts the read/write pumps.
func NewSession(b *Broadcaster, orderID string, conn *websocket.Conn, logger *zap.Logger) *Session {
	s := &Session{
		id:          uuid.New().String(),
		orderID:     orderID,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		broadcaster: b,
		logger:      logger,
	}
	b.Subscribe(orderID, s)

	greeting, _ := json.Marshal(connectedMessage{
		Event:     "connected",
		OrderID:   orderID,
		Timestamp: time.Now().UnixMilli(),
	})
	s.send <- greeting

	go s.writePump()
	go s.readPump()
	return s
}

// ID returns the unique connection handle.
func (s *Session) ID() string { return s.id }

// Ready reports whether the session can still accept messages.
func (s *Session) Ready() bool { return !s.closed.Load() }

// Send queues a message for delivery. It never blocks a broadcasting worker:
// a full buffer counts as a send failure and the caller detaches the session.
func (s *Session) Send(msg []byte) error {
	if s.closed.Load() {
		return errors.New("session closed")
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close terminates the session. Safe to call from any goroutine, any number
// of times.
func (s *Session) Close() error {
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	close(s.done)
	s.broadcaster.Unsubscribe(s.orderID, s.id)
	s.conn.Close()
}

// readPump consumes inbound client messages. A {"type":"ping"} is answered
// with a pong; malformed messages are logged and ignored, never fatal.
func (s *Session) readPump() {
	defer s.teardown()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket read error",
					zap.String("order_id", s.orderID), zap.Error(err))
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("Ignoring malformed client message",
				zap.String("order_id", s.orderID), zap.Error(err))
			continue
		}
		if msg.Type == "ping" {
			pong, _ := json.Marshal(pongMessage{Type: "pong", Timestamp: time.Now().UnixMilli()})
			if err := s.Send(pong); err != nil {
				return
			}
		}
	}
}

// writePump drains the send buffer and keeps the connection alive with
// protocol-level pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.teardown()
	}()

	for {
		select {
		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
