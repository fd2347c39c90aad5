package autopilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/network"
)

// ErrSinkClosed is returned by Send once the connection is gone.
var ErrSinkClosed = errors.New("autopilot: websocket sink closed")

// DefaultReplyTimeout bounds how long Send waits for the server.
const DefaultReplyTimeout = 5 * time.Second

// wireEnvelope is an Envelope whose data is left undecoded.
type wireEnvelope struct {
	Type      network.MessageType  `json:"type"`
	Command   network.CommandType  `json:"command"`
	RequestID string               `json:"request_id"`
	Data      json.RawMessage      `json:"data"`
	Error     *network.ErrorDetail `json:"error"`
}

// WSSink sends commands over a studio WebSocket and matches replies by
// request id. Broadcast frames are counted and otherwise ignored.
type WSSink struct {
	conn    *websocket.Conn
	timeout time.Duration

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan network.Envelope
	closed  bool
	done    chan struct{}

	WeekFrames  int64
	EventFrames int64
}

// DialSink connects to a studio server at url.
func DialSink(ctx context.Context, url string, timeout time.Duration) (*WSSink, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewWSSink(conn, timeout), nil
}

// NewWSSink wraps an open connection and starts its reader.
func NewWSSink(conn *websocket.Conn, timeout time.Duration) *WSSink {
	if timeout <= 0 {
		timeout = DefaultReplyTimeout
	}
	s := &WSSink{
		conn:    conn,
		timeout: timeout,
		pending: make(map[string]chan network.Envelope),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Send writes cmd and waits for its reply.
func (s *WSSink) Send(ctx context.Context, cmd network.Command) (network.Envelope, error) {
	cmd.RequestID = uuid.NewString()
	reply := make(chan network.Envelope, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return network.Envelope{}, ErrSinkClosed
	}
	s.pending[cmd.RequestID] = reply
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, cmd.RequestID)
		s.mu.Unlock()
	}()

	s.writeMu.Lock()
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	err := s.conn.WriteJSON(cmd)
	s.writeMu.Unlock()
	if err != nil {
		return network.Envelope{}, fmt.Errorf("write %s: %w", cmd.Type, err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case env := <-reply:
		return env, nil
	case <-s.done:
		return network.Envelope{}, ErrSinkClosed
	case <-timer.C:
		return network.Envelope{}, fmt.Errorf("no reply to %s within %s", cmd.Type, s.timeout)
	case <-ctx.Done():
		return network.Envelope{}, ctx.Err()
	}
}

func (s *WSSink) readLoop() {
	defer func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	}()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var w wireEnvelope
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		switch w.Type {
		case network.MsgWeek:
			atomic.AddInt64(&s.WeekFrames, 1)
			continue
		case network.MsgEvent:
			atomic.AddInt64(&s.EventFrames, 1)
			continue
		}

		s.mu.Lock()
		reply, ok := s.pending[w.RequestID]
		s.mu.Unlock()
		if !ok {
			continue
		}
		env := network.Envelope{
			Type:      w.Type,
			Command:   w.Command,
			RequestID: w.RequestID,
			Error:     w.Error,
		}
		if len(w.Data) > 0 {
			env.Data = w.Data
		}
		select {
		case reply <- env:
		default:
		}
	}
}

// Close shuts the connection down and waits for the reader to exit.
func (s *WSSink) Close() error {
	s.writeMu.Lock()
	s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	s.writeMu.Unlock()
	err := s.conn.Close()
	<-s.done
	return err
}
