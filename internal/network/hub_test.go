package network

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/domain/film"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	apperrors "github.com/MRamiBalles/BacklotTycoon/server/internal/platform/errors"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

type wireEnvelope struct {
	Type      MessageType     `json:"type"`
	Command   CommandType     `json:"command"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
	Error     *ErrorDetail    `json:"error"`
}

func startHub(t *testing.T) (*Hub, *metrics.Collector, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	studio := newTestStudio(t)
	m := metrics.NewCollector()
	d := NewDispatcher(studio, logger.Discard(), m)
	hub := NewHub(d, 16, logger.Discard(), m)
	d.OnWeek(hub.BroadcastWeek)
	go hub.Run(ctx)
	hub.StartEventPoller(ctx, studio.GetEventLog(), 10*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)
	return hub, m, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until match returns true or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(wireEnvelope) bool) []wireEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var seen []wireEnvelope
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after %d frames: %v", len(seen), err)
		}
		var env wireEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("frame is not an envelope: %s", raw)
		}
		seen = append(seen, env)
		if match(env) {
			return seen
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocketCommandRoundTrip(t *testing.T) {
	hub, m, url := startHub(t)
	player := dial(t, url)
	watcher := dial(t, url)
	waitFor(t, func() bool { return hub.ClientCount() == 2 })

	script := film.Script{Title: "Cold Harbor", Genre: film.GenreDrama, Budget: 100_000, Quality: 60}
	if err := player.WriteJSON(Command{Type: CmdGreenlight, RequestID: "g1", Payload: mustPayload(t, script)}); err != nil {
		t.Fatal(err)
	}
	frames := readUntil(t, player, func(e wireEnvelope) bool { return e.RequestID == "g1" })
	reply := frames[len(frames)-1]
	if reply.Type != MsgResult || reply.Command != CmdGreenlight {
		t.Fatalf("expected greenlight result, got %+v", reply)
	}
	var p film.Production
	if err := json.Unmarshal(reply.Data, &p); err != nil || p.Title != "Cold Harbor" {
		t.Fatalf("unexpected production %s err=%v", reply.Data, err)
	}

	// Replies are private; the greenlight event reaches everyone.
	readUntil(t, watcher, func(e wireEnvelope) bool {
		if e.RequestID != "" {
			t.Fatalf("watcher received another client's reply: %+v", e)
		}
		return e.Type == MsgEvent
	})

	if err := player.WriteJSON(Command{Type: CmdAdvanceWeek, RequestID: "a1"}); err != nil {
		t.Fatal(err)
	}
	readUntil(t, watcher, func(e wireEnvelope) bool { return e.Type == MsgWeek })
	readUntil(t, player, func(e wireEnvelope) bool { return e.RequestID == "a1" })

	if n := atomic.LoadInt64(&m.WSMessagesIn); n != 2 {
		t.Fatalf("expected 2 incoming messages, got %d", n)
	}
}

func TestWebSocketMalformedCommand(t *testing.T) {
	_, m, url := startHub(t)
	conn := dial(t, url)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	frames := readUntil(t, conn, func(e wireEnvelope) bool { return e.Type == MsgError })
	got := frames[len(frames)-1]
	if got.Error == nil || got.Error.Code != apperrors.CodeMalformedCommand {
		t.Fatalf("expected MALFORMED_COMMAND, got %+v", got.Error)
	}
	if n := atomic.LoadInt64(&m.CommandsRejected); n != 1 {
		t.Fatalf("expected the bad frame counted as rejected, got %d", n)
	}
}

func TestHubUnregistersClosedClients(t *testing.T) {
	hub, m, url := startHub(t)
	conn := dial(t, url)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()
	waitFor(t, func() bool { return hub.ClientCount() == 0 })

	if n := atomic.LoadInt64(&m.WSConnectionsActive); n != 0 {
		t.Fatalf("expected no active connections, got %d", n)
	}
}

func TestBroadcastAfterShutdownDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(NewDispatcher(newTestStudio(t), logger.Discard(), nil), 0, logger.Discard(), nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		hub.BroadcastWeek(engine.WeekReport{Week: 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a stopped hub")
	}
}

func TestServeWSRefusesPastCap(t *testing.T) {
	hub, m, url := startHub(t)
	hub.SetMaxClients(1)

	dial(t, url)
	waitFor(t, func() bool { return hub.ClientCount() == 1 })

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected the second dial to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
	if got := atomic.LoadInt64(&m.WSErrors); got != 1 {
		t.Errorf("expected one ws error, got %d", got)
	}
}
