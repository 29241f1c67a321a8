package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ceraunus/pkg/types"
)

const wsTestDepthJSON = `{"e":"depthUpdate","E":1571889248277,"T":1571889248276,"s":"BTCUSDT","U":100,"u":110,"pu":99,"b":[["7403.89","0.002"]],"a":[["7405.96","3.340"]]}`

// wsTestServer upgrades each connection, forwards control frames to frames,
// and sends every payload queued on send to the client. Closing send closes
// the server side of the connection; httptest's Close and
// CloseClientConnections do not reach hijacked websocket connections.
func wsTestServer(t *testing.T, frames chan<- controlFrame, send <-chan string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		go func() {
			defer conn.Close()
			for payload := range send {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
					return
				}
			}
		}()

		for {
			var frame controlFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			frames <- frame
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionSubscribeProtocol(t *testing.T) {
	t.Parallel()

	frames := make(chan controlFrame, 4)
	send := make(chan string)
	defer close(send)
	srv := wsTestServer(t, frames, send)
	defer srv.Close()

	cmds := make(chan Command, CommandBufferSize)
	events := make(chan types.MarketEvent, EventBufferSize)
	sess := NewMarketSession(wsURL(srv), cmds, events, testLogger())

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	cmds <- Command{Subscribe: []StreamSpec{
		DepthSpec(types.BTCUSDT, 20, 100),
		BookTickerSpec(types.BTCUSDT),
	}}

	frame := recvFrame(t, frames)
	if frame.Method != "SUBSCRIBE" {
		t.Errorf("method = %q, want SUBSCRIBE", frame.Method)
	}
	if frame.ID != 1 {
		t.Errorf("id = %d, want 1 (ids start at 1)", frame.ID)
	}
	if len(frame.Params) != 2 || frame.Params[0] != "btcusdt@depth20@100ms" || frame.Params[1] != "btcusdt@bookTicker" {
		t.Errorf("params = %v", frame.Params)
	}

	cmds <- Command{Unsubscribe: []StreamSpec{BookTickerSpec(types.BTCUSDT)}}
	frame = recvFrame(t, frames)
	if frame.Method != "UNSUBSCRIBE" {
		t.Errorf("method = %q, want UNSUBSCRIBE", frame.Method)
	}
	if frame.ID != 2 {
		t.Errorf("id = %d, want 2 (monotonic per session)", frame.ID)
	}

	cmds <- Command{Shutdown: true}
	waitDone(t, done)
}

func TestSessionDeliversTypedEvents(t *testing.T) {
	t.Parallel()

	frames := make(chan controlFrame, 4)
	send := make(chan string, 4)
	srv := wsTestServer(t, frames, send)
	defer srv.Close()

	cmds := make(chan Command, CommandBufferSize)
	events := make(chan types.MarketEvent, EventBufferSize)
	sess := NewMarketSession(wsURL(srv), cmds, events, testLogger())

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	send <- wsTestDepthJSON
	ev := recvEvent(t, events)
	if ev.Depth == nil {
		t.Fatalf("expected depth event, got %+v", ev)
	}
	if ev.Depth.FinalUpdateID != 110 {
		t.Errorf("final update id = %d, want 110", ev.Depth.FinalUpdateID)
	}

	// Unknown text must come through as Raw, not kill the session.
	send <- `{"result":null,"id":1}`
	ev = recvEvent(t, events)
	if ev.Raw == nil {
		t.Fatalf("expected raw event, got %+v", ev)
	}

	close(send)
	cmds <- Command{Shutdown: true}
	waitDone(t, done)
}

func TestSessionTerminatesOnRemoteClose(t *testing.T) {
	t.Parallel()

	frames := make(chan controlFrame, 4)
	send := make(chan string)
	srv := wsTestServer(t, frames, send)

	cmds := make(chan Command, CommandBufferSize)
	events := make(chan types.MarketEvent, EventBufferSize)
	sess := NewMarketSession(wsURL(srv), cmds, events, testLogger())

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()

	// Give the client a moment to connect, then drop the server side.
	time.Sleep(100 * time.Millisecond)
	close(send)
	srv.CloseClientConnections()
	srv.Close()

	waitDone(t, done)
}

func TestSessionDialFailureTerminatesSilently(t *testing.T) {
	t.Parallel()

	cmds := make(chan Command, CommandBufferSize)
	events := make(chan types.MarketEvent, EventBufferSize)
	sess := NewMarketSession("ws://127.0.0.1:1/ws", cmds, events, testLogger())

	done := make(chan struct{})
	go func() {
		sess.Run(context.Background())
		close(done)
	}()
	waitDone(t, done)
}

func recvFrame(t *testing.T, frames <-chan controlFrame) controlFrame {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for control frame")
		return controlFrame{}
	}
}

func recvEvent(t *testing.T, events <-chan types.MarketEvent) types.MarketEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return types.MarketEvent{}
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
	}
}
