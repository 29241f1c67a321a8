// ws.go implements the WebSocket stream session.
//
// A session owns a single socket and multiplexes two directions over it: a
// command channel in (subscribe/unsubscribe/shutdown) and a typed event
// channel out. The session is generic over its event type; the market and
// account sockets share the entire control-frame protocol and dispatch loop
// and differ only in the parse function applied to inbound frames.
//
// There is no reconnect: a read error, a remote close, or a shutdown command
// ends the session for good. The engine treats a dead session as fatal-by-
// silence and the process is restarted by the supervisor.
package exchange

import (
	"context"
	"log/slog"

	"github.com/gorilla/websocket"

	"ceraunus/pkg/types"
)

const (
	// CommandBufferSize sizes the slow control plane into a session.
	CommandBufferSize = 32
	// EventBufferSize sizes the bursty market data path out of a session.
	// When full, the session blocks, which cascades TCP backpressure to the
	// venue. This is the intended overload behavior.
	EventBufferSize = 1024
)

// Command is a control message for a session. Exactly one field is set.
type Command struct {
	Subscribe   []StreamSpec
	Unsubscribe []StreamSpec
	Shutdown    bool
}

// ParseFunc turns one inbound frame into a typed event. It must not fail;
// unparseable text becomes the event type's Raw variant.
type ParseFunc[E any] func(data []byte) E

// controlFrame is the venue's subscription envelope.
type controlFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Session is one WebSocket stream session, generic in its event type.
type Session[E any] struct {
	url    string
	cmds   <-chan Command
	events chan<- E
	parse  ParseFunc[E]

	// active tracks currently-subscribed stream names so operators can see
	// what a wedged session thought it was subscribed to.
	active map[string]struct{}
	nextID int

	logger *slog.Logger
}

// NewMarketSession builds a session decoding market stream payloads.
func NewMarketSession(url string, cmds <-chan Command, events chan<- types.MarketEvent, logger *slog.Logger) *Session[types.MarketEvent] {
	return newSession(url, cmds, events, types.ParseMarketEvent, logger.With("component", "ws_market"))
}

// NewAccountSession builds a session decoding user data stream payloads.
// The url must already carry the listen key path segment.
func NewAccountSession(url string, cmds <-chan Command, events chan<- types.AccountEvent, logger *slog.Logger) *Session[types.AccountEvent] {
	return newSession(url, cmds, events, types.ParseAccountEvent, logger.With("component", "ws_account"))
}

func newSession[E any](url string, cmds <-chan Command, events chan<- E, parse ParseFunc[E], logger *slog.Logger) *Session[E] {
	return &Session[E]{
		url:    url,
		cmds:   cmds,
		events: events,
		parse:  parse,
		active: make(map[string]struct{}),
		logger: logger,
	}
}

// Run connects and drives the session until shutdown, socket failure, or ctx
// cancellation. Termination is silent by design: the error is logged here and
// not surfaced further.
func (s *Session[E]) Run(ctx context.Context) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.logger.Error("websocket dial failed, session terminated", "url", s.url, "error", err)
		return
	}
	defer conn.Close()

	s.logger.Info("websocket connected")

	// Reader goroutine: the gorilla read call blocks, so inbound frames are
	// pumped into a channel the dispatch loop can select on. Text and binary
	// frames are treated identically.
	frames := make(chan []byte, 1)
	go func() {
		defer close(frames)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				s.logger.Warn("websocket read ended", "error", err)
				return
			}
			select {
			case frames <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Dispatch loop: exactly one command or one frame is serviced per
	// iteration. Event sends block when the engine falls behind.
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-s.cmds:
			if !ok || cmd.Shutdown {
				s.logger.Info("session shutdown")
				return
			}
			s.handleCommand(conn, cmd)
		case data, ok := <-frames:
			if !ok {
				return
			}
			select {
			case s.events <- s.parse(data):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Session[E]) handleCommand(conn *websocket.Conn, cmd Command) {
	switch {
	case len(cmd.Subscribe) > 0:
		params := make([]string, 0, len(cmd.Subscribe))
		for _, spec := range cmd.Subscribe {
			name := spec.Param()
			params = append(params, name)
			s.active[name] = struct{}{}
		}
		s.sendControl(conn, "SUBSCRIBE", params)
	case len(cmd.Unsubscribe) > 0:
		params := make([]string, 0, len(cmd.Unsubscribe))
		for _, spec := range cmd.Unsubscribe {
			name := spec.Param()
			params = append(params, name)
			delete(s.active, name)
		}
		s.sendControl(conn, "UNSUBSCRIBE", params)
	}
}

// sendControl writes one subscription frame. Send errors are swallowed: the
// command is lost and only logged.
func (s *Session[E]) sendControl(conn *websocket.Conn, method string, params []string) {
	s.nextID++
	frame := controlFrame{Method: method, Params: params, ID: s.nextID}
	if err := conn.WriteJSON(frame); err != nil {
		s.logger.Error("control frame send failed, command lost",
			"method", method,
			"params", params,
			"error", err,
		)
	}
}
