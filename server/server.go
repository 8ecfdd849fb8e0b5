// Package server exposes the sales agent over HTTP: a health endpoint plus a
// websocket API that streams run events (tokens, tool activity, errors) to
// connected clients.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/contoso/salesagent/core"
	"github.com/contoso/salesagent/logging"
	"github.com/contoso/salesagent/runner"
)

// Message is the websocket wire format in both directions.
//
// Inbound: {"type":"text","content":"..."} submits a user turn.
// Outbound types: "token" (streamed text delta), "message" (final assistant
// text), "tool_call", "tool_result", "error" and "done".
type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	RunID     string `json:"run_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Options configures the server.
type Options struct {
	Logger          logging.Logger
	ShutdownTimeout time.Duration
	// CheckOrigin overrides websocket origin validation. The default accepts
	// all origins, suitable for local workshop use only.
	CheckOrigin func(r *http.Request) bool
}

// Server wires the runner to HTTP transport.
type Server struct {
	runner          *runner.Runner
	hub             *Hub
	logger          logging.Logger
	upgrader        websocket.Upgrader
	shutdownTimeout time.Duration
}

// New constructs a Server around the given runner.
func New(r *runner.Runner, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:          logging.NoOpLogger{},
		ShutdownTimeout: 5 * time.Second,
		CheckOrigin:     func(_ *http.Request) bool { return true },
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		runner:          r,
		hub:             NewHub(opts.Logger),
		logger:          opts.Logger,
		upgrader:        websocket.Upgrader{CheckOrigin: opts.CheckOrigin},
		shutdownTimeout: opts.ShutdownTimeout,
	}
	go s.hub.Run()
	return s
}

// Routes builds the chi router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/ws", s.websocketHandler)
	})

	return r
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws.upgrade.error", "error", err.Error())
		return
	}

	client := s.hub.RegisterClient(conn)
	client.MessageHandler = s.handleClientMessage

	go client.WritePump()
	go client.ReadPump()

	client.Write(mustMarshal(Message{Type: "session", SessionID: client.SessionID}))
}

// handleClientMessage runs one agent turn for an inbound text message and
// streams the resulting events back to the client.
func (s *Server) handleClientMessage(c *Client, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.Write(mustMarshal(Message{Type: "error", Content: "invalid message"}))
		return
	}

	if msg.Type != "text" || msg.Content == "" {
		c.Write(mustMarshal(Message{Type: "error", Content: "unsupported message type"}))
		return
	}

	runID, eventsCh, errorsCh, err := s.runner.Run(context.Background(), c.SessionID, core.NewTextContent("user", msg.Content))
	if err != nil {
		c.Write(mustMarshal(Message{Type: "error", Content: err.Error()}))
		return
	}

	// Keep draining the run channels even if the client drops mid-run so the
	// runner's goroutines complete and the session history stays intact.
	clientGone := false
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			for _, out := range translateEvent(ev, runID) {
				if !clientGone && !c.Write(out) {
					clientGone = true
				}
			}
		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if !clientGone && !c.Write(mustMarshal(Message{Type: "error", RunID: runID, Content: err.Error()})) {
				clientGone = true
			}
		}
	}

	if !clientGone {
		c.Write(mustMarshal(Message{Type: "done", RunID: runID}))
	}
}

// translateEvent maps a run event to zero or more outbound messages.
func translateEvent(ev core.Event, runID string) [][]byte {
	var out [][]byte

	if ev.ErrorMessage != nil {
		return append(out, mustMarshal(Message{Type: "error", RunID: runID, Content: *ev.ErrorMessage}))
	}
	if ev.Content == nil {
		return out
	}

	if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
		if ev.IsPartial() {
			return out // tool call deltas are not forwarded
		}
		for _, fc := range fnCalls {
			out = append(out, mustMarshal(Message{Type: "tool_call", RunID: runID, Name: fc.Name, Content: fc.Arguments}))
		}
		return out
	}

	if fnResponses := ev.GetFunctionResponses(); len(fnResponses) > 0 {
		for _, fr := range fnResponses {
			m := Message{Type: "tool_result", RunID: runID, Name: fr.Name}
			if fr.Error != "" {
				m.Content = fr.Error
			}
			out = append(out, mustMarshal(m))
		}
		return out
	}

	text := ev.Content.Text()
	if text == "" {
		return out
	}
	if ev.IsPartial() {
		return append(out, mustMarshal(Message{Type: "token", RunID: runID, Content: text}))
	}
	return append(out, mustMarshal(Message{Type: "message", RunID: runID, Content: text}))
}

func mustMarshal(m Message) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}
