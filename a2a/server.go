package a2a

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daisydq74/multi-agent-customer-service/logging"
	"github.com/daisydq74/multi-agent-customer-service/trace"
)

// Server exposes one agent Handler over HTTP: its card at the well-known
// discovery path and the message/send RPC surface. Each inbound message gets
// a fresh conversation log so simultaneous requests cannot cross-contaminate
// transcripts; completed logs are flushed to the optional sink.
type Server struct {
	handler    Handler
	addr       string
	logger     logging.Logger
	sink       trace.Sink
	httpServer *http.Server
}

// ServerOptions configures a Server.
type ServerOptions struct {
	// Logger receives structured request logging. Defaults to NoOp.
	Logger logging.Logger
	// Sink receives each request's conversation log after the response is
	// written. Nil disables transcript flushing.
	Sink trace.Sink
}

// NewServer wraps handler and serves it on addr.
func NewServer(handler Handler, addr string, optFns ...func(o *ServerOptions)) *Server {
	opts := ServerOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{
		handler: handler,
		addr:    addr,
		logger:  opts.Logger,
		sink:    opts.Sink,
	}
}

// Routes builds the chi router for the agent's protocol surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(WellKnownCardPath, s.handleCard)
	r.Post("/rpc", s.handleRPC)
	return r
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("agent server listening", "agent", s.handler.Card().Name, "addr", s.addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve agent %s: %w", s.handler.Card().Name, err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.handler.Card())
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			Error:   &rpcError{Code: -32700, Message: "parse error: " + err.Error()},
		})
		return
	}

	if req.Method != MethodMessageSend {
		writeJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: -32601, Message: "unsupported method: " + req.Method},
		})
		return
	}

	msg := req.Params.Message
	if msg.Action == "" {
		writeJSON(w, http.StatusBadRequest, rpcResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &rpcError{Code: -32602, Message: "message has no action"},
		})
		return
	}

	// Per-request conversation log: nested hops the handler makes while
	// serving this message land here, never in another request's log.
	log := trace.NewLog()

	start := time.Now()
	res := s.handler.Handle(r.Context(), log, msg)
	s.logger.Info("handled message",
		"agent", s.handler.Card().Name,
		"action", msg.Action,
		"sender", msg.Sender,
		"status", string(res.Status),
		"duration", time.Since(start),
	)

	writeJSON(w, http.StatusOK, rpcResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  &rpcResult{Message: res},
	})

	if s.sink != nil {
		if err := s.sink.Flush(log.Entries()); err != nil {
			s.logger.Warn("transcript flush failed", "error", err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
