package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
)

// Handler processes incoming A2A requests.
type Handler interface {
	// HandleSendMessage processes an incoming message and returns a task.
	HandleSendMessage(ctx context.Context, req SendMessageRequest) (*Task, error)

	// HandleGetTask returns the current state of a task.
	HandleGetTask(ctx context.Context, req GetTaskRequest) (*Task, error)

	// HandleListTasks returns tasks matching the filter.
	HandleListTasks(ctx context.Context, req ListTasksRequest) (*ListTasksResponse, error)

	// HandleCancelTask cancels a running task.
	HandleCancelTask(ctx context.Context, req CancelTaskRequest) (*Task, error)
}

// StreamHandler is implemented by handlers that support message/stream.
// emit delivers one event to the client; it returns an error once the
// client has gone away.
type StreamHandler interface {
	HandleStreamMessage(ctx context.Context, req SendMessageRequest, emit func(StreamEvent) error) error
}

// Server is the HTTP server that exposes an A2A agent.
type Server struct {
	card    AgentCard
	handler Handler

	mu   sync.Mutex
	http *http.Server
	addr string
}

// NewServer creates an A2A server for the given agent.
func NewServer(card AgentCard, handler Handler) *Server {
	if _, ok := handler.(StreamHandler); ok {
		card.Capabilities.Streaming = true
	}
	return &Server{
		card:    card,
		handler: handler,
	}
}

// Handler returns the HTTP routes without starting a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/agent-card.json", s.handleAgentCard)
	mux.HandleFunc("POST /", s.handleJSONRPC)
	return mux
}

// Start binds addr and begins serving in a background goroutine. Bind errors
// are returned immediately.
func (s *Server) Start(_ context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("a2a: listen %s: %w", addr, err)
	}

	s.mu.Lock()
	s.http = &http.Server{Handler: s.Handler()}
	s.addr = ln.Addr().String()
	srv := s.http
	s.mu.Unlock()

	go func() { _ = srv.Serve(ln) }()
	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// handleAgentCard serves the agent card as JSON at the well-known endpoint.
func (s *Server) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.card); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleJSONRPC decodes a JSON-RPC 2.0 request and dispatches it to the
// handler.
func (s *Server) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, nil, ErrCodeParse, "Parse error: "+err.Error())
		return
	}

	if req.Method == MethodStreamMessage {
		s.dispatchStream(r.Context(), w, &req)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	switch req.Method {
	case MethodSendMessage:
		dispatch(ctx, w, &req, s.handler.HandleSendMessage)
	case MethodGetTask:
		dispatch(ctx, w, &req, s.handler.HandleGetTask)
	case MethodListTasks:
		dispatch(ctx, w, &req, s.handler.HandleListTasks)
	case MethodCancelTask:
		dispatch(ctx, w, &req, s.handler.HandleCancelTask)
	default:
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

// dispatch unmarshals params into P, calls fn and writes the JSON-RPC reply.
func dispatch[P any, R any](ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest, fn func(context.Context, P) (R, error)) {
	var params P
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	result, err := fn(ctx, params)
	if err != nil {
		writeJSONRPCError(w, req.ID, errorCode(err), err.Error())
		return
	}

	writeJSONRPCResult(w, req.ID, result)
}

// dispatchStream answers message/stream with an SSE response.
func (s *Server) dispatchStream(ctx context.Context, w http.ResponseWriter, req *JSONRPCRequest) {
	sh, ok := s.handler.(StreamHandler)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeMethodNotFound, "Method not found: "+MethodStreamMessage)
		return
	}

	var params SendMessageRequest
	if err := json.Unmarshal(req.Params, &params); err != nil {
		w.Header().Set("Content-Type", "application/json")
		writeJSONRPCError(w, req.ID, ErrCodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	sw := NewSSEWriter(w)
	sw.Init()
	if err := sh.HandleStreamMessage(ctx, params, sw.WriteEvent); err != nil {
		// Headers are already sent; report the failure as a comment frame.
		_ = sw.WriteComment("error: " + err.Error())
	}
}

func errorCode(err error) int {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ErrCodeInternal
}
