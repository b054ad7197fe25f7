package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/frievoe97/stackup/server/runtime"
)

// Server is the stackup HTTP API. It manages one or more named stacks, each
// with its own event log and orchestration run.
type Server struct {
	router   *mux.Router
	runtimes *runtime.Registry
	logger   *zap.Logger
	metrics  *Metrics
	promReg  *prometheus.Registry

	mu     sync.Mutex
	stacks map[string]*stackInstance
}

// stackInstance holds the runtime state of a single managed stack.
type stackInstance struct {
	name  string
	graph *Graph
	log   *EventLog
	orch  *Orchestrator

	cancel context.CancelFunc
	done   chan struct{} // closed when Up returns

	mu     sync.Mutex
	result *Result // set before done is closed
}

func (inst *stackInstance) upResult() *Result {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.result
}

// NewServer creates a Server and registers all HTTP routes.
func NewServer(runtimes *runtime.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())

	s := &Server{
		router:   mux.NewRouter(),
		runtimes: runtimes,
		logger:   logger,
		metrics:  NewMetrics(promReg),
		promReg:  promReg,
		stacks:   make(map[string]*stackInstance),
	}

	s.router.Use(s.logRequests)
	s.router.HandleFunc("/stacks", s.handleCreateStack).Methods(http.MethodPost)
	s.router.HandleFunc("/stacks/{name}", s.handleGetStack).Methods(http.MethodGet)
	s.router.HandleFunc("/stacks/{name}", s.handleDeleteStack).Methods(http.MethodDelete)
	s.router.HandleFunc("/stacks/{name}/events", s.handleSSE).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// handleCreateStack handles POST /stacks.
//
// Decodes and validates the stack spec, then starts orchestration in the
// background and returns immediately. Progress is observable via the SSE
// stream; the final outcome via GET.
func (s *Server) handleCreateStack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	g, err := DecodeAndBuild(body, nil)
	if err != nil {
		var ge *GraphError
		if errors.As(err, &ge) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": ge.Error(),
				"kind":  ge.Kind,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	name := g.Stack.Name

	s.mu.Lock()
	if _, exists := s.stacks[name]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "stack "+name+" already exists")
		return
	}

	stackLog := NewEventLog()
	inst := &stackInstance{
		name:  name,
		graph: g,
		log:   stackLog,
		orch: &Orchestrator{
			Runtimes: s.runtimes,
			Log:      stackLog,
			Metrics:  s.metrics,
		},
		done: make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel
	s.stacks[name] = inst
	s.mu.Unlock()

	go func() {
		res := inst.orch.Up(ctx, g)
		inst.mu.Lock()
		inst.result = &res
		inst.mu.Unlock()
		close(inst.done)
		s.logger.Info("stack up finished",
			zap.String("stack", name),
			zap.Bool("ok", res.OK),
		)
	}()

	writeJSON(w, http.StatusCreated, map[string]any{
		"stack":    name,
		"services": g.Order,
	})
}

// handleGetStack handles GET /stacks/{name}. It reports the outcome of the
// Up run (if finished) alongside the runtime's live view of each service.
func (s *Server) handleGetStack(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.getInstance(w, r)
	if !ok {
		return
	}

	statuses, err := inst.orch.Status(r.Context(), inst.graph)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stack":   inst.name,
		"result":  inst.upResult(), // null while Up is still running
		"runtime": statuses,
	})
}

// handleDeleteStack handles DELETE /stacks/{name}. It cancels a still-running
// Up, waits for it to settle, then tears the stack down in reverse order.
func (s *Server) handleDeleteStack(w http.ResponseWriter, r *http.Request) {
	inst, ok := s.getInstance(w, r)
	if !ok {
		return
	}

	inst.cancel()
	select {
	case <-inst.done:
	case <-r.Context().Done():
		writeError(w, http.StatusRequestTimeout, "stack did not settle before client disconnect")
		return
	}

	res := inst.orch.Down(r.Context(), inst.graph)

	s.mu.Lock()
	delete(s.stacks, inst.name)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, res)
}

// getInstance resolves the {name} path variable to a managed stack, writing
// a 404 when it is unknown.
func (s *Server) getInstance(w http.ResponseWriter, r *http.Request) (*stackInstance, bool) {
	name := mux.Vars(r)["name"]
	s.mu.Lock()
	inst, ok := s.stacks[name]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown stack "+name)
		return nil, false
	}
	return inst, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
