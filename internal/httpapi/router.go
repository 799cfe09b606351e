// Package httpapi is the query engine's HTTP surface: a chi-routed REST
// API for running queries and inspecting plans, plus a gorilla/websocket
// endpoint that runs a query to completion and then sends its collected
// rows to the client in pages.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"graphflow/internal/engine"
	"graphflow/internal/logging"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
)

// Router wraps the engine behind chi's routing and middleware stack.
type Router struct {
	eng *engine.Engine
	mux *chi.Mux
	log logging.Logger
}

// NewRouter builds a Router bound to eng.
func NewRouter(eng *engine.Engine) *Router {
	r := &Router{eng: eng, mux: chi.NewRouter(), log: logging.HTTPAPILogger}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the root http.Handler.
func (r *Router) Handler() http.Handler { return r.mux }

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.RequestID)
	r.mux.Use(r.tracingMiddleware)
	r.mux.Use(chimiddleware.Timeout(30 * time.Second))
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

// tracingMiddleware stamps every request with a trace ID threaded through
// internal/logging, so a query's log lines and its HTTP response share an
// identifier.
func (r *Router) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		traceID := req.Header.Get("X-Trace-Id")
		if traceID == "" {
			traceID = logging.GenerateTraceID()
		}
		ctx := logging.WithTraceID(req.Context(), traceID)
		w.Header().Set("X-Trace-Id", traceID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", r.handleHealth)

	r.mux.Route("/v1", func(v1 chi.Router) {
		v1.Post("/query", r.handleQuery)
		v1.Post("/explain", r.handleExplain)
		v1.Get("/stats", r.handleStats)
		v1.Get("/query/stream", r.handleQueryStream)
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryRequest is the REST and websocket wire shape for a query: a
// pre-bound QueryGraph. Binding Cypher text into this shape is a layer
// above this package's scope.
type queryRequest struct {
	Graph planner.QueryGraph `json:"graph"`
}

func (r *Router) handleQuery(w http.ResponseWriter, req *http.Request) {
	var qr queryRequest
	if err := json.NewDecoder(req.Body).Decode(&qr); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := r.eng.Execute(req.Context(), qr.Graph, map[int]operator.Predicate{})
	if err != nil {
		r.log.ErrorContext(req.Context(), "query failed", "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleExplain(w http.ResponseWriter, req *http.Request) {
	var qr queryRequest
	if err := json.NewDecoder(req.Body).Decode(&qr); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	tree, err := r.eng.Plan(req.Context(), qr.Graph)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	accept := req.Header.Get("Accept")
	if accept == "text/html" {
		html, err := RenderPlanHTML(tree)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"node_tables": len(r.eng.Catalog.AllNodeTables()),
		"rel_tables":  len(r.eng.Catalog.AllRelTables()),
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// rowPage is one page of a streamed result set sent over the websocket.
type rowPage struct {
	Rows  [][]map[string]any `json:"rows,omitempty"`
	Done  bool               `json:"done"`
	Error string             `json:"error,omitempty"`
}

// handleQueryStream runs a query and streams its collected rows to the
// client over a websocket connection in pages, so a large result set
// doesn't force the client to wait for the full REST response.
func (r *Router) handleQueryStream(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", "error", err.Error())
		return
	}
	defer func() { _ = conn.Close() }()

	var qr queryRequest
	if err := conn.ReadJSON(&qr); err != nil {
		_ = conn.WriteJSON(rowPage{Error: "invalid request: " + err.Error(), Done: true})
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), 30*time.Second)
	defer cancel()

	result, err := r.eng.Execute(ctx, qr.Graph, map[int]operator.Predicate{})
	if err != nil {
		_ = conn.WriteJSON(rowPage{Error: err.Error(), Done: true})
		return
	}

	const pageSize = 256
	for start := 0; start < len(result.Rows) || start == 0; start += pageSize {
		end := start + pageSize
		if end > len(result.Rows) {
			end = len(result.Rows)
		}
		page := rowPage{Done: end >= len(result.Rows)}
		for _, row := range result.Rows[start:end] {
			page.Rows = append(page.Rows, rowToMap(row))
		}
		if err := conn.WriteJSON(page); err != nil {
			return
		}
		if page.Done {
			break
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
