// Package debugapi is a small gorilla/mux-routed introspection server for
// cmd/queryctl: it exposes the catalog's schema and lets an operator probe
// a single plan without running the full HTTP API stack.
package debugapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"graphflow/internal/engine"
	"graphflow/internal/logging"
	"graphflow/internal/planner"
)

// Server wraps an engine behind a gorilla/mux debug router.
type Server struct {
	eng    *engine.Engine
	router *mux.Router
	log    logging.Logger
}

// NewServer builds a Server bound to eng.
func NewServer(eng *engine.Engine) *Server {
	s := &Server{eng: eng, router: mux.NewRouter(), log: logging.DebugAPILogger}
	s.setupRoutes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/debug/v1").Subrouter()
	api.Use(s.jsonMiddleware)

	api.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodPost)
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type schemaResponse struct {
	NodeTables []nodeTableInfo `json:"node_tables"`
	RelTables  []relTableInfo  `json:"rel_tables"`
}

type nodeTableInfo struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Properties []string `json:"properties"`
}

type relTableInfo struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	SrcTable   uint64   `json:"src_table"`
	DstTable   uint64   `json:"dst_table"`
	ManyToMany bool     `json:"many_to_many"`
	Properties []string `json:"properties"`
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	resp := schemaResponse{}
	for _, nt := range s.eng.Catalog.AllNodeTables() {
		props := make([]string, len(nt.Properties))
		for i, p := range nt.Properties {
			props[i] = p.Name
		}
		resp.NodeTables = append(resp.NodeTables, nodeTableInfo{
			ID: uint64(nt.ID), Name: nt.Name, Properties: props,
		})
	}
	for _, rt := range s.eng.Catalog.AllRelTables() {
		props := make([]string, len(rt.Properties))
		for i, p := range rt.Properties {
			props[i] = p.Name
		}
		resp.RelTables = append(resp.RelTables, relTableInfo{
			ID: uint64(rt.ID), Name: rt.Name, SrcTable: uint64(rt.SrcTable), DstTable: uint64(rt.DstTable),
			ManyToMany: rt.ManyToMany, Properties: props,
		})
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var qg planner.QueryGraph
	if err := json.NewDecoder(r.Body).Decode(&qg); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tree, err := s.eng.Plan(ctx, qg)
	if err != nil {
		s.log.Error("debug plan failed", "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(tree)
}
