package debugapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphflow/internal/catalog/fixture"
	"graphflow/internal/config"
	"graphflow/internal/engine"
	"graphflow/internal/planner"
)

func loadEngine(t *testing.T) *engine.Engine {
	t.Helper()
	cat, err := fixture.Load("../catalog/fixture/tinysnb.yaml")
	require.NoError(t, err)
	return engine.New(cat, cat, config.EngineConfig{VectorCapacity: 64}, nil)
}

func TestHandleSchemaListsFixtureTables(t *testing.T) {
	srv := NewServer(loadEngine(t))

	req := httptest.NewRequest(http.MethodGet, "/debug/v1/schema", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp schemaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.NodeTables)
	assert.NotEmpty(t, resp.RelTables)
}

func TestHandlePlanReturnsJoinTree(t *testing.T) {
	srv := NewServer(loadEngine(t))

	qg := planner.QueryGraph{
		Nodes: []planner.QueryNode{{ID: 1, Table: 1}},
		Rels:  []planner.QueryRel{{ID: 100, Table: 10, Src: 1, Dst: 2, Dir: 0}},
	}
	body, err := json.Marshal(qg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/debug/v1/plan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tree planner.JoinTree
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tree))
	assert.True(t, tree.Cardinality > 0)
}

func TestHandlePlanRejectsMalformedBody(t *testing.T) {
	srv := NewServer(loadEngine(t))

	req := httptest.NewRequest(http.MethodPost, "/debug/v1/plan", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
