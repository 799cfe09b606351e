// Package engine is the top-level driver: it plans a QueryGraph, lowers
// the resulting JoinTree into an operator pipeline, runs it to
// completion, and returns a QueryResult. Every call is assigned a trace
// ID threaded through internal/logging so one query's log lines can be
// grepped out of a busy server.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"graphflow/internal/catalog"
	"graphflow/internal/config"
	"graphflow/internal/costmodel"
	"graphflow/internal/logging"
	"graphflow/internal/materializer"
	"graphflow/internal/memmgr"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
	"graphflow/internal/planner/planstore"
	"graphflow/internal/vector"
)

// QueryResult is the terminal value engine.Execute returns: the rows a
// ResultCollector drained plus the plan-level statistics a caller can
// surface through EXPLAIN.
type QueryResult struct {
	TraceID     string
	Rows        [][]vector.Scalar
	RowCount    int
	Cardinality float64
	Cost        float64
	PlanKind    planner.NodeKind
	Elapsed     time.Duration
}

// Engine binds one Catalog/Storage pair and the tuning knobs controlling
// planning and materialization.
type Engine struct {
	Catalog catalog.Catalog
	Storage catalog.Storage
	Config  config.EngineConfig
	Cache   *planstore.Store // nil disables plan-shape caching
	log     logging.Logger
}

// New constructs an Engine. cache may be nil.
func New(cat catalog.Catalog, storage catalog.Storage, cfg config.EngineConfig, cache *planstore.Store) *Engine {
	return &Engine{
		Catalog: cat,
		Storage: storage,
		Config:  cfg,
		Cache:   cache,
		log:     logging.EngineLogger,
	}
}

func (e *Engine) estimator() (*costmodel.Estimator, error) {
	nodeStats := map[catalog.TableID]costmodel.NodeStats{}
	relStats := map[catalog.TableID]costmodel.RelStats{}
	for _, nt := range e.Catalog.AllNodeTables() {
		rows, err := e.Storage.MaxOffset(nt.ID)
		if err != nil {
			return nil, err
		}
		nodeStats[nt.ID] = costmodel.NodeStats{NumRows: int64(rows)}
	}
	for _, rt := range e.Catalog.AllRelTables() {
		// A reference cardinality; reference Catalog implementations can
		// override Estimator construction with measured counts.
		relStats[rt.ID] = costmodel.RelStats{NumRows: 1}
	}
	return costmodel.NewEstimator(nodeStats, relStats), nil
}

// Plan solves a JoinTree for qg, consulting the plan cache first (if
// configured) and populating it on a miss.
func (e *Engine) Plan(ctx context.Context, qg planner.QueryGraph) (*planner.JoinTree, error) {
	cm := costmodel.CostModel{}
	if e.Cache != nil {
		if tree, ok, err := e.Cache.Get(ctx, qg); err == nil && ok {
			e.log.DebugContext(ctx, "plan cache hit")
			return tree, nil
		} else if err != nil {
			e.log.WarnContext(ctx, "plan cache read failed", "error", err.Error())
		}
	}

	est, err := e.estimator()
	if err != nil {
		return nil, fmt.Errorf("building estimator: %w", err)
	}
	tree, err := planner.Plan(qg, est, cm)
	if err != nil {
		return nil, err
	}

	if e.Cache != nil {
		if err := e.Cache.Put(ctx, qg, tree); err != nil {
			e.log.WarnContext(ctx, "plan cache write failed", "error", err.Error())
		}
	}
	return tree, nil
}

// Materialize lowers tree into a runnable pipeline against e's
// Catalog/Storage, with the given compiled predicates and (for
// correlated ExprScan leaves) outer-tuple source.
func (e *Engine) Materialize(qg planner.QueryGraph, tree *planner.JoinTree, predicates map[int]operator.Predicate, outerTuple func() *vector.DataChunk) (operator.Operator, error) {
	m := materializer.New(e.Catalog, e.Storage, e.Config.VectorCapacity, predicates)
	m.OuterTuple = outerTuple
	return m.Materialize(qg, tree)
}

// Execute plans, materializes, and runs qg to completion, returning the
// collected rows. A fresh trace ID is minted if ctx does not already
// carry one, so a request-scoped context from an HTTP handler keeps its
// own trace ID end to end.
func (e *Engine) Execute(ctx context.Context, qg planner.QueryGraph, predicates map[int]operator.Predicate) (*QueryResult, error) {
	traceID := logging.GetTraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
		ctx = logging.WithTraceID(ctx, traceID)
	}
	log := e.log.WithTraceID(traceID)
	start := time.Now()

	tree, err := e.Plan(ctx, qg)
	if err != nil {
		log.ErrorContext(ctx, "planning failed", "error", err.Error())
		return nil, err
	}

	pipeline, err := e.Materialize(qg, tree, predicates, nil)
	if err != nil {
		log.ErrorContext(ctx, "materialization failed", "error", err.Error())
		return nil, err
	}

	mm, err := memmgr.New(memmgr.DefaultBlockConfig())
	if err != nil {
		return nil, fmt.Errorf("allocating memory manager: %w", err)
	}
	defer func() { _ = mm.Close() }()

	rc := operator.NewResultCollector(pipeline)
	if err := rc.InitResultSet(mm); err != nil {
		return nil, err
	}
	if _, err := rc.Next(); err != nil {
		log.ErrorContext(ctx, "execution failed", "error", err.Error())
		return nil, err
	}

	log.InfoContext(ctx, "query executed", "rows", len(rc.Rows), "elapsed_ms", time.Since(start).Milliseconds())
	return &QueryResult{
		TraceID:     traceID,
		Rows:        rc.Rows,
		RowCount:    len(rc.Rows),
		Cardinality: tree.Cardinality,
		Cost:        tree.Cost,
		PlanKind:    tree.Root.Kind,
		Elapsed:     time.Since(start),
	}, nil
}
