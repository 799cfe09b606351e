// Package mcptools exposes the query engine over the Model Context
// Protocol, so an LLM-driven client can run a query, inspect its plan,
// or check engine statistics as MCP tool calls instead of raw HTTP.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	mcp "github.com/fredcamaral/gomcp-sdk"

	"graphflow/internal/engine"
	"graphflow/internal/logging"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
)

// Register adds the engine's tool set to srv.
func Register(srv *mcp.Server, eng *engine.Engine) {
	log := logging.MCPToolsLogger

	srv.AddTool(mcp.NewTool(
		"run_query",
		"Plan, materialize, and execute a bound query graph against the configured catalog, returning its result rows.",
		mcp.ObjectSchema("run_query parameters", map[string]interface{}{
			"graph": map[string]interface{}{
				"type":        "object",
				"description": "The bound planner.QueryGraph (nodes, rels, predicates) to execute.",
			},
		}, []string{"graph"}),
	), mcp.ToolHandlerFunc(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		qg, err := decodeQueryGraph(params)
		if err != nil {
			return nil, err
		}
		result, err := eng.Execute(ctx, qg, map[int]operator.Predicate{})
		if err != nil {
			log.ErrorContext(ctx, "run_query failed", "error", err.Error())
			return nil, err
		}
		return result, nil
	}))

	srv.AddTool(mcp.NewTool(
		"explain_plan",
		"Solve a cost-based join order for a bound query graph without executing it, returning the chosen plan tree and its estimated cardinality/cost.",
		mcp.ObjectSchema("explain_plan parameters", map[string]interface{}{
			"graph": map[string]interface{}{
				"type":        "object",
				"description": "The bound planner.QueryGraph to plan.",
			},
		}, []string{"graph"}),
	), mcp.ToolHandlerFunc(func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
		qg, err := decodeQueryGraph(params)
		if err != nil {
			return nil, err
		}
		tree, err := eng.Plan(ctx, qg)
		if err != nil {
			return nil, err
		}
		return tree, nil
	}))

	srv.AddTool(mcp.NewTool(
		"engine_stats",
		"Report the number of node and rel tables the engine's catalog currently exposes.",
		mcp.ObjectSchema("engine_stats parameters", map[string]interface{}{}, nil),
	), mcp.ToolHandlerFunc(func(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
		return map[string]int{
			"node_tables": len(eng.Catalog.AllNodeTables()),
			"rel_tables":  len(eng.Catalog.AllRelTables()),
		}, nil
	}))
}

// decodeQueryGraph pulls the "graph" parameter (already decoded from JSON
// into a generic map by the MCP transport) back into a planner.QueryGraph
// via a JSON roundtrip, mirroring how tool parameters are untyped at the
// protocol boundary.
func decodeQueryGraph(params map[string]interface{}) (planner.QueryGraph, error) {
	raw, ok := params["graph"]
	if !ok {
		return planner.QueryGraph{}, fmt.Errorf("missing required parameter: graph")
	}
	return remarshalQueryGraph(raw)
}

func remarshalQueryGraph(raw interface{}) (planner.QueryGraph, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return planner.QueryGraph{}, fmt.Errorf("encoding graph parameter: %w", err)
	}
	var qg planner.QueryGraph
	if err := json.Unmarshal(data, &qg); err != nil {
		return planner.QueryGraph{}, fmt.Errorf("decoding graph parameter: %w", err)
	}
	return qg, nil
}
