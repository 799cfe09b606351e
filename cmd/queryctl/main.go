// queryctl is a small operator CLI for the graphflow query execution
// core: point it at a bound query graph (JSON) and it plans, optionally
// executes, and prints the result with colored terminal output instead
// of raw log lines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"graphflow/internal/catalog"
	"graphflow/internal/catalog/fixture"
	"graphflow/internal/catalog/pgcat"
	"graphflow/internal/catalog/sqlitecat"
	"graphflow/internal/config"
	"graphflow/internal/engine"
	"graphflow/internal/operator"
	"graphflow/internal/planner"
)

var (
	promptColor = color.New(color.FgCyan, color.Bold)
	outputColor = color.New(color.FgGreen)
	errorColor  = color.New(color.FgRed)
	infoColor   = color.New(color.FgYellow)
)

func main() {
	var (
		graphPath = flag.String("graph", "", "path to a JSON-encoded planner.QueryGraph")
		explain   = flag.Bool("explain", false, "only plan the query, do not execute it")
	)
	flag.Parse()

	if *graphPath == "" {
		_, _ = errorColor.Fprintln(os.Stderr, "queryctl: -graph is required")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		_, _ = errorColor.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}

	qg, err := loadQueryGraph(*graphPath)
	if err != nil {
		_, _ = errorColor.Fprintf(os.Stderr, "loading query graph: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat, store, closeBackend, err := openCatalog(ctx, cfg)
	if err != nil {
		_, _ = errorColor.Fprintf(os.Stderr, "opening catalog: %v\n", err)
		os.Exit(1)
	}
	defer closeBackend()

	eng := engine.New(cat, store, cfg.Engine, nil)

	_, _ = promptColor.Println("query plan")
	tree, err := eng.Plan(ctx, qg)
	if err != nil {
		_, _ = errorColor.Fprintf(os.Stderr, "planning failed: %v\n", err)
		os.Exit(1)
	}
	printPlan(tree, 0)
	_, _ = infoColor.Printf("estimated cardinality %.2f, estimated cost %.2f\n", tree.Cardinality, tree.Cost)

	if *explain {
		return
	}

	_, _ = promptColor.Println("\nexecuting")
	result, err := eng.Execute(ctx, qg, map[int]operator.Predicate{})
	if err != nil {
		_, _ = errorColor.Fprintf(os.Stderr, "execution failed: %v\n", err)
		os.Exit(1)
	}
	_, _ = outputColor.Printf("%d rows in %s (trace %s)\n", result.RowCount, result.Elapsed, result.TraceID)
}

func loadQueryGraph(path string) (planner.QueryGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return planner.QueryGraph{}, err
	}
	var qg planner.QueryGraph
	if err := json.Unmarshal(data, &qg); err != nil {
		return planner.QueryGraph{}, fmt.Errorf("decoding query graph: %w", err)
	}
	return qg, nil
}

func openCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, catalog.Storage, func(), error) {
	switch cfg.Catalog.Backend {
	case "fixture":
		fc, err := fixture.Load(cfg.Catalog.Fixture.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return fc, fc, func() {}, nil

	case "sqlite":
		sc, err := sqlitecat.Open(ctx, cfg.Catalog.SQLite.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return sc, sc, func() { _ = sc.Close() }, nil

	case "postgres":
		pc, err := pgcat.Open(ctx, cfg.Catalog.Postgres)
		if err != nil {
			return nil, nil, nil, err
		}
		return pc, pc, func() { _ = pc.Close() }, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown catalog backend: %q", cfg.Catalog.Backend)
	}
}

func printPlan(tree *planner.JoinTree, depth int) {
	printNode(tree.Root, depth)
}

func printNode(node *planner.PlanNode, depth int) {
	if node == nil {
		return
	}
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	switch node.Kind {
	case planner.NodeScanKind, planner.ExprScanKind:
		fmt.Printf("%s- %s (var %d)\n", indent, node.Kind, node.Extra.NodeVar)
	case planner.RelScanKind:
		fmt.Printf("%s- %s (rel var %d, dir %d)\n", indent, node.Kind, node.Extra.RelVar, node.Extra.Dir)
	case planner.MultiwayJoinKind:
		fmt.Printf("%s- %s (join node %d)\n", indent, node.Kind, node.Extra.JoinNode)
	default:
		fmt.Printf("%s- %s\n", indent, node.Kind)
	}
	for _, c := range node.Children {
		printNode(c, depth+1)
	}
}
