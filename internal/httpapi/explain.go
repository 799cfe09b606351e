package httpapi

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"graphflow/internal/planner"
)

// RenderPlanHTML renders tree as a markdown plan description and converts
// it to HTML with goldmark, for the /v1/explain debug view.
func RenderPlanHTML(tree *planner.JoinTree) ([]byte, error) {
	md := planTreeMarkdown(tree)
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return nil, fmt.Errorf("rendering plan markdown: %w", err)
	}
	return buf.Bytes(), nil
}

func planTreeMarkdown(tree *planner.JoinTree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Query Plan\n\n")
	fmt.Fprintf(&b, "- **Estimated cardinality**: %.2f\n", tree.Cardinality)
	fmt.Fprintf(&b, "- **Estimated cost**: %.2f\n\n", tree.Cost)
	writePlanNode(&b, tree.Root, 0)
	return b.String()
}

func writePlanNode(b *strings.Builder, node *planner.PlanNode, depth int) {
	if node == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- **%s**", indent, node.Kind)
	switch node.Kind {
	case planner.NodeScanKind, planner.ExprScanKind:
		fmt.Fprintf(b, " (var `%d`)", node.Extra.NodeVar)
	case planner.RelScanKind:
		fmt.Fprintf(b, " (rel var `%d`, dir `%d`)", node.Extra.RelVar, node.Extra.Dir)
	case planner.MultiwayJoinKind:
		fmt.Fprintf(b, " (join node `%d`)", node.Extra.JoinNode)
	}
	b.WriteString("\n")
	for _, c := range node.Children {
		writePlanNode(b, c, depth+1)
	}
}
