package validation

import (
	"fmt"

	"github.com/rendis/wfscript/pkg/schema"
)

// validateDAG performs graph analysis on main connections: cycle detection
// (Kahn's algorithm) and unreachable-node detection (BFS from triggers).
// Edges into splitInBatches nodes close loops and are ignored for cycles.
func validateDAG(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	byName := make(map[string]*schema.Node, len(wf.Nodes))
	for i := range wf.Nodes {
		byName[wf.Nodes[i].Name] = &wf.Nodes[i]
	}

	// next[name] = main successors, in node order for deterministic output.
	next := make(map[string][]string, len(wf.Nodes))
	inDegree := make(map[string]int, len(wf.Nodes))
	hasIncoming := make(map[string]bool, len(wf.Nodes))
	subnodes := make(map[string]bool)
	for _, n := range wf.Nodes {
		outs := wf.Connections[n.Name]
		for typ := range outs {
			if schema.IsAIConnection(typ) {
				subnodes[n.Name] = true
			}
		}
		seen := make(map[string]bool)
		for _, targets := range outs[schema.ConnectionMain] {
			for _, t := range targets {
				if byName[t.Node] == nil || seen[t.Node] {
					continue // invalid refs already caught by semantic
				}
				seen[t.Node] = true
				next[n.Name] = append(next[n.Name], t.Node)
				hasIncoming[t.Node] = true
				if byName[t.Node].Type != schema.NodeTypeSplitInBatches {
					inDegree[t.Node]++
				}
			}
		}
	}

	// Kahn's algorithm for cycle detection.
	queue := make([]string, 0, len(wf.Nodes))
	for _, n := range wf.Nodes {
		if inDegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}
	visited := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range next[name] {
			if byName[to].Type == schema.NodeTypeSplitInBatches {
				continue
			}
			inDegree[to]--
			if inDegree[to] == 0 {
				queue = append(queue, to)
			}
		}
	}
	if visited != len(wf.Nodes) {
		var stuck []string
		for _, n := range wf.Nodes {
			if inDegree[n.Name] > 0 {
				stuck = append(stuck, n.Name)
			}
		}
		result.AddError("connections", schema.ErrCodeCycleDetected,
			fmt.Sprintf("workflow contains a cycle through %q; loops must go through a splitInBatches node", stuck))
		return result // cycle makes reachability analysis meaningless
	}

	// Reachability: BFS from triggers, or from nodes without incoming
	// connections when the workflow has no trigger.
	var roots []string
	for _, n := range wf.Nodes {
		if schema.IsTriggerType(n.Type) {
			roots = append(roots, n.Name)
		}
	}
	if len(roots) == 0 {
		for _, n := range wf.Nodes {
			if !hasIncoming[n.Name] && !subnodes[n.Name] && n.Type != schema.NodeTypeStickyNote {
				roots = append(roots, n.Name)
			}
		}
	}

	reachable := make(map[string]bool, len(wf.Nodes))
	for _, r := range roots {
		reachable[r] = true
	}
	for len(roots) > 0 {
		name := roots[0]
		roots = roots[1:]
		for _, to := range next[name] {
			if !reachable[to] {
				reachable[to] = true
				roots = append(roots, to)
			}
		}
	}

	for i, n := range wf.Nodes {
		if reachable[n.Name] || subnodes[n.Name] || n.Type == schema.NodeTypeStickyNote {
			continue
		}
		result.AddWarning(fmt.Sprintf("nodes[%d]", i), schema.ErrCodeValidation,
			fmt.Sprintf("node %q is not reachable from any trigger", n.Name))
	}

	return result
}
