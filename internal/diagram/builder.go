package diagram

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rendis/wfscript/pkg/schema"
)

// Build constructs a DiagramModel from a workflow. Main nodes keep their
// order in wf.Nodes; subnodes are grouped under the node they attach to and
// sticky notes become Notes.
func Build(wf *schema.Workflow) (*DiagramModel, error) {
	if wf == nil {
		return nil, fmt.Errorf("diagram: nil workflow")
	}

	byName := make(map[string]*schema.Node, len(wf.Nodes))
	ids := make(map[string]string, len(wf.Nodes))
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if _, dup := byName[n.Name]; dup {
			return nil, fmt.Errorf("diagram: duplicate node name %q", n.Name)
		}
		byName[n.Name] = n
		ids[n.Name] = "n" + strconv.Itoa(i)
	}

	model := &DiagramModel{Title: wf.Name}
	if model.Title == "" {
		model.Title = "Workflow"
	}

	subnodes := subnodeNames(wf)
	nodeIndex := make(map[string]*Node, len(wf.Nodes))
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if n.Type == schema.NodeTypeStickyNote {
			if content, ok := n.Parameters["content"].(string); ok && content != "" {
				model.Notes = append(model.Notes, content)
			}
			continue
		}
		dn := &Node{
			ID:       ids[n.Name],
			Label:    n.Name,
			Type:     shortType(n.Type),
			Kind:     kindOf(n, subnodes[n.Name]),
			Disabled: n.Disabled,
		}
		nodeIndex[n.Name] = dn
		if !subnodes[n.Name] {
			model.Nodes = append(model.Nodes, dn)
		}
	}

	for i := range wf.Nodes {
		src := &wf.Nodes[i]
		outs, ok := wf.Connections[src.Name]
		if !ok {
			continue
		}
		from := nodeIndex[src.Name]
		if from == nil {
			return nil, fmt.Errorf("diagram: connections from unknown node %q", src.Name)
		}
		for _, typ := range sortedTypes(outs) {
			for output, targets := range outs[typ] {
				for _, target := range targets {
					to := nodeIndex[target.Node]
					if to == nil {
						return nil, fmt.Errorf("diagram: %q connects to unknown node %q", src.Name, target.Node)
					}
					if schema.IsAIConnection(typ) {
						attach(to, from, string(typ))
						continue
					}
					model.Edges = append(model.Edges, Edge{
						From:  from.ID,
						To:    to.ID,
						Label: edgeLabel(src, output, target.Index),
					})
				}
			}
		}
	}

	model.Levels = buildLevels(model)
	return model, nil
}

// subnodeNames returns the nodes whose only outgoing connections are ai_*.
func subnodeNames(wf *schema.Workflow) map[string]bool {
	out := make(map[string]bool)
	for name, outs := range wf.Connections {
		ai, main := false, false
		for typ := range outs {
			if schema.IsAIConnection(typ) {
				ai = true
			} else {
				main = true
			}
		}
		if ai && !main {
			out[name] = true
		}
	}
	return out
}

func kindOf(n *schema.Node, subnode bool) NodeKind {
	switch {
	case subnode:
		return NodeKindSubnode
	case schema.IsTriggerType(n.Type):
		return NodeKindTrigger
	}
	switch n.Type {
	case schema.NodeTypeIf, schema.NodeTypeSwitch:
		return NodeKindCondition
	case schema.NodeTypeMerge:
		return NodeKindMerge
	case schema.NodeTypeSplitInBatches:
		return NodeKindLoop
	case schema.NodeTypePlaceholder:
		return NodeKindPlaceholder
	}
	return NodeKindAction
}

// shortType drops the package prefix: "n8n-nodes-base.httpRequest" becomes
// "httpRequest".
func shortType(typ string) string {
	if i := strings.LastIndex(typ, "."); i >= 0 {
		return typ[i+1:]
	}
	return typ
}

// sortedTypes puts main first, then the ai_* types alphabetically.
func sortedTypes(outs schema.NodeOutputs) []schema.ConnectionType {
	types := make([]schema.ConnectionType, 0, len(outs))
	for t := range outs {
		types = append(types, t)
	}
	slices.SortFunc(types, func(a, b schema.ConnectionType) int {
		switch {
		case a == b:
			return 0
		case a == schema.ConnectionMain:
			return -1
		case b == schema.ConnectionMain:
			return 1
		}
		return strings.Compare(string(a), string(b))
	})
	return types
}

func attach(parent, sub *Node, typ string) {
	label := strings.TrimPrefix(typ, "ai_")
	var group *SubGraph
	for _, sg := range parent.Children {
		if sg.Label == label {
			group = sg
			break
		}
	}
	if group == nil {
		group = &SubGraph{Label: label}
		parent.Children = append(parent.Children, group)
	}
	group.Nodes = append(group.Nodes, sub)
	group.Edges = append(group.Edges, Edge{From: sub.ID, To: parent.ID, Label: label})
}

// edgeLabel names an output by what it means for the source node type.
func edgeLabel(src *schema.Node, output, input int) string {
	var label string
	switch {
	case src.OnError == "continueErrorOutput" && output == errorOutput(src.Type):
		label = "error"
	case src.Type == schema.NodeTypeIf:
		label = [...]string{"true", "false"}[min(output, 1)]
	case src.Type == schema.NodeTypeSwitch:
		label = "case " + strconv.Itoa(output)
	case src.Type == schema.NodeTypeSplitInBatches:
		label = [...]string{"done", "loop"}[min(output, 1)]
	case output > 0:
		label = "out " + strconv.Itoa(output)
	}
	if input > 0 {
		if label != "" {
			label += " "
		}
		label += "→ in " + strconv.Itoa(input)
	}
	return label
}

func errorOutput(typ string) int {
	switch typ {
	case schema.NodeTypeIf, schema.NodeTypeSplitInBatches:
		return 2
	}
	return 1
}

// buildLevels assigns each main node the BFS distance from the nodes
// without incoming edges. Edges back to an ancestor are marked Back and
// ignored. Nodes only reachable through a cycle start new roots.
func buildLevels(model *DiagramModel) [][]string {
	adj := make(map[string][]int, len(model.Nodes))
	indegree := make(map[string]int, len(model.Nodes))
	for i, e := range model.Edges {
		adj[e.From] = append(adj[e.From], i)
	}

	markBackEdges(model, adj)
	for _, e := range model.Edges {
		if !e.Back {
			indegree[e.To]++
		}
	}

	level := make(map[string]int, len(model.Nodes))
	var levels [][]string
	bfs := func(roots []string) {
		queue := roots
		for _, r := range roots {
			level[r] = 0
		}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, ei := range adj[id] {
				e := model.Edges[ei]
				if e.Back {
					continue
				}
				if _, seen := level[e.To]; !seen {
					level[e.To] = level[id] + 1
					queue = append(queue, e.To)
				}
			}
		}
	}

	var roots []string
	for _, n := range model.Nodes {
		if indegree[n.ID] == 0 {
			roots = append(roots, n.ID)
		}
	}
	bfs(roots)
	for _, n := range model.Nodes {
		if _, seen := level[n.ID]; !seen {
			bfs([]string{n.ID})
		}
	}

	for _, n := range model.Nodes {
		l := level[n.ID]
		for len(levels) <= l {
			levels = append(levels, nil)
		}
		levels[l] = append(levels[l], n.ID)
	}
	return levels
}

// markBackEdges runs a DFS, starting from nodes without incoming edges, and
// flags edges into a node that is still on the stack.
func markBackEdges(model *DiagramModel, adj map[string][]int) {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(model.Nodes))
	var visit func(id string)
	visit = func(id string) {
		state[id] = active
		for _, ei := range adj[id] {
			to := model.Edges[ei].To
			switch state[to] {
			case active:
				model.Edges[ei].Back = true
			case unvisited:
				visit(to)
			}
		}
		state[id] = done
	}
	incoming := make(map[string]bool, len(model.Nodes))
	for _, e := range model.Edges {
		incoming[e.To] = true
	}
	for _, rootsOnly := range []bool{true, false} {
		for _, n := range model.Nodes {
			if state[n.ID] == unvisited && (!rootsOnly || !incoming[n.ID]) {
				visit(n.ID)
			}
		}
	}
}
