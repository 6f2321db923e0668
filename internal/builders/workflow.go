package builders

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// Auto-layout grid for nodes without an explicit position.
const (
	layoutOriginX  = 250.0
	layoutOriginY  = 300.0
	layoutColumn   = 220.0
	layoutSubnodeY = 220.0
	layoutSubnodeX = 120.0
	layoutStickyY  = -200.0
)

// WorkflowBuilder is the value workflow(id, name, settings?) returns.
type WorkflowBuilder struct {
	id       string
	name     string
	settings map[string]any

	// roots are the nodes passed to add/then/connect, in call order. The
	// graph is collected from them at export, so connections made after
	// add() are included.
	roots []*NodeBuilder
	tail  *NodeBuilder
}

func (*WorkflowBuilder) Kind() string { return sdk.KindWorkflowBuilder }

func (w *WorkflowBuilder) addRoot(n *NodeBuilder) {
	for _, r := range w.roots {
		if r == n {
			return
		}
	}
	w.roots = append(w.roots, n)
}

// register adds a value to the workflow and returns the node later then()
// calls continue from.
func (w *WorkflowBuilder) register(v any) (*NodeBuilder, error) {
	switch t := v.(type) {
	case *NodeBuilder:
		if t.connection != "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"%s is a subnode; attach it to a node through config.subnodes", t.Name())
		}
		w.addRoot(t)
		return t, nil
	case *NodeChain:
		w.addRoot(t.head)
		return t.tail, nil
	case *OutputHandle:
		w.addRoot(t.node)
		return t.node, nil
	case []any:
		var last *NodeBuilder
		for _, item := range t {
			n, err := w.register(item)
			if err != nil {
				return nil, err
			}
			last = n
		}
		return last, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "cannot add %s to a workflow", describe(v))
}

func (w *WorkflowBuilder) CallMethod(method string, args []any) (any, error) {
	switch method {
	case "add":
		if len(args) == 0 {
			return nil, schema.NewError(schema.ErrCodeValidation, "add() needs a node")
		}
		for _, a := range args {
			tail, err := w.register(a)
			if err != nil {
				return nil, err
			}
			if tail != nil {
				w.tail = tail
			}
		}
		return w, nil

	case "then", "to":
		if w.tail == nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s() needs a preceding add()", method)
		}
		tail, err := w.tail.connectTo(0, args)
		if err != nil {
			return nil, err
		}
		// Targets are reachable from the current tail, which is already
		// reachable from a root.
		w.tail = tail
		return w, nil

	case "connect":
		if len(args) != 2 {
			return nil, schema.NewError(schema.ErrCodeValidation, "connect() needs a source and a target")
		}
		src, output := args[0], 0
		var from *NodeBuilder
		switch s := src.(type) {
		case *NodeBuilder:
			from = s
		case *OutputHandle:
			from, output = s.node, s.index
		case *NodeChain:
			from = s.tail
		default:
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "connect(): cannot connect from %s", describe(src))
		}
		if from == nil || from.connection != "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "connect(): source must be a main node")
		}
		if _, err := from.connectTo(output, args[1:]); err != nil {
			return nil, err
		}
		w.addRoot(from)
		return w, nil

	case "settings":
		if len(args) != 1 {
			return nil, schema.NewError(schema.ErrCodeValidation, "settings() needs an object")
		}
		m, ok := sdk.ToNative(args[0]).(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "settings() expects an object, got %s", describe(args[0]))
		}
		if w.settings == nil {
			w.settings = map[string]any{}
		}
		maps.Copy(w.settings, m)
		return w, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "workflow builder has no method %q", method)
}

func (w *WorkflowBuilder) GetProperty(name string) (any, bool) {
	switch name {
	case "id":
		return w.id, true
	case "name":
		return w.name, true
	}
	return nil, false
}

// collect walks the graph from the roots: main nodes in discovery order,
// each followed by its subnodes.
func (w *WorkflowBuilder) collect() []*NodeBuilder {
	seen := map[*NodeBuilder]bool{}
	var order []*NodeBuilder

	var visitSub func(n *NodeBuilder)
	visitSub = func(n *NodeBuilder) {
		for _, s := range n.subnodes {
			if seen[s] {
				continue
			}
			seen[s] = true
			order = append(order, s)
			visitSub(s)
		}
	}

	var visit func(n *NodeBuilder)
	visit = func(n *NodeBuilder) {
		if seen[n] {
			return
		}
		seen[n] = true
		order = append(order, n)
		visitSub(n)
		for _, out := range sortedOutputs(n.outputs) {
			for _, e := range n.outputs[out] {
				visit(e.target)
			}
		}
	}
	for _, r := range w.roots {
		visit(r)
	}
	return order
}

// Workflow exports the builder graph. Duplicate node names get a numeric
// suffix in discovery order; nodes without a position are laid out on a grid.
func (w *WorkflowBuilder) Workflow() (*schema.Workflow, error) {
	nodes := w.collect()
	names := make(map[*NodeBuilder]string, len(nodes))
	used := map[string]bool{}
	for _, n := range nodes {
		name := n.Name()
		if used[name] {
			for i := 1; ; i++ {
				candidate := name + strconv.Itoa(i)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[n] = name
	}

	wf := &schema.Workflow{
		ID:          w.id,
		Name:        w.name,
		Nodes:       make([]schema.Node, 0, len(nodes)),
		Connections: map[string]schema.NodeOutputs{},
		Settings:    w.settings,
	}

	positions := layout(nodes)
	for _, n := range nodes {
		node := n.Node()
		node.Name = names[n]
		node.Position = positions[n]
		wf.Nodes = append(wf.Nodes, node)

		for _, out := range sortedOutputs(n.outputs) {
			main := outputsFor(wf, node.Name, schema.ConnectionMain, out)
			for _, e := range n.outputs[out] {
				main[out] = append(main[out], schema.ConnectionTarget{
					Node: names[e.target], Type: schema.ConnectionMain, Index: e.input,
				})
			}
		}
		for _, s := range n.subnodes {
			sub := outputsFor(wf, names[s], s.connection, 0)
			sub[0] = append(sub[0], schema.ConnectionTarget{
				Node: node.Name, Type: s.connection, Index: 0,
			})
		}
	}
	return wf, nil
}

func (w *WorkflowBuilder) MarshalJSON() ([]byte, error) {
	wf, err := w.Workflow()
	if err != nil {
		return nil, err
	}
	return json.Marshal(wf)
}

func (w *WorkflowBuilder) String() string {
	return fmt.Sprintf("workflow(%s, %s)", w.id, w.name)
}

// outputsFor returns the per-index target lists for a node's connection type,
// growing it so index is addressable. Empty slots stay empty lists.
func outputsFor(wf *schema.Workflow, node string, typ schema.ConnectionType, index int) [][]schema.ConnectionTarget {
	outs, ok := wf.Connections[node]
	if !ok {
		outs = schema.NodeOutputs{}
		wf.Connections[node] = outs
	}
	lists := outs[typ]
	for len(lists) <= index {
		lists = append(lists, []schema.ConnectionTarget{})
	}
	outs[typ] = lists
	return lists
}

func layout(nodes []*NodeBuilder) map[*NodeBuilder][2]float64 {
	pos := make(map[*NodeBuilder][2]float64, len(nodes))
	col := 0
	sticky := 0
	for _, n := range nodes {
		if n.connection != "" {
			continue
		}
		if n.position != nil {
			pos[n] = *n.position
		} else if n.kind == sdk.KindStickyBuilder {
			pos[n] = [2]float64{layoutOriginX + float64(sticky)*layoutColumn*2, layoutOriginY + layoutStickyY}
			sticky++
		} else {
			pos[n] = [2]float64{layoutOriginX + float64(col)*layoutColumn, layoutOriginY}
			col++
		}
	}

	var place func(parent *NodeBuilder)
	place = func(parent *NodeBuilder) {
		base := pos[parent]
		for i, s := range parent.subnodes {
			if _, done := pos[s]; done {
				continue
			}
			if s.position != nil {
				pos[s] = *s.position
			} else {
				pos[s] = [2]float64{base[0] + float64(i)*layoutSubnodeX, base[1] + layoutSubnodeY}
			}
			place(s)
		}
	}
	for _, n := range nodes {
		if n.connection == "" {
			place(n)
		}
	}
	return pos
}
