package builders

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// edge is an outgoing main connection to another node's input.
type edge struct {
	target *NodeBuilder
	input  int
}

// NodeBuilder is the value node(), trigger(), ifElse(), switchCase(),
// merge(), splitInBatches(), placeholder(), sticky() and the subnode
// capabilities return. kind selects which methods apply.
type NodeBuilder struct {
	kind        string
	id          string
	name        string
	typ         string
	version     float64
	parameters  map[string]any
	credentials map[string]schema.CredentialRef
	position    *[2]float64
	disabled    bool
	notes       string
	onError     string

	// connection is set for subnodes: the ai_* type linking them to a parent.
	connection schema.ConnectionType
	subnodes   []*NodeBuilder

	outputs map[int][]edge
}

func (n *NodeBuilder) Kind() string { return n.kind }

// Name returns the configured name, or one derived from the node type.
func (n *NodeBuilder) Name() string {
	if n.name != "" {
		return n.name
	}
	return defaultName(n.typ)
}

// defaultName turns "n8n-nodes-base.httpRequest" into "HttpRequest".
func defaultName(typ string) string {
	base := typ
	if i := strings.LastIndex(typ, "."); i >= 0 {
		base = typ[i+1:]
	}
	if base == "" {
		return "Node"
	}
	return strings.ToUpper(base[:1]) + base[1:]
}

// connect adds a main connection from output to target.
func (n *NodeBuilder) connect(output int, target *NodeBuilder, input int) {
	if n.outputs == nil {
		n.outputs = make(map[int][]edge)
	}
	for _, e := range n.outputs[output] {
		if e.target == target && e.input == input {
			return
		}
	}
	n.outputs[output] = append(n.outputs[output], edge{target: target, input: input})
}

// connectTo wires output to every target and returns the chain tail.
func (n *NodeBuilder) connectTo(output int, targets []any) (*NodeBuilder, error) {
	if len(targets) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "to() needs a target")
	}
	var tail *NodeBuilder
	for _, t := range targets {
		dest, err := resolveTarget(t)
		if err != nil {
			return nil, err
		}
		for _, d := range dest {
			n.connect(output, d.node, d.input)
			tail = d.tail
		}
	}
	return tail, nil
}

type destination struct {
	node  *NodeBuilder
	input int
	tail  *NodeBuilder
}

// resolveTarget maps the things a connection can point at to node inputs.
// Arrays fan out.
func resolveTarget(v any) ([]destination, error) {
	switch t := v.(type) {
	case *NodeBuilder:
		if t.connection != "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"%s is a subnode; attach it through config.subnodes instead of connecting it", t.Name())
		}
		return []destination{{node: t, tail: t}}, nil
	case *NodeChain:
		return []destination{{node: t.head, tail: t.tail}}, nil
	case *InputHandle:
		return []destination{{node: t.node, input: t.index, tail: t.node}}, nil
	case *NextBatch:
		return []destination{{node: t.loop, tail: t.loop}}, nil
	case []any:
		var out []destination
		for _, item := range t {
			d, err := resolveTarget(item)
			if err != nil {
				return nil, err
			}
			out = append(out, d...)
		}
		return out, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "cannot connect to %s", describe(v))
}

func (n *NodeBuilder) CallMethod(method string, args []any) (any, error) {
	switch method {
	case "to", "then":
		tail, err := n.connectTo(0, args)
		if err != nil {
			return nil, err
		}
		return &NodeChain{head: n, tail: tail}, nil
	case "output":
		idx, err := indexArg(method, args)
		if err != nil {
			return nil, err
		}
		return &OutputHandle{node: n, index: idx}, nil
	case "input":
		idx, err := indexArg(method, args)
		if err != nil {
			return nil, err
		}
		return &InputHandle{node: n, index: idx}, nil
	case "onError":
		n.onError = "continueErrorOutput"
		if _, err := n.connectTo(n.errorOutput(), args); err != nil {
			return nil, err
		}
		return n, nil
	}

	switch {
	case n.kind == sdk.KindIfElseBuilder && (method == "onTrue" || method == "onFalse"):
		output := 0
		if method == "onFalse" {
			output = 1
		}
		if _, err := n.connectTo(output, args); err != nil {
			return nil, err
		}
		return n, nil
	case n.kind == sdk.KindSwitchCaseBuilder && method == "onCase":
		idx, err := indexArg(method, args)
		if err != nil {
			return nil, err
		}
		if _, err := n.connectTo(idx, args[1:]); err != nil {
			return nil, err
		}
		return n, nil
	case n.kind == sdk.KindSplitInBatchesBuilder && (method == "onDone" || method == "onEachBatch"):
		output := 0
		if method == "onEachBatch" {
			output = 1
		}
		if _, err := n.connectTo(output, args); err != nil {
			return nil, err
		}
		return n, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s has no method %q", n.kind, method)
}

// errorOutput is the output index error items leave through: one past the
// regular outputs.
func (n *NodeBuilder) errorOutput() int {
	switch n.kind {
	case sdk.KindIfElseBuilder, sdk.KindSplitInBatchesBuilder:
		return 2
	}
	return 1
}

func (n *NodeBuilder) GetProperty(name string) (any, bool) {
	switch name {
	case "name":
		return n.Name(), true
	case "type":
		return n.typ, true
	case "id":
		return n.id, true
	case "version":
		return n.version, true
	case "parameters":
		return n.parameters, true
	}
	return nil, false
}

// Node renders the builder as a workflow node. Naming and layout are
// finalized by the workflow; position may be nil here.
func (n *NodeBuilder) Node() schema.Node {
	node := schema.Node{
		ID:          n.id,
		Name:        n.Name(),
		Type:        n.typ,
		TypeVersion: n.version,
		Parameters:  n.parameters,
		Credentials: n.credentials,
		Disabled:    n.disabled,
		Notes:       n.notes,
		OnError:     n.onError,
	}
	if node.Parameters == nil {
		node.Parameters = map[string]any{}
	}
	if n.position != nil {
		node.Position = *n.position
	}
	return node
}

func (n *NodeBuilder) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Node())
}

// NodeChain is the result of node.to(...): it remembers where the chain
// started and where it currently ends.
type NodeChain struct {
	head, tail *NodeBuilder
}

func (*NodeChain) Kind() string { return sdk.KindNodeChain }

func (c *NodeChain) CallMethod(method string, args []any) (any, error) {
	switch method {
	case "to", "then":
		if c.tail == nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "chain has no end to continue from")
		}
		tail, err := c.tail.connectTo(0, args)
		if err != nil {
			return nil, err
		}
		return &NodeChain{head: c.head, tail: tail}, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "node chain has no method %q", method)
}

func (c *NodeChain) GetProperty(name string) (any, bool) {
	switch name {
	case "head":
		return c.head, true
	case "tail":
		return c.tail, true
	}
	return nil, false
}

// OutputHandle is node.output(i).
type OutputHandle struct {
	node  *NodeBuilder
	index int
}

func (*OutputHandle) Kind() string { return sdk.KindOutputHandle }

func (h *OutputHandle) CallMethod(method string, args []any) (any, error) {
	switch method {
	case "to", "then":
		tail, err := h.node.connectTo(h.index, args)
		if err != nil {
			return nil, err
		}
		return &NodeChain{head: h.node, tail: tail}, nil
	}
	return nil, schema.NewErrorf(schema.ErrCodeValidation, "output handle has no method %q", method)
}

// InputHandle is node.input(i); it is only ever a connection target.
type InputHandle struct {
	node  *NodeBuilder
	index int
}

func (*InputHandle) Kind() string { return sdk.KindInputHandle }

// NextBatch loops a chain back to its split-in-batches node.
type NextBatch struct {
	loop *NodeBuilder
}

func (*NextBatch) Kind() string { return sdk.KindNextBatch }

// Credential is newCredential(name, id?).
type Credential struct {
	Name string
	ID   string
}

func (*Credential) Kind() string { return sdk.KindCredential }

func (c *Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(schema.CredentialRef{ID: c.ID, Name: c.Name})
}

func indexArg(method string, args []any) (int, error) {
	if len(args) == 0 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "%s() needs an index", method)
	}
	f, ok := args[0].(float64)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "%s() index must be a non-negative integer, got %s", method, describe(args[0]))
	}
	return int(f), nil
}

func describe(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case sdk.UndefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case []any:
		return "array"
	case map[string]any, *sdk.Object:
		return "object"
	case sdk.Value:
		return val.Kind()
	case string:
		return fmt.Sprintf("string %q", val)
	}
	return fmt.Sprintf("%T", v)
}
