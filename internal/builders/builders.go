// Package builders is the reference capability table: workflow scripts call
// these functions to assemble a node graph, and Export turns the script's
// result into a schema.Workflow.
//
//	result, err := interpreter.Interpret(src, builders.Functions())
//	wf, err := builders.Export(result)
package builders

import (
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// subnodeConnections maps each subnode capability to the connection type
// linking it to its parent.
var subnodeConnections = map[string]schema.ConnectionType{
	sdk.FnLanguageModel:  schema.ConnectionAILanguageModel,
	sdk.FnMemory:         schema.ConnectionAIMemory,
	sdk.FnTool:           schema.ConnectionAITool,
	sdk.FnOutputParser:   schema.ConnectionAIOutputParser,
	sdk.FnEmbedding:      schema.ConnectionAIEmbedding,
	sdk.FnEmbeddings:     schema.ConnectionAIEmbedding,
	sdk.FnVectorStore:    schema.ConnectionAIVectorStore,
	sdk.FnRetriever:      schema.ConnectionAIRetriever,
	sdk.FnDocumentLoader: schema.ConnectionAIDocument,
	sdk.FnTextSplitter:   schema.ConnectionAITextSplitter,
	sdk.FnReranker:       schema.ConnectionAIReranker,
}

type options struct {
	newID func() string
}

// Option configures Functions.
type Option func(*options)

// WithIDGenerator replaces uuid.NewString for node ids.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// Functions returns a fresh capability table. Builders it creates share no
// state with other tables.
func Functions(opts ...Option) sdk.Functions {
	o := &options{newID: uuid.NewString}
	for _, opt := range opts {
		opt(o)
	}
	b := &factory{newID: o.newID}

	fns := sdk.Functions{
		sdk.FnWorkflow:       b.workflow,
		sdk.FnNode:           b.nodeFunc(sdk.FnNode, sdk.KindNodeBuilder, ""),
		sdk.FnTrigger:        b.nodeFunc(sdk.FnTrigger, sdk.KindNodeBuilder, ""),
		sdk.FnIfElse:         b.nodeFunc(sdk.FnIfElse, sdk.KindIfElseBuilder, schema.NodeTypeIf),
		sdk.FnSwitchCase:     b.nodeFunc(sdk.FnSwitchCase, sdk.KindSwitchCaseBuilder, schema.NodeTypeSwitch),
		sdk.FnMerge:          b.nodeFunc(sdk.FnMerge, sdk.KindMergeBuilder, schema.NodeTypeMerge),
		sdk.FnSplitInBatches: b.nodeFunc(sdk.FnSplitInBatches, sdk.KindSplitInBatchesBuilder, schema.NodeTypeSplitInBatches),
		sdk.FnNextBatch:      nextBatch,
		sdk.FnSticky:         b.sticky,
		sdk.FnPlaceholder:    b.placeholder,
		sdk.FnNewCredential:  newCredential,
		sdk.FnFromAI:         fromAI,
		sdk.FnExpr:           expr,
	}
	for fn, conn := range subnodeConnections {
		fns[fn] = b.subnodeFunc(fn, conn)
	}
	return fns
}

type factory struct {
	newID func() string
}

func (b *factory) workflow(args []any) (any, error) {
	if len(args) < 2 {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow() needs an id and a name")
	}
	id, okID := args[0].(string)
	name, okName := args[1].(string)
	if !okID || !okName {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow(): id and name must be strings")
	}
	w := &WorkflowBuilder{id: id, name: name}
	if len(args) > 2 && !sdk.IsNullish(args[2]) {
		if _, err := w.CallMethod("settings", args[2:3]); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func (b *factory) newNode(kind string, cfg *nodeConfig) *NodeBuilder {
	id := cfg.id
	if id == "" {
		id = b.newID()
	}
	return &NodeBuilder{
		kind:        kind,
		id:          id,
		name:        cfg.name,
		typ:         cfg.typ,
		version:     cfg.version,
		parameters:  cfg.parameters,
		credentials: cfg.credentials,
		position:    cfg.position,
		disabled:    cfg.disabled,
		notes:       cfg.notes,
		onError:     cfg.onError,
		subnodes:    cfg.subnodes,
	}
}

// nodeFunc builds main nodes. trigger() shares it: whether a node starts the
// workflow is decided by its type, which validation inspects.
func (b *factory) nodeFunc(fn, kind, defaultType string) sdk.Func {
	return func(args []any) (any, error) {
		cfg, err := parseNodeConfig(fn, args, defaultType)
		if err != nil {
			return nil, err
		}
		return b.newNode(kind, cfg), nil
	}
}

func (b *factory) subnodeFunc(fn string, conn schema.ConnectionType) sdk.Func {
	return func(args []any) (any, error) {
		cfg, err := parseNodeConfig(fn, args, "")
		if err != nil {
			return nil, err
		}
		n := b.newNode(sdk.KindSubnodeBuilder, cfg)
		n.connection = conn
		return n, nil
	}
}

// sticky(content, config?) creates a sticky note.
func (b *factory) sticky(args []any) (any, error) {
	if len(args) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "sticky() needs content")
	}
	content, ok := args[0].(string)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "sticky(): content must be a string, got %s", describe(args[0]))
	}
	cfg, err := parseNodeConfig(sdk.FnSticky, args[1:], schema.NodeTypeStickyNote)
	if err != nil {
		return nil, err
	}
	cfg.typ = schema.NodeTypeStickyNote
	params := map[string]any{"content": content}
	for _, key := range []string{"color", "width", "height"} {
		if v, ok := cfg.parameters[key]; ok {
			params[key] = v
		}
	}
	// Accept the short form sticky("x", {color: 4}).
	if len(args) > 1 {
		if m, ok := sdk.ToNative(args[1]).(map[string]any); ok {
			for _, key := range []string{"color", "width", "height"} {
				if v, ok := m[key]; ok {
					params[key] = v
				}
			}
		}
	}
	cfg.parameters = params
	if cfg.name == "" {
		cfg.name = "Sticky Note"
	}
	return b.newNode(sdk.KindStickyBuilder, cfg), nil
}

// placeholder(description) stands in for a node the author has not
// decided on yet.
func (b *factory) placeholder(args []any) (any, error) {
	cfg := &nodeConfig{typ: schema.NodeTypePlaceholder, version: 1, parameters: map[string]any{}}
	if len(args) > 0 {
		switch v := args[0].(type) {
		case string:
			cfg.notes = v
		default:
			parsed, err := parseNodeConfig(sdk.FnPlaceholder, args, schema.NodeTypePlaceholder)
			if err != nil {
				return nil, err
			}
			cfg = parsed
			cfg.typ = schema.NodeTypePlaceholder
		}
	}
	if cfg.name == "" {
		cfg.name = "Placeholder"
	}
	return b.newNode(sdk.KindNodeBuilder, cfg), nil
}

func nextBatch(args []any) (any, error) {
	if len(args) != 1 {
		return nil, schema.NewError(schema.ErrCodeValidation, "nextBatch() needs a splitInBatches node")
	}
	n, ok := args[0].(*NodeBuilder)
	if !ok || n.kind != sdk.KindSplitInBatchesBuilder {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "nextBatch(): expected a splitInBatches node, got %s", describe(args[0]))
	}
	return &NextBatch{loop: n}, nil
}

// newCredential(name, id?) or newCredential({name, id}).
func newCredential(args []any) (any, error) {
	if len(args) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "newCredential() needs a name")
	}
	c := &Credential{}
	switch v := sdk.ToNative(args[0]).(type) {
	case string:
		c.Name = v
		if len(args) > 1 {
			id, ok := args[1].(string)
			if !ok {
				return nil, schema.NewError(schema.ErrCodeValidation, "newCredential(): id must be a string")
			}
			c.ID = id
		}
	case map[string]any:
		c.Name, _ = v["name"].(string)
		c.ID, _ = v["id"].(string)
	}
	if c.Name == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "newCredential(): name must be a non-empty string")
	}
	return c, nil
}

// fromAi(key, description?, type?) renders the expression that lets an AI
// agent fill a tool parameter.
func fromAI(args []any) (any, error) {
	if len(args) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "fromAi() needs a key")
	}
	parts := make([]string, 0, 3)
	for i, a := range args {
		if i >= 3 {
			break
		}
		if sdk.IsNullish(a) {
			break
		}
		s, ok := a.(string)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "fromAi(): argument %d must be a string", i+1)
		}
		if i == 0 && s == "" {
			return nil, schema.NewError(schema.ErrCodeValidation, "fromAi(): key must not be empty")
		}
		parts = append(parts, "'"+escapeSingleQuoted(s)+"'")
	}
	return "={{ $fromAI(" + strings.Join(parts, ", ") + ") }}", nil
}

func escapeSingleQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`).Replace(s)
}

// expr(s) marks s as an expression: "{{ ... }}" templates get the "="
// prefix, anything else is wrapped in braces first.
func expr(args []any) (any, error) {
	if len(args) != 1 {
		return nil, schema.NewError(schema.ErrCodeValidation, "expr() needs one string")
	}
	s, ok := args[0].(string)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "expr(): expected a string, got %s", describe(args[0]))
	}
	switch {
	case strings.HasPrefix(s, "="):
		return s, nil
	case strings.Contains(s, "{{"):
		return "=" + s, nil
	}
	return "={{ " + strings.TrimSpace(s) + " }}", nil
}

// Export converts an interpretation result into plain Go data. A workflow
// builder becomes a *schema.Workflow; anything else goes through
// sdk.ToNative, with builder values kept as json.Marshalers.
func Export(v any) (any, error) {
	switch val := v.(type) {
	case *WorkflowBuilder:
		return val.Workflow()
	case *NodeBuilder:
		return val.Node(), nil
	}
	return sdk.ToNative(v), nil
}

// ExportWorkflow is Export for callers that require a workflow.
func ExportWorkflow(v any) (*schema.Workflow, error) {
	w, ok := v.(*WorkflowBuilder)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"script must export a workflow builder, got %s", describe(v))
	}
	return w.Workflow()
}

func sortedOutputs(m map[int][]edge) []int {
	return slices.Sorted(maps.Keys(m))
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
