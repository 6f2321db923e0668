// Package sdk defines the boundary between the interpreter and the host: the
// capability table of builder functions, and the interfaces host values
// implement so the interpreter can dispatch methods and properties on them.
package sdk

import (
	"slices"

	"github.com/rendis/wfscript/pkg/schema"
)

// Func is a host-implemented capability. It receives fully evaluated
// arguments in source order.
type Func func(args []any) (any, error)

// Functions is the capability table handed to the interpreter.
type Functions map[string]Func

// Value is implemented by every host object a capability returns. Kind is the
// nominal tag the method allowlist is keyed by.
type Value interface {
	Kind() string
}

// MethodCaller is a Value with callable methods. The interpreter only invokes
// CallMethod after the method name passed the allowlist for Kind().
type MethodCaller interface {
	Value
	CallMethod(name string, args []any) (any, error)
}

// PropertyGetter exposes readable properties on a host value.
type PropertyGetter interface {
	GetProperty(name string) (any, bool)
}

// PropertySetter exposes writable properties on a host value.
type PropertySetter interface {
	SetProperty(name string, value any) error
}

// Pseudo-kinds for values that are not produced by capabilities.
const (
	KindString = "string"
	KindJSON   = "json"
)

// Kinds returned by the reference builders.
const (
	KindWorkflowBuilder       = "workflow-builder"
	KindNodeBuilder           = "node-builder"
	KindNodeChain             = "node-chain"
	KindIfElseBuilder         = "if-else-builder"
	KindSwitchCaseBuilder     = "switch-case-builder"
	KindMergeBuilder          = "merge-builder"
	KindSplitInBatchesBuilder = "split-in-batches-builder"
	KindOutputHandle          = "output-handle"
	KindInputHandle           = "input-handle"
	KindSubnodeBuilder        = "subnode-builder"
	KindStickyBuilder         = "sticky-builder"
	KindCredential            = "credential"
	KindNextBatch             = "next-batch"
)

// Capability names. The set is closed: a table may omit entries but never add
// names outside of it.
const (
	FnWorkflow       = "workflow"
	FnNode           = "node"
	FnTrigger        = "trigger"
	FnSticky         = "sticky"
	FnPlaceholder    = "placeholder"
	FnNewCredential  = "newCredential"
	FnIfElse         = "ifElse"
	FnSwitchCase     = "switchCase"
	FnMerge          = "merge"
	FnSplitInBatches = "splitInBatches"
	FnNextBatch      = "nextBatch"
	FnLanguageModel  = "languageModel"
	FnMemory         = "memory"
	FnTool           = "tool"
	FnOutputParser   = "outputParser"
	FnEmbedding      = "embedding"
	FnEmbeddings     = "embeddings"
	FnVectorStore    = "vectorStore"
	FnRetriever      = "retriever"
	FnDocumentLoader = "documentLoader"
	FnTextSplitter   = "textSplitter"
	FnReranker       = "reranker"
	FnFromAI         = "fromAi"
	FnExpr           = "expr"
)

// FunctionNames lists every capability name in declaration order.
var FunctionNames = []string{
	FnWorkflow, FnNode, FnTrigger, FnSticky, FnPlaceholder, FnNewCredential,
	FnIfElse, FnSwitchCase, FnMerge, FnSplitInBatches, FnNextBatch,
	FnLanguageModel, FnMemory, FnTool, FnOutputParser, FnEmbedding, FnEmbeddings,
	FnVectorStore, FnRetriever, FnDocumentLoader, FnTextSplitter, FnReranker,
	FnFromAI, FnExpr,
}

// IsFunctionName reports whether name belongs to the closed capability set.
func IsFunctionName(name string) bool {
	return slices.Contains(FunctionNames, name)
}

// Validate checks that every entry is a known capability name with a non-nil
// function.
func (f Functions) Validate() error {
	for name, fn := range f {
		if !IsFunctionName(name) {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unknown capability %q; capability names are fixed", name).
				WithDetails(map[string]any{"capability": name, "available": FunctionNames})
		}
		if fn == nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "capability %q is nil", name)
		}
	}
	return nil
}

// Clone returns a shallow copy so a caller mutating its own table cannot
// affect an interpretation in progress.
func (f Functions) Clone() Functions {
	cp := make(Functions, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return cp
}
