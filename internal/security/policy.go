// Package security holds the static rules the evaluator consults before every
// identifier reference, declaration, property access and method call. It has
// no knowledge of the AST; callers attach source locations to the errors.
package security

import (
	"maps"
	"slices"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// Tier classifies a reserved identifier.
type Tier int

const (
	TierNone Tier = iota
	// TierCore names can never be declared.
	TierCore
	// TierSoft names may be declared; the binding is aliased so the capability
	// stays callable.
	TierSoft
)

func (t Tier) String() string {
	switch t {
	case TierCore:
		return "core"
	case TierSoft:
		return "soft"
	}
	return "none"
}

var coreReserved = []string{sdk.FnWorkflow, sdk.FnNode, sdk.FnTrigger}

var dangerousGlobals = []string{
	"eval", "Function", "require", "process", "global", "globalThis", "window",
	"self", "document", "Object", "Array", "Math", "console", "Promise", "fetch",
	"Error", "WebAssembly", "JSON", "Reflect", "Proxy", "Symbol", "Date", "RegExp",
	"String", "Number", "Boolean", "Map", "Set", "WeakMap", "WeakSet",
	"setTimeout", "setInterval", "setImmediate", "queueMicrotask", "Buffer",
	"module", "exports", "__dirname", "__filename", "arguments", "Atomics",
	"SharedArrayBuffer", "Intl", "XMLHttpRequest", "importScripts", "Deno", "Bun",
}

// literalNames are global value properties that look like identifiers.
var literalNames = []string{"undefined", "NaN", "Infinity"}

var dangerousProperties = []string{"__proto__", "prototype", "constructor"}

var chainMethods = []string{"to", "then"}

var nodeMethods = []string{"to", "then", "input", "output", "onError"}

var defaultMethods = map[string][]string{
	sdk.KindString:                {"repeat"},
	sdk.KindJSON:                  {"stringify"},
	sdk.KindWorkflowBuilder:       {"add", "then", "to", "connect", "settings"},
	sdk.KindNodeBuilder:           nodeMethods,
	sdk.KindNodeChain:             chainMethods,
	sdk.KindIfElseBuilder:         append(slices.Clone(nodeMethods), "onTrue", "onFalse"),
	sdk.KindSwitchCaseBuilder:     append(slices.Clone(nodeMethods), "onCase"),
	sdk.KindMergeBuilder:          nodeMethods,
	sdk.KindSplitInBatchesBuilder: {"to", "then", "input", "output", "onDone", "onEachBatch"},
	sdk.KindOutputHandle:          chainMethods,
}

// Policy is an immutable rule set. The zero value is not usable; start from
// Default.
type Policy struct {
	core      map[string]bool
	soft      map[string]bool
	dangerous map[string]bool
	literals  map[string]bool
	props     map[string]bool
	methods   map[string]map[string]bool
}

var defaultPolicy = build(defaultMethods)

// Default returns the shared default policy.
func Default() *Policy {
	return defaultPolicy
}

func build(methods map[string][]string) *Policy {
	p := &Policy{
		core:      toSet(coreReserved),
		soft:      make(map[string]bool),
		dangerous: toSet(dangerousGlobals),
		literals:  toSet(literalNames),
		props:     toSet(dangerousProperties),
		methods:   make(map[string]map[string]bool, len(methods)),
	}
	for _, name := range sdk.FunctionNames {
		if !p.core[name] {
			p.soft[name] = true
		}
	}
	for kind, names := range methods {
		p.methods[kind] = toSet(names)
	}
	return p
}

// WithMethods returns a copy of p that also allows methods on kind. Hosts
// with their own capability kinds extend the allowlist this way.
func (p *Policy) WithMethods(kind string, methods ...string) *Policy {
	table := make(map[string][]string, len(p.methods)+1)
	for k, set := range p.methods {
		table[k] = slices.Sorted(maps.Keys(set))
	}
	table[kind] = append(table[kind], methods...)
	return build(table)
}

// Tier reports the reserved tier of name.
func (p *Policy) Tier(name string) Tier {
	switch {
	case p.core[name]:
		return TierCore
	case p.soft[name]:
		return TierSoft
	}
	return TierNone
}

// IsDangerousGlobal reports whether name is a denied host/runtime global.
func (p *Policy) IsDangerousGlobal(name string) bool {
	return p.dangerous[name]
}

// IsLiteralName reports whether name is one of undefined, NaN or Infinity.
func (p *Policy) IsLiteralName(name string) bool {
	return p.literals[name]
}

// CheckDeclare validates a declared binding name.
func (p *Policy) CheckDeclare(name string) error {
	switch {
	case p.core[name]:
		return securityErrorf("cannot declare %q: it is a reserved workflow function", name).
			WithDetails(map[string]any{"identifier": name, "tier": TierCore.String()})
	case p.dangerous[name]:
		return securityErrorf("cannot declare %q: it shadows a forbidden global", name).
			WithDetails(map[string]any{"identifier": name})
	case p.literals[name]:
		return securityErrorf("cannot declare %q: it is a reserved literal", name).
			WithDetails(map[string]any{"identifier": name})
	}
	return nil
}

// CheckIdentifier rejects references to dangerous globals.
func (p *Policy) CheckIdentifier(name string) error {
	if p.dangerous[name] {
		return securityErrorf("access to %q is not allowed", name).
			WithDetails(map[string]any{"identifier": name})
	}
	return nil
}

// CheckProperty rejects dangerous property names on reads, writes, method
// calls and object-literal keys.
func (p *Policy) CheckProperty(name string) error {
	if p.props[name] {
		return securityErrorf("access to property %q is not allowed", name).
			WithDetails(map[string]any{"property": name})
	}
	return nil
}

// CheckMethod rejects calling method on a receiver of kind unless the kind's
// allowlist contains it. An empty kind means the receiver is not callable.
func (p *Policy) CheckMethod(kind, method string) error {
	if err := p.CheckProperty(method); err != nil {
		return err
	}
	if p.methods[kind][method] {
		return nil
	}
	receiver := kind
	if receiver == "" {
		receiver = "value"
	}
	return securityErrorf("method %q is not allowed on %s", method, receiver).
		WithDetails(map[string]any{"method": method, "kind": kind, "allowed": p.Methods(kind)})
}

// ComputedKeyError is the error for a property key that is not a literal.
func (p *Policy) ComputedKeyError() *schema.Error {
	return securityErrorf("computed property keys are not allowed; use a string literal key")
}

// Methods returns the sorted allowlist for kind.
func (p *Policy) Methods(kind string) []string {
	return slices.Sorted(maps.Keys(p.methods[kind]))
}

// ReservedNames is the shared table external code generators must respect.
type ReservedNames struct {
	Core             []string            `json:"core"`
	Soft             []string            `json:"soft"`
	DangerousGlobals []string            `json:"dangerous_globals"`
	Literals         []string            `json:"literals"`
	Properties       []string            `json:"dangerous_properties"`
	Methods          map[string][]string `json:"methods"`
}

// ReservedNames exports the policy tables, each sorted.
func (p *Policy) ReservedNames() ReservedNames {
	methods := make(map[string][]string, len(p.methods))
	for kind := range p.methods {
		methods[kind] = p.Methods(kind)
	}
	return ReservedNames{
		Core:             slices.Sorted(maps.Keys(p.core)),
		Soft:             slices.Sorted(maps.Keys(p.soft)),
		DangerousGlobals: slices.Sorted(maps.Keys(p.dangerous)),
		Literals:         slices.Sorted(maps.Keys(p.literals)),
		Properties:       slices.Sorted(maps.Keys(p.props)),
		Methods:          methods,
	}
}

func securityErrorf(format string, args ...any) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeSecurity, format, args...)
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
