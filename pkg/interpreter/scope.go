package interpreter

import (
	"math"
	"strconv"

	"github.com/rendis/wfscript/internal/security"
	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

// Scope is the binding table of one interpretation. Declared names map to a
// binding id, and binding ids index the value arena. Plain names use
// themselves as id; soft-reserved capability names get a distinct alias id so
// the capability table keeps its own namespace and stays callable.
type Scope struct {
	policy *security.Policy
	caps   sdk.Functions

	ids    map[string]string // declared name -> binding id
	slots  map[string]int    // binding id -> arena index
	values []any
}

func newScope(policy *security.Policy, caps sdk.Functions) *Scope {
	return &Scope{
		policy: policy,
		caps:   caps.Clone(),
		ids:    make(map[string]string),
		slots:  make(map[string]int),
	}
}

// declare binds name to value. Bindings are never rebound.
func (s *Scope) declare(name string, value any) error {
	if err := s.checkDeclare(name); err != nil {
		return err
	}

	id := name
	if s.policy.Tier(name) == security.TierSoft {
		id = aliasID(name, len(s.values))
	}
	s.ids[name] = id
	s.slots[id] = len(s.values)
	s.values = append(s.values, value)
	return nil
}

// checkDeclare reports whether name may be bound, without binding it.
func (s *Scope) checkDeclare(name string) error {
	if _, exists := s.ids[name]; exists {
		return schema.NewErrorf(schema.ErrCodeSyntax, "identifier %q has already been declared", name).
			WithDetails(map[string]any{"identifier": name})
	}
	return s.policy.CheckDeclare(name)
}

// aliasID cannot collide with a source identifier because '#' is not a legal
// identifier character.
func aliasID(name string, slot int) string {
	return name + "#" + strconv.Itoa(slot)
}

// alias returns the binding id of a declared name.
func (s *Scope) alias(name string) (string, bool) {
	id, ok := s.ids[name]
	return id, ok
}

func (s *Scope) lookup(name string) (any, bool) {
	id, ok := s.ids[name]
	if !ok {
		return nil, false
	}
	return s.values[s.slots[id]], true
}

// resolve returns the value an identifier reference evaluates to.
func (s *Scope) resolve(name string) (any, error) {
	if err := s.policy.CheckIdentifier(name); err != nil {
		return nil, err
	}
	if v, ok := s.lookup(name); ok {
		return v, nil
	}
	switch name {
	case "undefined":
		return sdk.Undefined, nil
	case "NaN":
		return math.NaN(), nil
	case "Infinity":
		return math.Inf(1), nil
	}
	if s.policy.Tier(name) != security.TierNone {
		return nil, schema.NewErrorf(schema.ErrCodeSecurity,
			"%q is a workflow function and can only be called", name).
			WithDetails(map[string]any{"identifier": name})
	}
	return nil, unknownIdentifier(name)
}

// resolveCallee returns the capability a call to name invokes. A declared
// alias never shadows the capability of the same name.
func (s *Scope) resolveCallee(name string) (sdk.Func, error) {
	if err := s.policy.CheckIdentifier(name); err != nil {
		return nil, err
	}
	if fn, ok := s.caps[name]; ok {
		return fn, nil
	}
	if v, ok := s.lookup(name); ok {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "%s is not a function (it is %s)", name, typeName(v))
	}
	if s.policy.IsLiteralName(name) {
		return nil, schema.NewErrorf(schema.ErrCodeEvaluation, "%s is not a function", name)
	}
	if sdk.IsFunctionName(name) {
		return nil, schema.NewErrorf(schema.ErrCodeUnknownIdentifier,
			"workflow function %q is not available", name).
			WithDetails(map[string]any{"identifier": name})
	}
	return nil, unknownIdentifier(name)
}

func unknownIdentifier(name string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeUnknownIdentifier, "%s is not defined", name).
		WithDetails(map[string]any{"identifier": name})
}
