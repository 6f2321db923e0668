package validation

import (
	"context"
	"strings"

	"github.com/rendis/wfscript/pkg/schema"
)

// Validator checks exported workflows before a host accepts them. It runs a
// four-stage pipeline:
// 1. Structural (JSON Schema, plus per-type parameter schemas)
// 2. Semantic (names, connection endpoints, triggers, cron)
// 3. DAG (cycles outside splitInBatches loops, reachability)
// 4. Admission rules (host-supplied CEL predicates)
//
// A Validator is safe for concurrent use once built.
type Validator struct {
	jsonSchema *JSONSchemaValidator
	rules      *ruleSet
	params     map[string][]byte
}

// Option configures a Validator.
type Option func(*Validator)

// WithParameterSchema validates the parameters of every node of nodeType
// against a JSON Schema.
func WithParameterSchema(nodeType string, paramSchema []byte) Option {
	return func(v *Validator) {
		v.params[nodeType] = paramSchema
	}
}

// NewValidator creates a Validator. rules are CEL predicates over `workflow`
// that must evaluate to true; they are compiled here so a typo fails fast.
func NewValidator(rules []string, opts ...Option) (*Validator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	rs, err := newRuleSet(rules)
	if err != nil {
		return nil, err
	}
	v := &Validator{
		jsonSchema: jsv,
		rules:      rs,
		params:     make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: later stages are skipped, and the DAG
// and rule stages only run on semantically valid graphs.
func (v *Validator) Validate(ctx context.Context, wf *schema.Workflow) *schema.ValidationResult {
	if wf == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "workflow is nil")
		return r
	}

	// Stage 1: Structural.
	result := validateStructural(v.jsonSchema, wf)
	if !result.Valid() {
		return result
	}
	result.Merge(v.validateParameters(wf))

	// Stage 2: Semantic.
	result.Merge(validateSemantic(wf))
	if !result.Valid() {
		return result
	}

	// Stage 3: DAG.
	result.Merge(validateDAG(wf))

	// Stage 4: Admission rules.
	if result.Valid() {
		result.Merge(v.rules.check(ctx, wf))
	}
	return result
}

// ValidateWorkflow returns the pipeline's errors as a single error.
func (v *Validator) ValidateWorkflow(ctx context.Context, wf *schema.Workflow) error {
	return v.Validate(ctx, wf).ToError()
}

func (v *Validator) validateParameters(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(v.params) == 0 {
		return result
	}
	for i, n := range wf.Nodes {
		paramSchema, ok := v.params[n.Type]
		if !ok {
			continue
		}
		if err := v.jsonSchema.ValidateParameters(n.Parameters, paramSchema); err != nil {
			addSchemaError(result, fmtPath("nodes[%d].parameters", i), err)
		}
	}
	return result
}

// validateStructural wraps JSONSchemaValidator.ValidateWorkflow, converting
// its error output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err := v.ValidateWorkflow(wf); err != nil {
		addSchemaError(result, "", err)
	}
	return result
}

// addSchemaError files every schema violation in err under base.
func addSchemaError(result *schema.ValidationResult, base string, err error) {
	serr, ok := err.(*schema.Error)
	if !ok {
		result.AddError(joinPath(base, ""), schema.ErrCodeValidation, err.Error())
		return
	}
	violations, ok := serr.Details["violations"].([]Violation)
	if !ok {
		result.AddError(joinPath(base, ""), schema.ErrCodeValidation, serr.Message)
		return
	}
	for _, v := range violations {
		result.AddError(joinPath(base, v.Path), schema.ErrCodeValidation, v.Message)
	}
}

// joinPath appends a dotted sub-path to base. The document root is "/".
func joinPath(base, sub string) string {
	switch {
	case base == "" && sub == "":
		return "/"
	case sub == "":
		return base
	case base == "":
		return sub
	case strings.HasPrefix(sub, "["):
		return base + sub
	}
	return base + "." + sub
}
