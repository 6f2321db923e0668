package validation

import (
	"context"
	"fmt"

	"github.com/rendis/wfscript/internal/query"
	"github.com/rendis/wfscript/pkg/schema"
)

// ruleSet holds host admission rules: CEL predicates over the exported
// workflow, e.g. `size(workflow.nodes) <= 50`.
type ruleSet struct {
	engine *query.CELEngine
	rules  []string
}

func newRuleSet(rules []string) (*ruleSet, error) {
	rs := &ruleSet{rules: rules}
	if len(rules) == 0 {
		return rs, nil
	}
	engine, err := query.NewCELEngine()
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if err := engine.Compile(r); err != nil {
			return nil, err
		}
	}
	rs.engine = engine
	return rs, nil
}

// check evaluates every rule. A rule that is false, or does not produce a
// boolean, is a RULE_VIOLATION.
func (rs *ruleSet) check(ctx context.Context, wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if len(rs.rules) == 0 {
		return result
	}
	data := map[string]any{"workflow": query.Normalize(wf)}
	for i, r := range rs.rules {
		path := fmtPath("rules[%d]", i)
		out, err := rs.engine.Evaluate(ctx, r, data)
		if err != nil {
			result.AddError(path, schema.ErrCodeRuleViolation, err.Error())
			continue
		}
		ok, isBool := out.(bool)
		switch {
		case !isBool:
			result.AddError(path, schema.ErrCodeRuleViolation,
				fmt.Sprintf("rule %q must evaluate to a boolean, got %T", r, out))
		case !ok:
			result.AddError(path, schema.ErrCodeRuleViolation,
				fmt.Sprintf("workflow violates rule %q", r))
		}
	}
	return result
}

func fmtPath(format string, i int) string {
	return fmt.Sprintf(format, i)
}
