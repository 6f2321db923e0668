package validation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/rendis/wfscript/internal/scheduler"
	"github.com/rendis/wfscript/pkg/schema"
)

// validateSemantic performs the checks JSON Schema cannot express.
// Checks: unique node names and ids, connection endpoints and types, trigger
// presence, schedule trigger intervals and the workflow timezone.
func validateSemantic(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	byName := make(map[string]*schema.Node, len(wf.Nodes))
	ids := make(map[string]int, len(wf.Nodes))
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		path := fmt.Sprintf("nodes[%d]", i)
		if _, dup := byName[n.Name]; dup {
			result.AddError(path+".name", schema.ErrCodeConflict,
				fmt.Sprintf("duplicate node name %q", n.Name))
		} else {
			byName[n.Name] = n
		}
		if prev, dup := ids[n.ID]; dup && n.ID != "" {
			result.AddError(path+".id", schema.ErrCodeConflict,
				fmt.Sprintf("node id %q is also used by nodes[%d]", n.ID, prev))
		} else {
			ids[n.ID] = i
		}
	}

	for _, src := range sortedNames(wf.Connections) {
		path := fmt.Sprintf("connections[%s]", src)
		srcNode, ok := byName[src]
		if !ok {
			result.AddError(path, schema.ErrCodeNotFound,
				fmt.Sprintf("connections from non-existent node %q", src))
			continue
		}
		if srcNode.Type == schema.NodeTypeStickyNote {
			result.AddError(path, schema.ErrCodeValidation, "sticky notes cannot have connections")
		}
		outs := wf.Connections[src]
		for _, typ := range sortedConnectionTypes(outs) {
			for output, targets := range outs[typ] {
				for j, target := range targets {
					tpath := fmt.Sprintf("%s.%s[%d][%d]", path, typ, output, j)
					validateTarget(tpath, typ, target, byName, result)
				}
			}
		}
	}

	triggers := 0
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		path := fmt.Sprintf("nodes[%d]", i)
		if schema.IsTriggerType(n.Type) && !n.Disabled {
			triggers++
		}
		if n.Type == schema.NodeTypeSchedule {
			validateSchedule(path, n, result)
		}
		if n.Type == schema.NodeTypePlaceholder {
			result.AddWarning(path, schema.ErrCodeValidation,
				fmt.Sprintf("node %q is a placeholder and does nothing", n.Name))
		}
	}
	if _, err := scheduler.Location(wf); err != nil {
		result.AddError("settings.timezone", schema.ErrCodeValidation, err.Error())
	}
	if triggers == 0 && len(wf.Nodes) > 0 {
		result.AddWarning("nodes", schema.ErrCodeValidation,
			"workflow has no enabled trigger; it can only be started manually or as a sub-workflow")
	}

	return result
}

func validateTarget(path string, typ schema.ConnectionType, target schema.ConnectionTarget, byName map[string]*schema.Node, result *schema.ValidationResult) {
	dest, ok := byName[target.Node]
	if !ok {
		result.AddError(path+".node", schema.ErrCodeNotFound,
			fmt.Sprintf("references non-existent node %q", target.Node))
		return
	}
	if target.Type != typ {
		result.AddError(path+".type", schema.ErrCodeValidation,
			fmt.Sprintf("target type %q does not match connection type %q", target.Type, typ))
	}
	if target.Index < 0 {
		result.AddError(path+".index", schema.ErrCodeValidation, "input index must not be negative")
	}
	if dest.Type == schema.NodeTypeStickyNote {
		result.AddError(path+".node", schema.ErrCodeValidation,
			fmt.Sprintf("cannot connect to sticky note %q", dest.Name))
	}
	if typ == schema.ConnectionMain && schema.IsTriggerType(dest.Type) {
		result.AddWarning(path+".node", schema.ErrCodeValidation,
			fmt.Sprintf("trigger %q has an incoming connection", dest.Name))
	}
}

// validateSchedule checks the rule.interval entries of a schedule trigger.
// Intervals the scheduler cannot model are left alone.
func validateSchedule(path string, n *schema.Node, result *schema.ValidationResult) {
	for i, raw := range scheduler.Intervals(n.Parameters) {
		rule, err := scheduler.ParseInterval(raw)
		if err == nil || errors.Is(err, scheduler.ErrUnsupported) {
			continue
		}
		ipath := fmt.Sprintf("%s.parameters.rule.interval[%d]", path, i)
		if rule.Field == "cronExpression" {
			ipath += ".expression"
		}
		result.AddError(ipath, schema.ErrCodeInvalidCron, err.Error())
	}
}

func sortedNames(m map[string]schema.NodeOutputs) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func sortedConnectionTypes(outs schema.NodeOutputs) []schema.ConnectionType {
	types := make([]schema.ConnectionType, 0, len(outs))
	for t := range outs {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
