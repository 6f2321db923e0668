package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_AddSortsBySeverity(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())

	r.AddWarning("nodes", ErrCodeValidation, "workflow has no trigger node")
	assert.True(t, r.Valid(), "warnings alone keep the workflow valid")

	r.AddError("nodes[1].name", ErrCodeConflict, `duplicate node name "Fetch"`)
	r.Add(ValidationIssue{Path: "rules[0]", Code: ErrCodeRuleViolation, Message: "too many nodes"})

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 2)
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityError, r.Errors[1].Severity, "issues without a severity are errors")
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)

	issues := r.Issues()
	require.Len(t, issues, 3)
	assert.Equal(t, "nodes[1].name", issues[0].Path)
	assert.Equal(t, "nodes", issues[2].Path)
}

func TestValidationIssue_String(t *testing.T) {
	e := ValidationIssue{Path: "nodes[0]", Code: ErrCodeInvalidCron, Message: "bad cron", Severity: SeverityError}
	w := ValidationIssue{Path: "nodes[3]", Code: ErrCodeValidation, Message: "placeholder", Severity: SeverityWarning}

	assert.Equal(t, "error    nodes[0]: bad cron [INVALID_CRON]", e.String())
	assert.Equal(t, "warning  nodes[3]: placeholder [VALIDATION_ERROR]", w.String())
}

func TestValidationResult_Merge(t *testing.T) {
	structural := &ValidationResult{}
	structural.AddError("nodes[0].type", ErrCodeValidation, "missing type")

	semantic := &ValidationResult{}
	semantic.AddError("connections.Start", ErrCodeNotFound, "unknown node")
	semantic.AddWarning("nodes[1]", ErrCodeValidation, "unreachable")

	structural.Merge(semantic)
	structural.Merge(nil)

	assert.Len(t, structural.Errors, 2)
	assert.Len(t, structural.Warnings, 1)
	assert.Equal(t, "missing type", structural.Errors[0].Message)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes", ErrCodeValidation, "no trigger")
	assert.NoError(t, r.ToError())

	r.AddError("nodes[0].name", ErrCodeConflict, "duplicate node name")
	err := r.ToError()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	var wfErr *Error
	require.True(t, errors.As(err, &wfErr))
	assert.Equal(t, "nodes[0].name: duplicate node name", wfErr.Message)
	assert.Len(t, wfErr.Details["errors"], 1)
	assert.Len(t, wfErr.Details["warnings"], 1)

	r.AddError("", ErrCodeValidation, "workflow is nil")
	r.AddError("rules[0]", ErrCodeRuleViolation, "rule failed")
	require.True(t, errors.As(r.ToError(), &wfErr))
	assert.Equal(t, "nodes[0].name: duplicate node name (and 2 more errors)", wfErr.Message)
}
