package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/schema"
)

func TestSemantic_Valid(t *testing.T) {
	wf := newWorkflow(node("Start", manualTrigger), node("Fetch", httpRequest), node("Set", setNode))
	mainLink(wf, "Start", "Fetch")
	mainLink(wf, "Fetch", "Set")

	result := validateSemantic(wf)
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestSemantic_DuplicateNamesAndIDs(t *testing.T) {
	a := node("Fetch", httpRequest)
	b := node("Fetch", httpRequest)
	b.ID = "id-Fetch2"
	c := node("Other", httpRequest)
	c.ID = a.ID
	wf := newWorkflow(node("Start", manualTrigger), a, b, c)

	result := validateSemantic(wf)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, []string{schema.ErrCodeConflict, schema.ErrCodeConflict}, codes(result.Errors))
	assert.Equal(t, "nodes[2].name", result.Errors[0].Path)
	assert.Contains(t, result.Errors[1].Message, "nodes[1]")
}

func TestSemantic_UnknownEndpoints(t *testing.T) {
	wf := newWorkflow(node("Start", manualTrigger))
	mainLink(wf, "Ghost", "Start")
	mainLink(wf, "Start", "Missing")

	result := validateSemantic(wf)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, []string{schema.ErrCodeNotFound, schema.ErrCodeNotFound}, codes(result.Errors))
	assert.Equal(t, "connections[Ghost]", result.Errors[0].Path)
	assert.Equal(t, "connections[Start].main[0][0].node", result.Errors[1].Path)
}

func TestSemantic_TargetTypeMismatch(t *testing.T) {
	wf := newWorkflow(node("Start", manualTrigger), node("Fetch", httpRequest))
	wf.Connections["Start"] = schema.NodeOutputs{
		schema.ConnectionMain: {{{Node: "Fetch", Type: schema.ConnectionAITool, Index: 0}}},
	}

	result := validateSemantic(wf)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, `does not match connection type "main"`)
}

func TestSemantic_StickyNotes(t *testing.T) {
	wf := newWorkflow(node("Start", manualTrigger), node("Note", schema.NodeTypeStickyNote))
	mainLink(wf, "Start", "Note")
	mainLink(wf, "Note", "Start")

	result := validateSemantic(wf)
	assert.Len(t, result.Errors, 2)
}

func TestSemantic_Warnings(t *testing.T) {
	t.Run("no trigger", func(t *testing.T) {
		result := validateSemantic(newWorkflow(node("Fetch", httpRequest)))
		assert.True(t, result.Valid())
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0].Message, "no enabled trigger")
	})

	t.Run("disabled trigger", func(t *testing.T) {
		start := node("Start", manualTrigger)
		start.Disabled = true
		result := validateSemantic(newWorkflow(start))
		require.Len(t, result.Warnings, 1)
	})

	t.Run("webhook counts as trigger", func(t *testing.T) {
		result := validateSemantic(newWorkflow(node("Hook", "n8n-nodes-base.webhook")))
		assert.Empty(t, result.Warnings)
	})

	t.Run("placeholder and incoming trigger edge", func(t *testing.T) {
		wf := newWorkflow(node("Start", manualTrigger), node("Placeholder", schema.NodeTypePlaceholder))
		mainLink(wf, "Start", "Placeholder")
		mainLink(wf, "Placeholder", "Start")
		result := validateSemantic(wf)
		assert.True(t, result.Valid())
		assert.Len(t, result.Warnings, 2)
	})
}

func scheduleNode(expressions ...string) schema.Node {
	n := node("Schedule", schema.NodeTypeSchedule)
	var intervals []any
	for _, e := range expressions {
		intervals = append(intervals, map[string]any{"field": "cronExpression", "expression": e})
	}
	intervals = append(intervals, map[string]any{"field": "hours", "hoursInterval": 2.0})
	n.Parameters = map[string]any{"rule": map[string]any{"interval": intervals}}
	return n
}

func TestSemantic_Cron(t *testing.T) {
	tests := []struct {
		expr  string
		valid bool
	}{
		{"0 9 * * 1-5", true},
		{"*/15 * * * * *", true},
		{"@daily", true},
		{"@every 5m", true},
		{"={{ $json.cron }}", true},
		{"0 25 * * *", false},
		{"every monday", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			result := validateSemantic(newWorkflow(scheduleNode(tt.expr)))
			if tt.valid {
				assert.True(t, result.Valid(), "%v", result.Errors)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Equal(t, schema.ErrCodeInvalidCron, result.Errors[0].Code)
			assert.Equal(t, "nodes[0].parameters.rule.interval[0].expression", result.Errors[0].Path)
		})
	}
}

func TestSemantic_CronIgnoresMalformedRule(t *testing.T) {
	n := node("Schedule", schema.NodeTypeSchedule)
	n.Parameters = map[string]any{"rule": "daily"}
	result := validateSemantic(newWorkflow(n))
	assert.True(t, result.Valid())
}

func TestSemantic_ScheduleIntervals(t *testing.T) {
	n := node("Schedule", schema.NodeTypeSchedule)
	n.Parameters = map[string]any{"rule": map[string]any{"interval": []any{
		map[string]any{"field": "minutes", "minutesInterval": 0.0},
		map[string]any{"field": "weeks", "weeksInterval": 2.0},
		map[string]any{"field": "days", "triggerAtHour": 7.0},
	}}}

	result := validateSemantic(newWorkflow(n))
	require.Len(t, result.Errors, 1)
	assert.Equal(t, schema.ErrCodeInvalidCron, result.Errors[0].Code)
	assert.Equal(t, "nodes[0].parameters.rule.interval[0]", result.Errors[0].Path)
	assert.Contains(t, result.Errors[0].Message, "minutesInterval")
}

func TestSemantic_Timezone(t *testing.T) {
	wf := newWorkflow(node("Start", manualTrigger))
	wf.Settings = map[string]any{"timezone": "America/New_York"}
	assert.True(t, validateSemantic(wf).Valid())

	wf.Settings["timezone"] = "Nowhere/Special"
	result := validateSemantic(wf)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "settings.timezone", result.Errors[0].Path)
}
