package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/wfscript/pkg/schema"
)

func scheduleWorkflow(intervals ...any) *schema.Workflow {
	return &schema.Workflow{
		ID:   "wf",
		Name: "Scheduled",
		Nodes: []schema.Node{{
			ID:          "n1",
			Name:        "Schedule",
			Type:        schema.NodeTypeSchedule,
			TypeVersion: 1.2,
			Parameters:  map[string]any{"rule": map[string]any{"interval": intervals}},
		}},
		Connections: map[string]schema.NodeOutputs{},
	}
}

func TestParseInterval_Specs(t *testing.T) {
	tests := []struct {
		name     string
		interval map[string]any
		spec     string
	}{
		{"cron", map[string]any{"field": "cronExpression", "expression": " 0 9 * * 1-5 "}, "0 9 * * 1-5"},
		{"seconds default", map[string]any{"field": "seconds"}, "*/30 * * * * *"},
		{"minutes", map[string]any{"field": "minutes", "minutesInterval": 15.0}, "*/15 * * * *"},
		{"hours", map[string]any{"field": "hours", "hoursInterval": 2.0, "triggerAtMinute": 30.0}, "30 */2 * * *"},
		{"days default", map[string]any{}, "0 0 */1 * *"},
		{"days at", map[string]any{"field": "days", "triggerAtHour": 8.0, "triggerAtMinute": 5.0}, "5 8 */1 * *"},
		{"weeks", map[string]any{"field": "weeks", "triggerAtDay": []any{1.0, 3.0}, "triggerAtHour": 9.0}, "0 9 * * 1,3"},
		{"months", map[string]any{"field": "months", "monthsInterval": 3.0, "triggerAtDayOfMonth": 15.0}, "0 0 15 */3 *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseInterval(tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.spec, r.Spec)
			assert.False(t, r.Dynamic)
		})
	}
}

func TestParseInterval_Dynamic(t *testing.T) {
	r, err := ParseInterval(map[string]any{"field": "cronExpression", "expression": "={{ $json.cron }}"})
	require.NoError(t, err)
	assert.True(t, r.Dynamic)
	assert.True(t, r.Next(time.Now()).IsZero())
}

func TestParseInterval_Errors(t *testing.T) {
	invalid := map[string]map[string]any{
		"empty cron":      {"field": "cronExpression", "expression": ""},
		"bad cron":        {"field": "cronExpression", "expression": "0 25 * * *"},
		"zero interval":   {"field": "hours", "hoursInterval": 0.0},
		"fraction":        {"field": "minutes", "minutesInterval": 2.5},
		"bad hour":        {"field": "days", "triggerAtHour": 24.0},
		"bad weekday":     {"field": "weeks", "triggerAtDay": []any{7.0}},
		"string interval": {"field": "minutes", "minutesInterval": "5"},
	}
	for name, interval := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInterval(interval)
			require.Error(t, err)
			assert.NotErrorIs(t, err, ErrUnsupported)
		})
	}

	for name, raw := range map[string]any{
		"not an object":  "daily",
		"unknown field":  map[string]any{"field": "fortnights"},
		"multiple weeks": map[string]any{"field": "weeks", "weeksInterval": 2.0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInterval(raw)
			assert.ErrorIs(t, err, ErrUnsupported)
		})
	}
}

func TestPreview(t *testing.T) {
	wf := scheduleWorkflow(
		map[string]any{"field": "cronExpression", "expression": "0 9 * * 1"},
		map[string]any{"field": "hours", "hoursInterval": 12.0},
		map[string]any{"field": "fortnights"},
	)
	from := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) // Wednesday

	fires, err := Preview(wf, from, 2)
	require.NoError(t, err)
	require.Len(t, fires, 2)

	assert.Equal(t, "Schedule", fires[0].Node)
	assert.Equal(t, 0, fires[0].Interval)
	assert.Equal(t, []time.Time{
		time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC),
	}, fires[0].Times)

	assert.Equal(t, 1, fires[1].Interval)
	assert.Equal(t, []time.Time{
		time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
	}, fires[1].Times)

	merged := Merge(fires, 3)
	require.Len(t, merged, 3)
	assert.Equal(t, time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC), merged[0].Time)
	assert.Equal(t, "2026-03-05T00:00:00Z  Schedule", merged[1].String())
}

func TestPreview_Timezone(t *testing.T) {
	wf := scheduleWorkflow(map[string]any{"field": "days", "triggerAtHour": 8.0})
	wf.Settings = map[string]any{"timezone": "Europe/Madrid"}
	from := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	fires, err := Preview(wf, from, 1)
	require.NoError(t, err)
	require.Len(t, fires[0].Times, 1)
	assert.Equal(t, time.Date(2026, 1, 11, 7, 0, 0, 0, time.UTC), fires[0].Times[0].UTC())
}

func TestPreview_SkipsDisabledAndDynamic(t *testing.T) {
	wf := scheduleWorkflow(map[string]any{"field": "cronExpression", "expression": "={{ $json.cron }}"})
	fires, err := Preview(wf, time.Now(), 3)
	require.NoError(t, err)
	require.Len(t, fires, 1)
	assert.True(t, fires[0].Dynamic)
	assert.Empty(t, fires[0].Times)

	wf.Nodes[0].Disabled = true
	fires, err = Preview(wf, time.Now(), 3)
	require.NoError(t, err)
	assert.Empty(t, fires)
}

func TestPreview_Errors(t *testing.T) {
	wf := scheduleWorkflow(map[string]any{"field": "cronExpression", "expression": "nope"})
	_, err := Preview(wf, time.Now(), 1)
	assert.ErrorIs(t, err, &schema.Error{Code: schema.ErrCodeInvalidCron})

	_, err = Preview(scheduleWorkflow(), time.Now(), 0)
	assert.ErrorIs(t, err, schema.ErrValidation)

	bad := scheduleWorkflow()
	bad.Settings = map[string]any{"timezone": "Mars/Olympus"}
	_, err = Preview(bad, time.Now(), 1)
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = Preview(nil, time.Now(), 1)
	assert.Error(t, err)
}
