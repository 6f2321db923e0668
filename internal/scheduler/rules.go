// Package scheduler understands schedule trigger parameters: it turns each
// rule.interval entry into a cron schedule and previews upcoming fire times.
// Nothing here runs workflows.
package scheduler

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
)

// ErrUnsupported marks intervals that cannot be expressed as a cron
// schedule: unknown fields, malformed entries, multi-week periods.
var ErrUnsupported = errors.New("unsupported schedule interval")

// parser accepts standard five-field expressions, an optional seconds field
// and the @every/@daily descriptors.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Rule is one rule.interval entry.
type Rule struct {
	Field string
	// Spec is the cron expression the interval runs on.
	Spec string
	// Dynamic is set for "=..." expressions, which are resolved at run time
	// and have no schedule here.
	Dynamic bool

	schedule cron.Schedule
}

// Next returns the first fire time after t, in t's location. It returns
// the zero time for dynamic rules.
func (r Rule) Next(t time.Time) time.Time {
	if r.schedule == nil {
		return time.Time{}
	}
	return r.schedule.Next(t)
}

// Intervals returns parameters.rule.interval, or nil when it is missing or
// not a list.
func Intervals(params map[string]any) []any {
	rule, _ := params["rule"].(map[string]any)
	intervals, _ := rule["interval"].([]any)
	return intervals
}

// ParseInterval converts one interval entry. Errors other than
// ErrUnsupported mean the entry is invalid.
func ParseInterval(raw any) (Rule, error) {
	interval, ok := raw.(map[string]any)
	if !ok {
		return Rule{}, ErrUnsupported
	}
	field, _ := interval["field"].(string)
	if field == "" {
		field = "days"
	}
	r := Rule{Field: field}

	var err error
	switch field {
	case "cronExpression":
		expr, _ := interval["expression"].(string)
		expr = strings.TrimSpace(expr)
		if expr == "" {
			return r, errors.New("cron interval has no expression")
		}
		if strings.HasPrefix(expr, "=") {
			r.Dynamic = true
			return r, nil
		}
		r.Spec = expr
	case "seconds":
		var n int
		if n, err = intParam(interval, "secondsInterval", 30, 1, 59); err == nil {
			r.Spec = fmt.Sprintf("*/%d * * * * *", n)
		}
	case "minutes":
		var n int
		if n, err = intParam(interval, "minutesInterval", 5, 1, 59); err == nil {
			r.Spec = fmt.Sprintf("*/%d * * * *", n)
		}
	case "hours":
		r.Spec, err = hoursSpec(interval)
	case "days":
		r.Spec, err = daysSpec(interval)
	case "weeks":
		r.Spec, err = weeksSpec(interval)
	case "months":
		r.Spec, err = monthsSpec(interval)
	default:
		return r, fmt.Errorf("%w: field %q", ErrUnsupported, field)
	}
	if err != nil {
		return r, err
	}

	if r.schedule, err = parser.Parse(r.Spec); err != nil {
		return r, fmt.Errorf("invalid cron expression %q: %w", r.Spec, err)
	}
	return r, nil
}

func hoursSpec(m map[string]any) (string, error) {
	n, err := intParam(m, "hoursInterval", 1, 1, 23)
	if err != nil {
		return "", err
	}
	minute, err := intParam(m, "triggerAtMinute", 0, 0, 59)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d */%d * * *", minute, n), nil
}

func daysSpec(m map[string]any) (string, error) {
	n, err := intParam(m, "daysInterval", 1, 1, 31)
	if err != nil {
		return "", err
	}
	hour, minute, err := timeOfDay(m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d */%d * *", minute, hour, n), nil
}

func weeksSpec(m map[string]any) (string, error) {
	n, err := intParam(m, "weeksInterval", 1, 1, 52)
	if err != nil {
		return "", err
	}
	if n > 1 {
		return "", fmt.Errorf("%w: every %d weeks", ErrUnsupported, n)
	}
	hour, minute, err := timeOfDay(m)
	if err != nil {
		return "", err
	}
	days := []string{"0"}
	if raw, ok := m["triggerAtDay"].([]any); ok && len(raw) > 0 {
		days = days[:0]
		for i, d := range raw {
			v, err := toInt(d, 0, 6)
			if err != nil {
				return "", fmt.Errorf("triggerAtDay[%d]: %w", i, err)
			}
			days = append(days, strconv.Itoa(v))
		}
	}
	return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(days, ",")), nil
}

func monthsSpec(m map[string]any) (string, error) {
	n, err := intParam(m, "monthsInterval", 1, 1, 12)
	if err != nil {
		return "", err
	}
	day, err := intParam(m, "triggerAtDayOfMonth", 1, 1, 31)
	if err != nil {
		return "", err
	}
	hour, minute, err := timeOfDay(m)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d %d */%d *", minute, hour, day, n), nil
}

func timeOfDay(m map[string]any) (hour, minute int, err error) {
	if hour, err = intParam(m, "triggerAtHour", 0, 0, 23); err != nil {
		return 0, 0, err
	}
	if minute, err = intParam(m, "triggerAtMinute", 0, 0, 59); err != nil {
		return 0, 0, err
	}
	return hour, minute, nil
}

func intParam(m map[string]any, key string, def, lo, hi int) (int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return def, nil
	}
	n, err := toInt(v, lo, hi)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func toInt(v any, lo, hi int) (int, error) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	if f != math.Trunc(f) || f < float64(lo) || f > float64(hi) {
		return 0, fmt.Errorf("%v is not an integer between %d and %d", v, lo, hi)
	}
	return int(f), nil
}
