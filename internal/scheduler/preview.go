package scheduler

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rendis/wfscript/pkg/schema"
)

// MaxPreview caps the number of fire times Preview computes per interval.
const MaxPreview = 100

// Fire lists the upcoming fire times of one schedule trigger interval.
type Fire struct {
	Node     string      `json:"node"`
	Interval int         `json:"interval"`
	Field    string      `json:"field"`
	Spec     string      `json:"spec,omitempty"`
	Dynamic  bool        `json:"dynamic,omitempty"`
	Times    []time.Time `json:"times"`
}

// Location returns the workflow's settings.timezone, or UTC when unset.
func Location(wf *schema.Workflow) (*time.Location, error) {
	tz, _ := wf.Settings["timezone"].(string)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", tz)
	}
	return loc, nil
}

// Preview computes the next count fire times after from for every interval
// of every enabled schedule trigger, in the workflow's timezone. Intervals
// that cannot be expressed as cron schedules are skipped.
func Preview(wf *schema.Workflow, from time.Time, count int) ([]Fire, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	if count <= 0 || count > MaxPreview {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "count must be between 1 and %d", MaxPreview)
	}
	loc, err := Location(wf)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, err.Error()).WithCause(err)
	}
	from = from.In(loc)

	fires := []Fire{}
	for i := range wf.Nodes {
		n := &wf.Nodes[i]
		if n.Type != schema.NodeTypeSchedule || n.Disabled {
			continue
		}
		for k, raw := range Intervals(n.Parameters) {
			rule, err := ParseInterval(raw)
			if errors.Is(err, ErrUnsupported) {
				continue
			}
			if err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeInvalidCron,
					"%s: interval %d: %v", n.Name, k, err).WithCause(err)
			}
			f := Fire{Node: n.Name, Interval: k, Field: rule.Field, Spec: rule.Spec, Dynamic: rule.Dynamic, Times: []time.Time{}}
			t := from
			for range count {
				if rule.Dynamic {
					break
				}
				if t = rule.Next(t); t.IsZero() {
					break
				}
				f.Times = append(f.Times, t)
			}
			fires = append(fires, f)
		}
	}
	return fires, nil
}

// Merge flattens fires into one chronological list of at most count
// entries, labelled with the trigger name.
func Merge(fires []Fire, count int) []Occurrence {
	var out []Occurrence
	for _, f := range fires {
		for _, t := range f.Times {
			out = append(out, Occurrence{Node: f.Node, Time: t})
		}
	}
	slices.SortStableFunc(out, func(a, b Occurrence) int { return a.Time.Compare(b.Time) })
	if len(out) > count {
		out = out[:count]
	}
	return out
}

// Occurrence is a single fire time.
type Occurrence struct {
	Node string    `json:"node"`
	Time time.Time `json:"time"`
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%s  %s", o.Time.Format(time.RFC3339), o.Node)
}
