package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, InterpretationID(ctx))
	assert.Empty(t, Source(ctx))

	ctx = WithSource(WithInterpretationID(ctx, "run-123"), "flow.js")
	assert.Equal(t, "run-123", InterpretationID(ctx))
	assert.Equal(t, "flow.js", Source(ctx))

	// Setting one value keeps the other.
	ctx = WithInterpretationID(ctx, "run-456")
	assert.Equal(t, "flow.js", Source(ctx))

	ctx = WithIDs(context.Background(), "run-789", "stdin")
	assert.Equal(t, "run-789", InterpretationID(ctx))
	assert.Equal(t, "stdin", Source(ctx))
}

// logRecord logs one line through a correlation-wrapped JSON handler and
// decodes it.
func logRecord(t *testing.T, ctx context.Context, wrap func(slog.Handler) slog.Handler) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	h := slog.Handler(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))
	if wrap != nil {
		h = wrap(h)
	}
	slog.New(h).InfoContext(ctx, "interpreted", "nodes", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	return rec
}

func TestCorrelationHandler(t *testing.T) {
	tests := []struct {
		name       string
		ctx        context.Context
		wrap       func(slog.Handler) slog.Handler
		wantID     any
		wantSource any
	}{
		{
			name:       "both values",
			ctx:        WithIDs(context.Background(), "run-auto", "mcp"),
			wantID:     "run-auto",
			wantSource: "mcp",
		},
		{
			name:   "id only",
			ctx:    WithInterpretationID(context.Background(), "run-only"),
			wantID: "run-only",
		},
		{
			name: "bare context",
			ctx:  context.Background(),
		},
		{
			name: "with attrs",
			ctx:  WithInterpretationID(context.Background(), "run-attr"),
			wrap: func(h slog.Handler) slog.Handler {
				return h.WithAttrs([]slog.Attr{slog.String("component", "interpreter")})
			},
			wantID: "run-attr",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := logRecord(t, tt.ctx, tt.wrap)
			assert.Equal(t, "interpreted", rec["msg"])
			assert.Equal(t, tt.wantID, rec["interpretation_id"])
			assert.Equal(t, tt.wantSource, rec["source"])
		})
	}
}

func TestCorrelationHandlerWithGroup(t *testing.T) {
	rec := logRecord(t, WithInterpretationID(context.Background(), "run-grp"),
		func(h slog.Handler) slog.Handler { return h.WithGroup("interpreter") })

	group, ok := rec["interpreter"].(map[string]any)
	require.True(t, ok, "record: %v", rec)
	assert.Equal(t, "run-grp", group["interpretation_id"])
	assert.Equal(t, 3.0, group["nodes"])
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "json")
	logger.DebugContext(WithSource(context.Background(), "x.js"), "hello")
	assert.Contains(t, buf.String(), `"source":"x.js"`)
	assert.Contains(t, buf.String(), `"level":"DEBUG"`)

	buf.Reset()
	logger = New(&buf, "warn", "text")
	logger.Info("dropped")
	logger.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
