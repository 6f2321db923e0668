// Package interpreter evaluates workflow scripts: a restricted,
// JavaScript-like language whose only side-effect channel is a host-supplied
// table of builder functions.
//
// Source is parsed into an AST and walked directly. Every identifier
// reference, declaration, property access and method call is checked against
// a security policy first, so untrusted or LLM-generated code cannot reach
// host globals, pollute prototypes or call arbitrary methods.
//
//	result, err := interpreter.Interpret(src, builders.Functions())
//	if err != nil {
//	    if schema.IsUserFacing(err) {
//	        // hand the message and location back to the author
//	    }
//	}
//
// Failures are *schema.Error values matching one of the schema sentinels
// (ErrSyntax, ErrSecurity, ErrUnsupportedNode, ErrUnknownIdentifier, and the
// runtime codes ErrEvaluation, ErrCapability, ErrLimitExceeded, ErrCancelled).
//
// Each call allocates its own scope and copy of the capability table; calls
// may run concurrently.
package interpreter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/wfscript/internal/logging"
	"github.com/rendis/wfscript/internal/parser"
	"github.com/rendis/wfscript/internal/security"
	"github.com/rendis/wfscript/pkg/schema"
	"github.com/rendis/wfscript/pkg/sdk"
)

const (
	// DefaultMaxDepth bounds nesting, both while parsing and while evaluating.
	DefaultMaxDepth = parser.DefaultMaxDepth
	// DefaultMaxSteps bounds the number of AST nodes visited.
	DefaultMaxSteps = 100_000
	// DefaultMaxStringTotal bounds the bytes of all strings built during one
	// interpretation.
	DefaultMaxStringTotal = 1 << 28
)

type config struct {
	maxDepth    int
	maxSteps    int
	maxStrTotal int
	logger   *slog.Logger
	policy   *security.Policy
}

// Option configures an interpretation.
type Option func(*config)

// WithMaxDepth sets the nesting limit. Values <= 0 keep the default.
func WithMaxDepth(depth int) Option {
	return func(c *config) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithMaxSteps sets the node-visit budget. Values <= 0 keep the default.
func WithMaxSteps(steps int) Option {
	return func(c *config) {
		if steps > 0 {
			c.maxSteps = steps
		}
	}
}

// WithMaxStringTotal sets the budget for all strings built by one
// interpretation. Values <= 0 keep the default.
func WithMaxStringTotal(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.maxStrTotal = bytes
		}
	}
}

// WithLogger sets the logger used for debug output. Install a
// logging.CorrelationHandler to have the interpretation id attached.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPolicy replaces the default security policy, typically with one
// extended through Policy.WithMethods for host-defined kinds.
func WithPolicy(policy *security.Policy) Option {
	return func(c *config) {
		if policy != nil {
			c.policy = policy
		}
	}
}

func newConfig(opts []Option) *config {
	cfg := &config{
		maxDepth:    DefaultMaxDepth,
		maxSteps:    DefaultMaxSteps,
		maxStrTotal: DefaultMaxStringTotal,
		logger:      logging.Discard(),
		policy:      security.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Interpret parses and evaluates src against caps and returns the value of
// its export default declaration.
func Interpret(src string, caps sdk.Functions, opts ...Option) (any, error) {
	return InterpretContext(context.Background(), src, caps, opts...)
}

// InterpretContext is Interpret with cancellation. The context is checked
// before every node is evaluated.
func InterpretContext(ctx context.Context, src string, caps sdk.Functions, opts ...Option) (any, error) {
	cfg := newConfig(opts)
	if err := caps.Validate(); err != nil {
		return nil, err
	}

	if logging.InterpretationID(ctx) == "" {
		ctx = logging.WithInterpretationID(ctx, uuid.NewString())
	}
	start := time.Now()

	prog, err := parser.Parse(src, parser.WithMaxDepth(cfg.maxDepth))
	if err != nil {
		logFailure(ctx, cfg.logger, "parse", err, start)
		return nil, err
	}

	ev := newEvaluator(ctx, prog, newScope(cfg.policy, caps), cfg)
	result, err := ev.run(prog)
	if err != nil {
		logFailure(ctx, cfg.logger, "evaluate", err, start)
		return nil, err
	}

	cfg.logger.DebugContext(ctx, "interpretation finished",
		slog.Int("steps", ev.steps),
		slog.Int("statements", len(prog.Body)),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

func logFailure(ctx context.Context, logger *slog.Logger, phase string, err error, start time.Time) {
	attrs := []any{
		slog.String("phase", phase),
		slog.Duration("duration", time.Since(start)),
	}
	var wfErr *schema.Error
	if errors.As(err, &wfErr) {
		attrs = append(attrs, slog.String("code", wfErr.Code))
		if wfErr.Location != nil {
			attrs = append(attrs, slog.String("location", wfErr.Location.String()))
		}
	}
	logger.DebugContext(ctx, "interpretation failed", append(attrs, slog.String("error", err.Error()))...)
}
