package query

import (
	"sync"

	"github.com/rendis/wfscript/pkg/schema"
)

// programCache memoizes compiled expressions by their source text. Failed
// compilations are not cached.
type programCache[P any] struct {
	lang    string
	compile func(expression string) (P, error)

	mu       sync.RWMutex
	programs map[string]P
}

func newProgramCache[P any](lang string, compile func(string) (P, error)) *programCache[P] {
	return &programCache[P]{lang: lang, compile: compile, programs: make(map[string]P)}
}

func (c *programCache[P]) get(expression string) (P, error) {
	var zero P
	if expression == "" {
		return zero, schema.NewErrorf(schema.ErrCodeValidation, "empty %s expression", c.lang)
	}

	c.mu.RLock()
	p, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.programs[expression]; ok {
		return p, nil
	}
	p, err := c.compile(expression)
	if err != nil {
		return zero, err
	}
	c.programs[expression] = p
	return p, nil
}

func (c *programCache[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}

// exprError wraps an engine failure with the offending expression attached.
func exprError(code, lang, stage, expression string, err error) error {
	return schema.NewErrorf(code, "%s %s %q: %s", lang, stage, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": expression, "engine": lang})
}
