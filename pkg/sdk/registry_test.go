package sdk

import (
	"errors"
	"sync"
	"testing"

	"github.com/rendis/wfscript/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubFunc(result any) Func {
	return func(_ []any) (any, error) { return result, nil }
}

func TestRegistry_Register_Success(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(FnNode, stubFunc("n")))
	assert.True(t, reg.Has(FnNode))
	assert.Equal(t, []string{FnNode}, reg.List())
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(FnNode, stubFunc(nil)))

	err := reg.Register(FnNode, stubFunc(nil))
	require.Error(t, err)

	var wfErr *schema.Error
	require.True(t, errors.As(err, &wfErr))
	assert.Equal(t, schema.ErrCodeConflict, wfErr.Code)
}

func TestRegistry_Register_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		fn   Func
	}{
		{"nil func", FnNode, nil},
		{"empty name", "", stubFunc(nil)},
		{"unknown name", "exec", stubFunc(nil)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewRegistry().Register(tc.key, tc.fn)
			require.Error(t, err)

			var wfErr *schema.Error
			require.True(t, errors.As(err, &wfErr))
			assert.Equal(t, schema.ErrCodeValidation, wfErr.Code)
		})
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(FnExpr, stubFunc("={{ 1 }}")))

	fn, err := reg.Get(FnExpr)
	require.NoError(t, err)
	out, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "={{ 1 }}", out)

	_, err = reg.Get(FnMerge)
	assert.True(t, errors.Is(err, &schema.Error{Code: schema.ErrCodeNotFound}))
}

func TestRegistry_RegisterAll(t *testing.T) {
	reg := NewRegistry()
	n, err := reg.RegisterAll(Functions{
		FnWorkflow: stubFunc(nil),
		FnTrigger:  stubFunc(nil),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = reg.RegisterAll(Functions{FnMemory: stubFunc(nil), FnTrigger: stubFunc(nil)})
	require.Error(t, err)
	assert.Equal(t, 1, n, "memory sorts before trigger and registers first")
}

func TestRegistry_FunctionsIsSnapshot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(FnNode, stubFunc(nil)))

	snap := reg.Functions()
	require.NoError(t, reg.Register(FnTrigger, stubFunc(nil)))

	assert.Len(t, snap, 1)
	assert.Len(t, reg.Functions(), 2)
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()
	var wg sync.WaitGroup
	for _, name := range FunctionNames {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = reg.Register(name, stubFunc(name))
			_ = reg.Has(name)
			_ = reg.List()
		}(name)
	}
	wg.Wait()
	assert.Len(t, reg.List(), len(FunctionNames))
}

func TestFunctions_Validate(t *testing.T) {
	assert.NoError(t, Functions{FnNode: stubFunc(nil)}.Validate())
	assert.Error(t, Functions{"require": stubFunc(nil)}.Validate())
	assert.Error(t, Functions{FnNode: nil}.Validate())
}
