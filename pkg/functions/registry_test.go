package functions_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/sonata/pkg/functions"
	"github.com/sandrolain/sonata/pkg/types"
)

func identity(_ context.Context, args ...types.Value) (types.Value, error) {
	return args[0], nil
}

func TestDefinitionValidate(t *testing.T) {
	advanced := func(context.Context, functions.Caller, ...types.Value) (types.Value, error) { return nil, nil }

	tests := []struct {
		name string
		def  functions.Definition
		want error
	}{
		{"fn", functions.Definition{Name: "id", Fn: identity}, nil},
		{"advanced", functions.Definition{Name: "adv", Advanced: advanced}, nil},
		{"async", functions.Definition{Name: "later", Async: functions.Go(identity)}, nil},
		{"no name", functions.Definition{Fn: identity}, functions.ErrNoName},
		{"no implementation", functions.Definition{Name: "x"}, functions.ErrNoImplementation},
		{"two implementations", functions.Definition{Name: "x", Fn: identity, Advanced: advanced}, functions.ErrNoImplementation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGoAndResolve(t *testing.T) {
	ch := functions.Go(identity)(context.Background(), types.String("v"))
	got, err := functions.Resolve(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, types.String("v"), got)

	boom := errors.New("boom")
	ch = functions.Go(func(context.Context, ...types.Value) (types.Value, error) { return nil, boom })(context.Background())
	_, err = functions.Resolve(context.Background(), ch)
	assert.ErrorIs(t, err, boom)
}

func TestResolveClosedChannelIsUndefined(t *testing.T) {
	ch := make(chan functions.Result)
	close(ch)
	got, err := functions.Resolve(context.Background(), ch)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := functions.Resolve(ctx, make(chan functions.Result))
	assert.ErrorIs(t, err, context.Canceled)
}
