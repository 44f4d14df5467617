package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attempt(name string, value int, ok bool, err error, calls *[]string) Attempt[int] {
	return Attempt[int]{
		Name: name,
		Run: func(context.Context) (int, bool, error) {
			*calls = append(*calls, name)
			return value, ok, err
		},
	}
}

func TestFirstSuccessStopsAtFirstUsable(t *testing.T) {
	var calls []string
	attempts := []Attempt[int]{
		attempt("a", 0, false, nil, &calls),
		attempt("b", 7, true, nil, &calls),
		attempt("c", 9, true, nil, &calls),
	}

	value, name, err := FirstSuccess(context.Background(), attempts, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, value)
	assert.Equal(t, "b", name)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestFirstSuccessTreatsErrorAsFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	var observed []string

	attempts := []Attempt[int]{
		attempt("a", 1, true, boom, &calls),
		attempt("b", 0, false, nil, &calls),
	}

	_, _, err := FirstSuccess(context.Background(), attempts, func(name string, _ error) {
		observed = append(observed, name)
	})

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, []string{"a", "b"}, failure.Tried)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"a", "b"}, observed)
}

func TestFirstSuccessEmpty(t *testing.T) {
	_, _, err := FirstSuccess[int](context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoAttempts)
}

func TestFirstSuccessHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, _, err := FirstSuccess(ctx, []Attempt[int]{attempt("a", 1, true, nil, &calls)}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}
