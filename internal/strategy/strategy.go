// Package strategy runs ordered fallback attempts and keeps the first one
// that produces a usable value.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoAttempts is returned when FirstSuccess is given nothing to try
var ErrNoAttempts = errors.New("no attempts configured")

// Attempt is one named way of producing a T. Run reports ok=false when the
// attempt did not apply or did not produce a usable value; err carries the
// cause when there is one.
type Attempt[T any] struct {
	Name string
	Run  func(ctx context.Context) (value T, ok bool, err error)
}

// Failure is returned when every attempt was exhausted
type Failure struct {
	Tried []string
	Last  error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("all attempts failed (%s)", strings.Join(f.Tried, ", "))
	if f.Last != nil {
		msg += ": " + f.Last.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Last
}

// Observer is told about every attempt that did not succeed
type Observer func(name string, err error)

// FirstSuccess runs attempts in order and returns the value and name of the
// first one that succeeds. Context cancellation stops the sequence.
func FirstSuccess[T any](ctx context.Context, attempts []Attempt[T], observe Observer) (T, string, error) {
	var zero T
	if len(attempts) == 0 {
		return zero, "", ErrNoAttempts
	}

	failure := &Failure{}
	for _, a := range attempts {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}

		value, ok, err := a.Run(ctx)
		if ok && err == nil {
			return value, a.Name, nil
		}

		failure.Tried = append(failure.Tried, a.Name)
		if err != nil {
			failure.Last = err
		}
		if observe != nil {
			observe(a.Name, err)
		}
	}

	return zero, "", failure
}
