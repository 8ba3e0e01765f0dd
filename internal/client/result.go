package client

import (
	apierrors "github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/validation"
)

// Result is the outcome of a mutation the server may reject with
// validation errors: exactly one of a value or an error tree.
type Result[T any] struct {
	value T
	errs  validation.Node
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Invalid wraps a validation error tree. A nil tree becomes an empty one so
// the result still reports Failed.
func Invalid[T any](errs validation.Node) Result[T] {
	if errs == nil {
		errs = validation.Node{}
	}
	return Result[T]{errs: errs}
}

// Failed reports whether the server rejected the request.
func (r Result[T]) Failed() bool {
	return r.errs != nil
}

func (r Result[T]) Value() (T, bool) {
	return r.value, r.errs == nil
}

func (r Result[T]) Errors() (validation.Node, bool) {
	return r.errs, r.errs != nil
}

// FormErrors normalizes the error tree. It is empty for successful results.
func (r Result[T]) FormErrors() validation.FormErrors {
	if r.errs == nil {
		return validation.FormErrors{}
	}
	return validation.Normalize(r.errs)
}

// Unwrap converts an invalid result into a *errors.ValidationFailed.
func (r Result[T]) Unwrap() (T, error) {
	if r.errs != nil {
		var zero T
		return zero, &apierrors.ValidationFailed{Errors: r.errs}
	}
	return r.value, nil
}
