package foundation

import (
	"fmt"
	"strings"

	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Validator checks a single value.
type Validator[T any] func(T) ValidationResult

// ValidationResult accumulates field failures.
type ValidationResult struct {
	Errors []FieldError
}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Valid is the empty result.
func Valid() ValidationResult { return ValidationResult{} }

// Invalid returns a result carrying errs.
func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Errors: errs}
}

// Fail is shorthand for a single-field failure.
func Fail(field, code, message string) ValidationResult {
	return Invalid(FieldError{Field: field, Code: code, Message: message})
}

// OK reports whether no failures were recorded.
func (vr ValidationResult) OK() bool { return len(vr.Errors) == 0 }

// Combine merges two results.
func (vr ValidationResult) Combine(other ValidationResult) ValidationResult {
	if vr.OK() {
		return other
	}
	if other.OK() {
		return vr
	}
	merged := make([]FieldError, 0, len(vr.Errors)+len(other.Errors))
	merged = append(merged, vr.Errors...)
	merged = append(merged, other.Errors...)
	return Invalid(merged...)
}

// ToError converts failures into a single classified validation error.
func (vr ValidationResult) ToError() error {
	if vr.OK() {
		return nil
	}
	msgs := make([]string, 0, len(vr.Errors))
	fields := make([]string, 0, len(vr.Errors))
	for _, fe := range vr.Errors {
		msgs = append(msgs, fe.Error())
		fields = append(fields, fe.Field)
	}
	return ferrors.ValidationError(strings.Join(msgs, "; ")).
		WithContext("fields", fields).
		Build()
}

// Chain runs validators in order and merges their results.
func Chain[T any](validators ...Validator[T]) Validator[T] {
	return func(v T) ValidationResult {
		res := Valid()
		for _, fn := range validators {
			res = res.Combine(fn(v))
		}
		return res
	}
}

// OneOf accepts only the listed values.
func OneOf[T comparable](field string, allowed ...T) Validator[T] {
	set := make(map[T]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(v T) ValidationResult {
		if _, ok := set[v]; ok {
			return Valid()
		}
		return Fail(field, "one_of", fmt.Sprintf("must be one of %v, got %v", allowed, v))
	}
}

// NotEmpty rejects blank strings.
func NotEmpty(field string) Validator[string] {
	return func(v string) ValidationResult {
		if strings.TrimSpace(v) == "" {
			return Fail(field, "required", "must not be empty")
		}
		return Valid()
	}
}
