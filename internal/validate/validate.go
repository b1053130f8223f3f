// Package validate is the single checkpoint between untrusted request bodies
// and typed values.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by the names clients sent
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// maxBody bounds how much of a request body Decode reads.
const maxBody = 1 << 20

// Result is either a valid T or a list of problems, never both.
type Result[T any] struct {
	value    T
	problems []string
}

func Valid[T any](val T) Result[T] { return Result[T]{value: val} }

func Invalid[T any](problems ...string) Result[T] {
	if len(problems) == 0 {
		problems = []string{"invalid payload"}
	}
	return Result[T]{problems: problems}
}

func (r Result[T]) Valid() bool { return len(r.problems) == 0 }

// Value returns the decoded value. It is the zero T when the result is invalid.
func (r Result[T]) Value() T { return r.value }

func (r Result[T]) Problems() []string { return r.problems }

// Decode reads a JSON object into T and runs its `validate` struct tags.
// Unknown fields are rejected.
func Decode[T any](body io.Reader) Result[T] {
	var out T
	dec := json.NewDecoder(io.LimitReader(body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return Invalid[T]("request body is empty")
		}
		return Invalid[T](fmt.Sprintf("malformed JSON: %v", err))
	}
	return Check(out)
}

// Check validates an already-built value.
func Check[T any](val T) Result[T] {
	err := v.Struct(val)
	if err == nil {
		return Valid(val)
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return Invalid[T](err.Error())
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", fe.Field(), msgForTag(fe)))
	}
	return Invalid[T](msgs...)
}

func msgForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed on '%s' validation", fe.Tag())
	}
}
