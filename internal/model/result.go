package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind discriminates the response shapes Canvas uses for a resource.
type Kind int

const (
	// KindEmpty is an empty body or a JSON null.
	KindEmpty Kind = iota
	// KindList is a JSON array of resources.
	KindList
	// KindObject is a single resource object.
	KindObject
	// KindStatus is an error object such as {"status":"unauthorized"} or
	// {"errors":[{"message":"..."}]}.
	KindStatus
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	case KindStatus:
		return "status"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// StatusUnauthorized is the status Canvas reports for a resource the course
// has disabled or the user may not see. Callers treat it as "absent".
const StatusUnauthorized = "unauthorized"

// ErrUnexpectedShape is returned when a body matches none of the known shapes.
var ErrUnexpectedShape = errors.New("unexpected response shape")

// Result is the decoded form of a list endpoint response.
// Exactly one of Items (KindList) or Status (KindStatus) is meaningful.
type Result[T any] struct {
	Kind   Kind
	Items  []T
	Status string
}

// Object is the decoded form of a single-resource endpoint response.
type Object[T any] struct {
	Kind   Kind
	Value  T
	Status string
}

// Absent reports whether the response means "resource not present":
// an empty body or an unauthorized status.
func (r Result[T]) Absent() bool {
	return r.Kind == KindEmpty || (r.Kind == KindStatus && r.Status == StatusUnauthorized)
}

// Absent reports whether the response means "resource not present".
func (o Object[T]) Absent() bool {
	return o.Kind == KindEmpty || (o.Kind == KindStatus && o.Status == StatusUnauthorized)
}

type statusPayload struct {
	Status string `json:"status"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// status extracts an error status from an object body. ok is false when
// the object carries neither a status nor an errors list.
func status(body []byte) (string, bool) {
	var p statusPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", false
	}
	if p.Status != "" {
		return p.Status, true
	}
	if len(p.Errors) > 0 {
		if p.Errors[0].Message != "" {
			return p.Errors[0].Message, true
		}
		return "error", true
	}
	return "", false
}

// DecodeResult decodes a list endpoint body into a Result.
func DecodeResult[T any](body []byte) (Result[T], error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return Result[T]{Kind: KindEmpty}, nil
	case trimmed[0] == '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Result[T]{}, fmt.Errorf("decode list: %w", err)
		}
		return Result[T]{Kind: KindList, Items: items}, nil
	case trimmed[0] == '{':
		if s, ok := status(trimmed); ok {
			return Result[T]{Kind: KindStatus, Status: s}, nil
		}
		return Result[T]{}, fmt.Errorf("%w: object without status where a list was expected", ErrUnexpectedShape)
	default:
		return Result[T]{}, fmt.Errorf("%w: starts with %q", ErrUnexpectedShape, trimmed[0])
	}
}

// DecodeObject decodes a single-resource endpoint body into an Object.
func DecodeObject[T any](body []byte) (Object[T], error) {
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")):
		return Object[T]{Kind: KindEmpty}, nil
	case trimmed[0] == '{':
		if s, ok := status(trimmed); ok {
			return Object[T]{Kind: KindStatus, Status: s}, nil
		}
		var v T
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return Object[T]{}, fmt.Errorf("decode object: %w", err)
		}
		return Object[T]{Kind: KindObject, Value: v}, nil
	default:
		return Object[T]{}, fmt.Errorf("%w: starts with %q", ErrUnexpectedShape, trimmed[0])
	}
}
