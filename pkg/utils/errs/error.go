package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies an error by how the booking flow recovers from it.
type Kind int

const (
	KindUnknown Kind = iota
	// KindFetch is a failed catalog or availability read; recovered with fallback data.
	KindFetch
	// KindValidation is an incomplete or malformed input; the action is refused.
	KindValidation
	// KindSubmission is a booking the backend rejected.
	KindSubmission
	// KindTransport is a network or decoding failure talking to a collaborator.
	KindTransport
	// KindConflict is a slot that was taken between lookup and booking.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindValidation:
		return "validation"
	case KindSubmission:
		return "submission"
	case KindTransport:
		return "transport"
	case KindConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// CustomError carries a message, structured arguments, a kind and an optional cause.
type CustomError struct {
	message string
	kind    Kind
	args    map[string]interface{}
	wrapped error
}

// New creates a new CustomError instance.
func New(message string) *CustomError {
	return &CustomError{
		message: message,
		args:    make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *CustomError) Error() string {
	return e.fullErrorString()
}

// Message returns the bare message without args or cause.
func (e *CustomError) Message() string {
	return e.message
}

// Arg adds an argument to the error.
func (e *CustomError) Arg(key string, value interface{}) *CustomError {
	e.args[key] = value
	return e
}

// Kind sets the error kind.
func (e *CustomError) Kind(k Kind) *CustomError {
	e.kind = k
	return e
}

// Wrap wraps another error (can be of the same type or a standard error).
func (e *CustomError) Wrap(err error) *CustomError {
	if err != nil {
		e.wrapped = err
	}
	return e
}

// Unwrap returns the wrapped error if any.
func (e *CustomError) Unwrap() error {
	return e.wrapped
}

// KindOf returns the first explicit kind found along the wrap chain.
func KindOf(err error) Kind {
	for err != nil {
		var ce *CustomError
		if !errors.As(err, &ce) {
			return KindUnknown
		}
		if ce.kind != KindUnknown {
			return ce.kind
		}
		err = ce.wrapped
	}
	return KindUnknown
}

// fullErrorString renders "{msg: <message>, kind: <kind>, args: <args>, wrappedError: {<cause>}}".
// Args are printed in key order so the output is stable.
func (e *CustomError) fullErrorString() string {
	var builder strings.Builder

	builder.WriteString("{msg: ")
	builder.WriteString(e.message)

	if e.kind != KindUnknown {
		builder.WriteString(", kind: ")
		builder.WriteString(e.kind.String())
	}

	if len(e.args) > 0 {
		keys := make([]string, 0, len(e.args))
		for k := range e.args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		builder.WriteString(", args: map[")
		for i, k := range keys {
			if i > 0 {
				builder.WriteString(" ")
			}
			builder.WriteString(fmt.Sprintf("%s:%v", k, e.args[k]))
		}
		builder.WriteString("]")
	}

	if e.wrapped != nil {
		var wrappedErr *CustomError
		if errors.As(e.wrapped, &wrappedErr) && wrappedErr == e.wrapped {
			builder.WriteString(fmt.Sprintf(", wrappedError: %s", wrappedErr.fullErrorString()))
		} else {
			builder.WriteString(fmt.Sprintf(", wrappedError: {%v}", e.wrapped.Error()))
		}
	}

	builder.WriteString("}")

	return builder.String()
}
