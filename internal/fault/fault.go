// Package fault defines the error taxonomy shared by every component.
//
// Transport, Decode and EventLocal errors are recovered at the smallest
// enclosing scope (one data source, one calendar event). ResourceExhausted
// is reported when a bounded buffer or pool slot is full. Fatal marks a
// supervised invariant violation that has no local recovery.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindDecode
	KindEventLocal
	KindResourceExhausted
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindEventLocal:
		return "event"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is.
var (
	ErrTransport         = &Error{Kind: KindTransport}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrEventLocal        = &Error{Kind: KindEventLocal}
	ErrResourceExhausted = &Error{Kind: KindResourceExhausted}
	ErrFatal             = &Error{Kind: KindFatal}
)

// Error carries a Kind, the failing operation and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return e.Op + ": " + e.Kind.String()
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newErr(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport wraps a connect/send/receive failure at the network boundary.
func Transport(op string, err error) error { return newErr(KindTransport, op, err) }

// Decode wraps malformed JSON, UTF-8 or timestamp input.
func Decode(op string, err error) error { return newErr(KindDecode, op, err) }

// EventLocal wraps a failure confined to a single calendar event.
func EventLocal(op string, err error) error { return newErr(KindEventLocal, op, err) }

// ResourceExhausted reports a full bounded buffer or pool.
func ResourceExhausted(op string, err error) error {
	return newErr(KindResourceExhausted, op, err)
}

// Fatal reports a supervised invariant violation.
func Fatal(op string, err error) error { return newErr(KindFatal, op, err) }

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}
