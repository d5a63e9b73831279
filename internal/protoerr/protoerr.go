// Package protoerr defines the error taxonomy shared by every layer of the
// client (spec §7). A single tagged type keeps the taxonomy closed and lets
// callers switch on Kind instead of matching error strings.
package protoerr

import "fmt"

// Kind is one of the fixed taxonomy values from spec §7.
type Kind string

const (
	ShortRead             Kind = "ShortRead"
	BadMagic              Kind = "BadMagic"
	UnknownMessageType    Kind = "UnknownMessageType"
	BadFragment           Kind = "BadFragment"
	ReliableRetryExhausted Kind = "ReliableRetryExhausted"
	HandshakeTimeout      Kind = "HandshakeTimeout"
	HandshakeDenied       Kind = "HandshakeDenied"
	TransferTimeout       Kind = "TransferTimeout"
	TransferCorrupt       Kind = "TransferCorrupt"
	DecoderRejected       Kind = "DecoderRejected"
	QueueFull             Kind = "QueueFull"
	SessionClosed         Kind = "SessionClosed"
)

// Fatal reports whether an error of this kind must close the session.
func (k Kind) Fatal() bool {
	switch k {
	case HandshakeTimeout, HandshakeDenied, ReliableRetryExhausted, TransferTimeout, TransferCorrupt:
		return true
	default:
		return false
	}
}

// Error is the concrete error value carried through the stack. Context is
// a short free-form string (an entry name, a reason code, a message ID)
// giving the taxonomy kind enough detail to act on without parsing text.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func New(kind Kind, context string) *Error {
	return &Error{Kind: kind, Context: context}
}

func Wrap(kind Kind, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Context != "" {
			return fmt.Sprintf("%s(%s): %v", e.Kind, e.Context, e.Cause)
		}
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	if e.Context != "" {
		return fmt.Sprintf("%s(%s)", e.Kind, e.Context)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// As reports the Kind of err if it is (or wraps) a *Error.
func As(err error) (Kind, bool) {
	var pe *Error
	if ok := errorsAs(err, &pe); ok {
		return pe.Kind, true
	}
	return "", false
}

// Detail reports both the Kind and the free-form Context of err if it is
// (or wraps) a *Error, so a caller that needs the specific reason behind
// a kind (e.g. which DenyReason a HandshakeDenied carried) doesn't have
// to discard it the way As alone would.
func Detail(err error) (kind Kind, context string, ok bool) {
	var pe *Error
	if ok := errorsAs(err, &pe); ok {
		return pe.Kind, pe.Context, true
	}
	return "", "", false
}

// errorsAs is a tiny local wrapper so this file only imports "fmt" at the
// top and keeps the standard errors.As call out of the public surface of
// this otherwise self-contained package.
func errorsAs(err error, target **Error) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
