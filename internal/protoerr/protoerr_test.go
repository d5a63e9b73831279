package protoerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewAndError(t *testing.T) {
	e := New(ShortRead, "header.flags")
	if e.Error() != "ShortRead(header.flags)" {
		t.Errorf("got %q", e.Error())
	}
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("eof")
	e := Wrap(BadMagic, "marker", cause)
	if e.Unwrap() != cause {
		t.Error("expected Unwrap to return the wrapped cause")
	}
	if e.Error() == "" {
		t.Error("expected non-empty error string")
	}
}

func TestAsFindsWrappedKind(t *testing.T) {
	inner := New(HandshakeDenied, "WrongVersion")
	outer := fmt.Errorf("outer: %w", inner)
	kind, ok := As(outer)
	if !ok {
		t.Fatal("expected As to find the wrapped *Error")
	}
	if kind != HandshakeDenied {
		t.Errorf("got %v, want HandshakeDenied", kind)
	}
}

func TestDetailReturnsKindAndContext(t *testing.T) {
	inner := New(HandshakeDenied, "WrongVersion")
	outer := fmt.Errorf("outer: %w", inner)
	kind, context, ok := Detail(outer)
	if !ok {
		t.Fatal("expected Detail to find the wrapped *Error")
	}
	if kind != HandshakeDenied || context != "WrongVersion" {
		t.Errorf("got kind=%v context=%q, want HandshakeDenied/WrongVersion", kind, context)
	}
}

func TestDetailNotFound(t *testing.T) {
	if _, _, ok := Detail(fmt.Errorf("plain error")); ok {
		t.Error("expected Detail to report false for a non-*Error chain")
	}
}

func TestFatalKinds(t *testing.T) {
	fatal := []Kind{HandshakeTimeout, HandshakeDenied, ReliableRetryExhausted, TransferTimeout, TransferCorrupt}
	for _, k := range fatal {
		if !k.Fatal() {
			t.Errorf("expected %v to be fatal", k)
		}
	}
	nonFatal := []Kind{ShortRead, BadFragment, DecoderRejected, QueueFull}
	for _, k := range nonFatal {
		if k.Fatal() {
			t.Errorf("expected %v to be non-fatal", k)
		}
	}
}
