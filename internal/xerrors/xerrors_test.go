package xerrors

import (
	"errors"
	"io"
	"testing"
)

func TestWrap_NilPassthrough(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "context %d", 1) != nil {
		t.Fatal("Wrapf(nil) should be nil")
	}
	if WithStack(nil) != nil {
		t.Fatal("WithStack(nil) should be nil")
	}
}

func TestWrap_MessageAndUnwrap(t *testing.T) {
	err := Wrap(io.EOF, "reading header")
	if err.Error() != "reading header: EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, io.EOF) {
		t.Fatal("wrapped error should unwrap to io.EOF")
	}
}

func TestNew_CapturesStack(t *testing.T) {
	err := New("boom")

	var hs interface{ StackPCs() []uintptr }
	if !errors.As(err, &hs) {
		t.Fatal("New should capture a stack")
	}
	if len(hs.StackPCs()) == 0 {
		t.Fatal("expected non-empty stack")
	}
}

func TestWrap_CapturesCallerPC(t *testing.T) {
	err := Wrap(io.EOF, "ctx")

	var hp interface{ PC() uintptr }
	if !errors.As(err, &hp) {
		t.Fatal("Wrap should record caller PC")
	}
	if hp.PC() == 0 {
		t.Fatal("expected non-zero PC")
	}
}
