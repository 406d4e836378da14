package iox

import (
	"errors"
	"io"
	"strings"
	"testing"
)

type spyCloser struct{ closed bool }

func (s *spyCloser) Close() error { s.closed = true; return errors.New("ignored") }

func TestDiscardClose(t *testing.T) {
	s := &spyCloser{}
	DiscardClose(s)
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	s := &spyCloser{}
	fn := CloseFunc(s)
	if s.closed {
		t.Fatal("Close called before invoking returned func")
	}
	fn()
	if !s.closed {
		t.Fatal("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	called := false
	DiscardErr(func() error {
		called = true
		return errors.New("ignored")
	})
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestCountingReader(t *testing.T) {
	cr := NewCountingReader(strings.NewReader("hello world"))
	buf := make([]byte, 5)
	if _, err := io.ReadFull(cr, buf); err != nil {
		t.Fatalf("ReadFull failed: %v", err)
	}
	if cr.Count() != 5 {
		t.Errorf("Count = %d, want 5", cr.Count())
	}
	if _, err := io.ReadAll(cr); err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if cr.Count() != 11 {
		t.Errorf("Count = %d, want 11", cr.Count())
	}
}
