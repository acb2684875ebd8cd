package common

import (
	"errors"
	"testing"
)

type pauseFunc func(string) bool

func (f pauseFunc) IsPaused(module string) bool { return f(module) }

func TestGuard(t *testing.T) {
	if err := Guard(nil, "credit"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	paused := StaticPauses{"credit": true}
	if err := Guard(paused, "credit"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(paused, " Credit "); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("module names should be normalised, got %v", err)
	}
	if err := Guard(paused, "other"); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
}

func TestAnyPaused(t *testing.T) {
	flag := false
	view := AnyPaused{StaticPauses{}, pauseFunc(func(string) bool { return flag })}
	if view.IsPaused("credit") {
		t.Fatalf("expected unpaused")
	}
	flag = true
	if !view.IsPaused("credit") {
		t.Fatalf("expected paused once any view reports it")
	}
}
