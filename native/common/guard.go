package common

import (
	"errors"
	"strings"
)

var ErrModulePaused = errors.New("module paused")

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// StaticPauses is an operator-supplied set of paused modules, typically loaded
// from node configuration.
type StaticPauses map[string]bool

func (s StaticPauses) IsPaused(module string) bool {
	if len(s) == 0 {
		return false
	}
	return s[strings.ToLower(strings.TrimSpace(module))]
}

// AnyPaused reports a module as paused when any of its views does.
type AnyPaused []PauseView

func (a AnyPaused) IsPaused(module string) bool {
	for _, view := range a {
		if view != nil && view.IsPaused(module) {
			return true
		}
	}
	return false
}
