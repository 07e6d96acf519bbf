package common

import "errors"

var ErrModulePaused = errors.New("module paused")

// PauseView reports whether a module has been administratively paused.
type PauseView interface {
	IsPaused(module string) bool
}

// Guard returns ErrModulePaused when the named module is paused. A nil view
// or empty module name never blocks.
func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
