package cli

import "sync/atomic"

// LoginPrompt is the CLI's Navigator. A terminal has no routes, so a redirect
// only marks that the REPL should show the login prompt before reading the
// next command.
type LoginPrompt struct {
	pending atomic.Bool
}

func (p *LoginPrompt) RedirectToLogin() { p.pending.Store(true) }

// take reports whether a redirect happened since the last call.
func (p *LoginPrompt) take() bool { return p.pending.Swap(false) }
