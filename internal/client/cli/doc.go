// Package cli provides the interactive ticketdesk command-line client.
//
// The App drives a session store and the request gateway from a simple REPL.
// Alerts raised anywhere in the client are rendered by Toaster as coloured
// one-line toasts, and LoginPrompt turns the gateway's "redirect to login"
// into a credentials prompt before the next command.
//
// Key features:
//   - Login / Logout, with the last used email offered as default
//   - whoami and status for the identity, role capabilities and channel health
//   - Ticket list and dashboard statistics
//
// The REPL is started via App.Run(ctx, in), which blocks until the user exits.
package cli
