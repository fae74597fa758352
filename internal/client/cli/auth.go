package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ticketdesk/internal/client/session"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

var errNotLoggedIn = errors.New("not logged in")

// Login prompts for credentials and hands them to the session store. The
// email of the last successful login is offered as the default.
//
// The store raises its own welcome or failure alert, so a failed login is
// only logged here. The password is wiped before returning.
func (a *App) Login(ctx context.Context) error {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Already logged in, use 'logout' first")
		return nil
	}

	hint := a.lastEmail(ctx)
	prompt := "Enter email"
	if hint != "" {
		prompt = fmt.Sprintf("Enter email [%s]", hint)
	}

	email, err := getSimpleText(a.reader, prompt, a.out)
	if err != nil {
		return err
	}
	if email == "" {
		email = hint
	}

	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}
	defer wipe(password)

	if err := a.session.Login(ctx, email, string(password)); err != nil {
		a.log.Debug(ctx, "login failed", "error", err)
		return err
	}
	return nil
}

func (a *App) lastEmail(ctx context.Context) string {
	if a.hints == nil {
		return ""
	}
	email, err := a.hints.LastEmail(ctx)
	if err != nil {
		a.log.Warn(ctx, "read last email", "error", err)
		return ""
	}
	return email
}

// Logout ends the session. Logging out while signed out does nothing.
func (a *App) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

// WhoAmI prints the signed-in identity and what it may do.
func (a *App) WhoAmI(ctx context.Context) error {
	id := a.session.Identity()
	if id == nil {
		fmt.Fprintln(a.out, "Not logged in")
		return errNotLoggedIn
	}

	var caps []string
	if a.session.CanCreateTickets() {
		caps = append(caps, "create tickets")
	}
	if a.session.CanManageUsers() {
		caps = append(caps, "manage users")
	}
	if a.session.CanGenerateReports() {
		caps = append(caps, "generate reports")
	}
	if len(caps) == 0 {
		caps = append(caps, "work assigned tickets")
	}

	fmt.Fprintf(a.out, "%s <%s>\n", id.DisplayName(), id.Email)
	fmt.Fprintf(a.out, "  role:  %s\n", id.Role)
	fmt.Fprintf(a.out, "  can:   %s\n", strings.Join(caps, ", "))
	return nil
}

// Status prints the session state and the notification channel's health.
func (a *App) Status(ctx context.Context) error {
	state := a.session.State()
	fmt.Fprintf(a.out, "session:       %s\n", state)

	if a.channel == nil {
		return nil
	}
	switch {
	case a.channel.Connected():
		fmt.Fprintln(a.out, "notifications: connected")
	case state == session.StateAuthenticated:
		fmt.Fprintf(a.out, "notifications: reconnecting (attempt %d)\n", a.channel.Attempts())
	default:
		fmt.Fprintln(a.out, "notifications: off")
	}
	return nil
}
