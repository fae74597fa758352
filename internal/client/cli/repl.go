package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	loginRequested() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Status(ctx context.Context) error
	Tickets(ctx context.Context) error
	Dashboard(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the ticketdesk CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF, on context cancellation, or when the user
// types "exit" or "quit".
//
// Before every prompt the loop checks whether the session was redirected to
// the login screen (an expired token, for instance) and, if so, asks for
// credentials again.
//
// Prompt & Commands
//
//	Not logged in:
//	  - help           show available commands
//	  - login          authenticate
//	  - status         show session and channel state
//	  - exit | quit    leave the program
//
//	Logged in:
//	  - help           show available commands
//	  - whoami         show the current identity and capabilities
//	  - (t)ickets      list tickets
//	  - (d)ashboard    show ticket statistics
//	  - status         show session and channel state
//	  - logout         log out
//	  - exit | quit    leave the program
//
// Errors returned by command handlers are ignored here. Intercepted failures
// reach the user as alerts and the handlers print the rest themselves.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		if a.loginRequested() && !a.isLoggedIn() {
			_ = a.Login(ctx)
		}

		fmt.Fprintf(out, "td %s> ", statusFn())
		line, err := readLine(reader)
		if err != nil {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: whoami, (t)ickets, (d)ashboard, status, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: login, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "status":
			_ = a.Status(ctx)

		case "t", "tickets":
			_ = a.Tickets(ctx)

		case "d", "dashboard":
			_ = a.Dashboard(ctx)

		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return

		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
