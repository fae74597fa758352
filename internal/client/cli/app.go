package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
	"github.com/dmitrijs2005/ticketdesk/internal/client/session"
	"github.com/dmitrijs2005/ticketdesk/internal/logging"
)

// SessionStore is the part of session.Store the CLI drives.
type SessionStore interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	State() session.State
	Identity() *models.Identity
	IsAuthenticated() bool
	CanCreateTickets() bool
	CanManageUsers() bool
	CanGenerateReports() bool
}

// TicketSource fetches ticket data through the request gateway.
type TicketSource interface {
	Tickets(ctx context.Context) ([]models.Ticket, error)
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

// EmailHint supplies the email of the last successful login.
type EmailHint interface {
	LastEmail(ctx context.Context) (string, error)
}

// ChannelStatus exposes the notification channel's connection state.
type ChannelStatus interface {
	Connected() bool
	Attempts() int
}

type Deps struct {
	Session SessionStore
	Tickets TicketSource
	// Hints and Channel are optional.
	Hints   EmailHint
	Channel ChannelStatus
	// Prompt receives the gateway's login redirects.
	Prompt *LoginPrompt
	Logger logging.Logger
	Out    io.Writer
}

type App struct {
	session SessionStore
	tickets TicketSource
	hints   EmailHint
	channel ChannelStatus
	prompt  *LoginPrompt
	log     logging.Logger
	out     io.Writer
	reader  *bufio.Reader
}

func NewApp(deps Deps) (*App, error) {
	if deps.Session == nil {
		return nil, errors.New("cli: session store is required")
	}
	if deps.Tickets == nil {
		return nil, errors.New("cli: ticket source is required")
	}

	a := &App{
		session: deps.Session,
		tickets: deps.Tickets,
		hints:   deps.Hints,
		channel: deps.Channel,
		prompt:  deps.Prompt,
		log:     deps.Logger,
		out:     deps.Out,
	}
	if a.prompt == nil {
		a.prompt = &LoginPrompt{}
	}
	if a.log == nil {
		a.log = logging.Nop()
	}
	if a.out == nil {
		a.out = os.Stdout
	}
	return a, nil
}

// Run greets the user, asks for credentials unless a session was restored,
// and blocks in the REPL until the user exits or in reaches EOF.
func (a *App) Run(ctx context.Context, in io.Reader) {
	a.reader = bufio.NewReader(in)

	fmt.Fprintln(a.out, "Welcome to ticketdesk (type 'help' for commands)")
	if !a.isLoggedIn() {
		_ = a.Login(ctx)
	}

	runREPL(ctx, a, a.getStatus, a.reader, a.out)
}

func (a *App) isLoggedIn() bool {
	return a.session.IsAuthenticated()
}

func (a *App) loginRequested() bool {
	return a.prompt.take()
}

func (a *App) getStatus() string {
	id := a.session.Identity()
	if id == nil {
		return "(signed out)"
	}

	mode := "offline"
	if a.channel != nil && a.channel.Connected() {
		mode = "live"
	}
	return fmt.Sprintf("(%s %s %s)", id.Email, id.Role, mode)
}
