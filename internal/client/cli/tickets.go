package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/dmitrijs2005/ticketdesk/internal/client/client"
	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
)

var statusColors = map[models.TicketStatus]lipgloss.Color{
	models.TicketPending:    lipgloss.Color("214"),
	models.TicketInProgress: lipgloss.Color("39"),
	models.TicketDone:       lipgloss.Color("42"),
	models.TicketRejected:   lipgloss.Color("196"),
}

const titleWidth = 40

// Tickets lists the tickets visible to the current user.
func (a *App) Tickets(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Please log in first")
		return errNotLoggedIn
	}

	tickets, err := a.tickets.Tickets(ctx)
	if err != nil {
		a.reportFailure(ctx, "list tickets", err)
		return err
	}
	if len(tickets) == 0 {
		fmt.Fprintln(a.out, "No tickets")
		return nil
	}

	printTickets(a.out, lipgloss.NewRenderer(a.out), tickets)
	return nil
}

// Dashboard prints the aggregate statistics and the latest tickets.
func (a *App) Dashboard(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Please log in first")
		return errNotLoggedIn
	}

	d, err := a.tickets.Dashboard(ctx)
	if err != nil {
		a.reportFailure(ctx, "load dashboard", err)
		return err
	}

	r := lipgloss.NewRenderer(a.out)
	header := r.NewStyle().Bold(true).Underline(true)

	s := d.Stats
	fmt.Fprintln(a.out, header.Render("Statistics"))
	fmt.Fprintf(a.out, "  total %d  %s %d  %s %d  %s %d  %s %d\n",
		s.Total,
		styleStatus(r, models.TicketPending), s.Pending,
		styleStatus(r, models.TicketInProgress), s.InProgress,
		styleStatus(r, models.TicketDone), s.Done,
		styleStatus(r, models.TicketRejected), s.Rejected,
	)
	if s.AvgCompletionHours != nil {
		fmt.Fprintf(a.out, "  average completion %.1fh\n", *s.AvgCompletionHours)
	}

	if len(d.RecentTickets) > 0 {
		fmt.Fprintln(a.out, header.Render("Recent"))
		printTickets(a.out, r, d.RecentTickets)
	}
	if len(d.MyTickets) > 0 {
		fmt.Fprintln(a.out, header.Render("Mine"))
		printTickets(a.out, r, d.MyTickets)
	}
	return nil
}

func printTickets(w io.Writer, r *lipgloss.Renderer, tickets []models.Ticket) {
	for _, t := range tickets {
		title := ansi.Truncate(t.Title, titleWidth, "…")

		deadline := "-"
		if !t.Deadline.IsZero() {
			deadline = t.Deadline.Format("2006-01-02")
		}

		fmt.Fprintf(w, "%6d  %s%s  %s  %s\n",
			t.ID,
			title, strings.Repeat(" ", titleWidth-lipgloss.Width(title)),
			deadline,
			styleStatus(r, t.Status),
		)
	}
}

func styleStatus(r *lipgloss.Renderer, s models.TicketStatus) string {
	label := strings.ReplaceAll(string(s), "_", " ")
	color, ok := statusColors[s]
	if !ok {
		return label
	}
	return r.NewStyle().Foreground(color).Render(label)
}

// alertedErrors are raised as alerts by the gateway itself.
var alertedErrors = []error{
	client.ErrUnauthorized,
	client.ErrForbidden,
	client.ErrServer,
	client.ErrUnavailable,
	context.Canceled,
}

// reportFailure prints err unless the gateway already told the user about it.
func (a *App) reportFailure(ctx context.Context, what string, err error) {
	a.log.Debug(ctx, what, "error", err)
	for _, target := range alertedErrors {
		if errors.Is(err, target) {
			return
		}
	}
	fmt.Fprintf(a.out, "Could not %s: %v\n", what, err)
}
