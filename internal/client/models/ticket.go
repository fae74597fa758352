package models

import "time"

// TicketStatus mirrors the backend's ticket lifecycle.
type TicketStatus string

const (
	TicketPending    TicketStatus = "pending"
	TicketInProgress TicketStatus = "in_progress"
	TicketDone       TicketStatus = "done"
	TicketRejected   TicketStatus = "rejected"
)

// Ticket is the subset of a ticket the CLI lists.
type Ticket struct {
	ID         int64        `json:"id"`
	Title      string       `json:"title"`
	Address    string       `json:"address"`
	Status     TicketStatus `json:"status"`
	Priority   int          `json:"priority"`
	Deadline   time.Time    `json:"deadline"`
	CustomerID int64        `json:"customer_id"`
	ExecutorID *int64       `json:"executor_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// TicketStats is the aggregate block of the dashboard.
type TicketStats struct {
	Total              int      `json:"total_tickets"`
	Pending            int      `json:"pending_tickets"`
	InProgress         int      `json:"in_progress_tickets"`
	Done               int      `json:"done_tickets"`
	Rejected           int      `json:"rejected_tickets"`
	AvgCompletionHours *float64 `json:"avg_completion_time_hours"`
}

// Dashboard is the payload of /api/tickets/dashboard/data.
type Dashboard struct {
	Stats         TicketStats `json:"stats"`
	RecentTickets []Ticket    `json:"recent_tickets"`
	MyTickets     []Ticket    `json:"my_tickets"`
}
