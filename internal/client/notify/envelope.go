package notify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/ticketdesk/internal/client/models"
	"github.com/go-playground/validator/v10"
)

// ErrMalformedEnvelope is returned by Decode for frames that are not a valid
// envelope. The channel logs and drops such frames.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// TypeTicketUpdated is the only envelope type the channel turns into alerts.
const TypeTicketUpdated = "ticket_updated"

// Ticket actions with a dedicated message.
const (
	ActionCreated       = "created"
	ActionAssigned      = "assigned"
	ActionStatusChanged = "status_changed"
)

// Envelope is a decoded inbound frame: either *TicketUpdated or *Unknown.
type Envelope interface {
	Type() string
}

// TicketSnapshot is the state of a ticket at the time of the event.
type TicketSnapshot struct {
	ID           int64               `json:"id"`
	Title        string              `json:"title"`
	Status       models.TicketStatus `json:"status"`
	CustomerName *string             `json:"customer_name"`
	ExecutorName *string             `json:"executor_name"`
}

// TicketUpdated reports a change to a ticket the user is involved in.
type TicketUpdated struct {
	Action string          `json:"action" validate:"required"`
	Ticket *TicketSnapshot `json:"ticket" validate:"required"`
	// Timestamp is passed through as sent; the backend omits the zone.
	Timestamp string `json:"timestamp"`
}

func (*TicketUpdated) Type() string { return TypeTicketUpdated }

// Message renders the user-facing text for the event.
func (e *TicketUpdated) Message() string {
	switch e.Action {
	case ActionCreated:
		return fmt.Sprintf("New ticket: %q", e.Ticket.Title)
	case ActionAssigned:
		return fmt.Sprintf("Ticket %q has been assigned", e.Ticket.Title)
	case ActionStatusChanged:
		return fmt.Sprintf("Ticket %q status changed to %s", e.Ticket.Title, e.Ticket.Status)
	default:
		return fmt.Sprintf("Ticket %q updated", e.Ticket.Title)
	}
}

// Unknown is any well-formed envelope of a type this client does not handle.
type Unknown struct {
	Kind string
	Raw  json.RawMessage
}

func (u *Unknown) Type() string { return u.Kind }

var validate = validator.New()

// Decode parses one text frame. It fails closed: anything that is not a JSON
// object with a string "type" field, or a known type with missing fields,
// yields ErrMalformedEnvelope.
func Decode(data []byte) (Envelope, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if head.Type == nil || *head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEnvelope)
	}

	switch *head.Type {
	case TypeTicketUpdated:
		var e TicketUpdated
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		if err := validate.Struct(&e); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		return &e, nil
	default:
		return &Unknown{Kind: *head.Type, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}
