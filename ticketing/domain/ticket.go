package domain

import "time"

type TicketStatus string

const (
	TicketStatusPending TicketStatus = "pending"
	TicketStatusOpen    TicketStatus = "open"
	TicketStatusClosed  TicketStatus = "closed"
)

// Ticket is one conversation thread between a contact and a channel instance.
// At most one ticket per (contact, channel) is active (status != closed) at a
// time; the dispatch gate enforces it, not the storage layer.
type Ticket struct {
	ID             string
	TenantID       string
	ContactID      string
	ChannelID      string
	Status         TicketStatus
	UserID         string // assigned agent, empty when unassigned
	QueueID        string
	LastMessage    string
	UnreadMessages int
	IsBot          bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the ticket still collects new inbound messages.
func (t *Ticket) IsActive() bool {
	return t.Status != TicketStatusClosed
}
