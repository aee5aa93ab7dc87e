package domain

import "context"

// ContactRepository persists counterpart identities.
type ContactRepository interface {
	// FindOrCreate resolves (tenant, number) to a contact, creating it with
	// the given display name when absent. Creation must be race-safe: two
	// concurrent calls for the same number yield the same row.
	FindOrCreate(ctx context.Context, tenantID, number, name string, isGroup bool) (Contact, error)
	GetByID(ctx context.Context, tenantID, id string) (Contact, error)
}

// TicketRepository persists conversation threads.
type TicketRepository interface {
	// FindActive returns the most recent non-closed ticket for the pair, or
	// ErrTicketNotFound.
	FindActive(ctx context.Context, tenantID, contactID, channelID string) (Ticket, error)
	Create(ctx context.Context, t *Ticket) error
	Update(ctx context.Context, t *Ticket) error
	GetByID(ctx context.Context, tenantID, id string) (Ticket, error)
	ListByStatus(ctx context.Context, tenantID string, status TicketStatus, limit, offset int) ([]Ticket, error)
}

// MessageRepository persists messages with per-message idempotency.
type MessageRepository interface {
	// StoreInbound inserts the message and, in the same transaction, bumps the
	// ticket unread counter and last-message snapshot. A duplicate ExternalID
	// is a no-op: created is false and the stored row is returned.
	StoreInbound(ctx context.Context, msg *Message) (created bool, stored Message, err error)
	// StoreOutbound mirrors StoreInbound for agent-sent messages: lastMessage
	// is updated but the unread counter is untouched.
	StoreOutbound(ctx context.Context, msg *Message) (created bool, stored Message, err error)
	FindByExternalID(ctx context.Context, tenantID, externalID string) (Message, error)
	// UpdateAck persists a new ack level for the message row.
	UpdateAck(ctx context.Context, tenantID, externalID string, ack AckLevel) error
	ListByTicket(ctx context.Context, tenantID, ticketID string) ([]Message, error)
	CountByTicket(ctx context.Context, tenantID, ticketID string) (int64, error)
}

// ChannelRepository reads channel instance configuration.
type ChannelRepository interface {
	GetByID(ctx context.Context, id string) (ChannelInstance, error)
	// GetByWabaID resolves the Cloud webhook entry id to a channel instance.
	GetByWabaID(ctx context.Context, wabaID string) (ChannelInstance, error)
	// SavePhoneNumberID persists a lazily discovered phone-number id. The call
	// is idempotent and best-effort: failures must not block message flow.
	SavePhoneNumberID(ctx context.Context, channelID, phoneNumberID string) error
	List(ctx context.Context, tenantID string) ([]ChannelInstance, error)
}

// QueueRepository reads queue/auto-assignment configuration and owns the
// durable round-robin cursor.
type QueueRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (Queue, error)
	// NextAssignmentIndex atomically increments the queue's round-robin cursor
	// and returns the new value. Safe under concurrent callers.
	NextAssignmentIndex(ctx context.Context, tenantID, queueID string) (int64, error)
}

// IntegrationRepository reads outbound webhook targets.
type IntegrationRepository interface {
	GetByID(ctx context.Context, tenantID, id string) (Integration, error)
}

// PresenceStore tracks which agents are currently online, consulted by the
// auto-assignment filter.
type PresenceStore interface {
	SetOnline(ctx context.Context, tenantID, userID string) error
	SetOffline(ctx context.Context, tenantID, userID string) error
	IsOnline(ctx context.Context, tenantID, userID string) bool
}
