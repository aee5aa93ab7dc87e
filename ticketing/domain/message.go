package domain

import "time"

// AckLevel mirrors the provider delivery-status ladder.
type AckLevel int

const (
	AckFailed    AckLevel = -1
	AckQueued    AckLevel = 0
	AckSent      AckLevel = 1
	AckDelivered AckLevel = 2
	AckRead      AckLevel = 3
)

// Message is one chat message. ExternalID is the channel-native id (wamid for
// Cloud, stanza id for Direct) and is the idempotency key within a tenant.
type Message struct {
	ID         string
	TenantID   string
	ExternalID string
	TicketID   string
	ContactID  string
	Body       string
	FromMe     bool
	Read       bool
	Ack        AckLevel
	MediaType  string // empty for plain text
	MediaRef   string // provider media id/URL or local file, empty when none
	QuotedID   string // external id of the quoted message, if any
	Timestamp  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ApplyAck applies a status transition and reports whether it took effect.
// Acks only move forward; failed is terminal and always applicable unless the
// message already failed.
func (m *Message) ApplyAck(newAck AckLevel) bool {
	if m.Ack == AckFailed {
		return false
	}
	if newAck == AckFailed {
		m.Ack = AckFailed
		return true
	}
	if newAck <= m.Ack {
		return false
	}
	m.Ack = newAck
	return true
}
