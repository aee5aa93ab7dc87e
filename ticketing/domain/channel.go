package domain

import "time"

// ChannelKind distinguishes the two WhatsApp transports the core unifies.
type ChannelKind string

const (
	// ChannelKindDirect is the persistent multi-device socket session (whatsmeow).
	ChannelKindDirect ChannelKind = "direct"
	// ChannelKindCloud is the official REST + webhook API (Meta Cloud).
	ChannelKindCloud ChannelKind = "cloud"
)

// ChannelInstance is one configured WhatsApp number/connection.
// The core reads it; configuration is owned by an external surface. The only
// mutation the core performs is persisting a discovered phone-number id.
type ChannelInstance struct {
	ID             string
	TenantID       string
	Name           string
	Kind           ChannelKind
	WabaID         string // Cloud: WhatsApp Business Account id (webhook entry id)
	PhoneNumberID  string // Cloud: Graph API phone number id, may be discovered lazily
	AccessToken    string
	IntegrationID  string // default outbound integration for the connection
	DefaultQueueID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Integration is an outbound webhook target (n8n-style).
type Integration struct {
	ID       string
	TenantID string
	Name     string
	Kind     string // "n8n", "webhook"
	URL      string
}
