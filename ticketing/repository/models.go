package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// --- Persistence Models ---

type contactModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	TenantID  string    `gorm:"column:tenant_id;not null;uniqueIndex:idx_contact_tenant_number"`
	Number    string    `gorm:"column:number;not null;uniqueIndex:idx_contact_tenant_number"`
	Name      string    `gorm:"column:name"`
	IsGroup   bool      `gorm:"column:is_group;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (contactModel) TableName() string { return "contacts" }

type ticketModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	TenantID       string         `gorm:"column:tenant_id;not null;index:idx_ticket_tenant_status"`
	ContactID      string         `gorm:"column:contact_id;not null;index:idx_ticket_contact_channel"`
	ChannelID      string         `gorm:"column:channel_id;not null;index:idx_ticket_contact_channel"`
	Status         string         `gorm:"column:status;not null;index:idx_ticket_tenant_status"`
	UserID         sql.NullString `gorm:"column:user_id"`
	QueueID        sql.NullString `gorm:"column:queue_id"`
	LastMessage    string         `gorm:"column:last_message"`
	UnreadMessages int            `gorm:"column:unread_messages;default:0"`
	IsBot          bool           `gorm:"column:is_bot;default:false"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null;index"`
}

func (ticketModel) TableName() string { return "tickets" }

type messageModel struct {
	ID         string         `gorm:"primaryKey;column:id"`
	TenantID   string         `gorm:"column:tenant_id;not null;uniqueIndex:idx_message_tenant_external"`
	ExternalID string         `gorm:"column:external_id;not null;uniqueIndex:idx_message_tenant_external"`
	TicketID   string         `gorm:"column:ticket_id;not null;index"`
	ContactID  string         `gorm:"column:contact_id;not null"`
	Body       string         `gorm:"column:body;type:text"`
	FromMe     bool           `gorm:"column:from_me;default:false"`
	Read       bool           `gorm:"column:read;default:false"`
	Ack        int            `gorm:"column:ack;default:0"`
	MediaType  sql.NullString `gorm:"column:media_type"`
	MediaRef   sql.NullString `gorm:"column:media_ref"`
	QuotedID   sql.NullString `gorm:"column:quoted_id"`
	Timestamp  time.Time      `gorm:"column:timestamp;not null;index"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null"`
}

func (messageModel) TableName() string { return "messages" }

type channelModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	TenantID       string         `gorm:"column:tenant_id;not null;index"`
	Name           string         `gorm:"column:name;not null"`
	Kind           string         `gorm:"column:kind;not null"`
	WabaID         sql.NullString `gorm:"column:waba_id;index"`
	PhoneNumberID  sql.NullString `gorm:"column:phone_number_id"`
	AccessToken    sql.NullString `gorm:"column:access_token"`
	IntegrationID  sql.NullString `gorm:"column:integration_id"`
	DefaultQueueID sql.NullString `gorm:"column:default_queue_id"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (channelModel) TableName() string { return "channels" }

type queueModel struct {
	ID                    string         `gorm:"primaryKey;column:id"`
	TenantID              string         `gorm:"column:tenant_id;not null;index"`
	Name                  string         `gorm:"column:name;not null"`
	IntegrationID         sql.NullString `gorm:"column:integration_id"`
	AutoAssignmentEnabled bool           `gorm:"column:auto_assignment_enabled;default:false"`
	AssignOfflineUsers    bool           `gorm:"column:assign_offline_users;default:false"`
	AutoAssignUserIDs     sql.NullString `gorm:"column:auto_assign_user_ids"` // JSON array
	RRCursor              int64          `gorm:"column:rr_cursor;default:0"`
	CreatedAt             time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt             time.Time      `gorm:"column:updated_at;not null"`
}

func (queueModel) TableName() string { return "queues" }

type integrationModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	TenantID  string    `gorm:"column:tenant_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Kind      string    `gorm:"column:kind;default:'webhook'"`
	URL       string    `gorm:"column:url;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (integrationModel) TableName() string { return "integrations" }

// Migrate crea o actualiza el esquema de ticketing.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(
		&contactModel{},
		&ticketModel{},
		&messageModel{},
		&channelModel{},
		&queueModel{},
		&integrationModel{},
	)
}

// --- Mappers ---

func toContactModel(c domain.Contact) contactModel {
	return contactModel{
		ID:        c.ID,
		TenantID:  c.TenantID,
		Number:    c.Number,
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func fromContactModel(m contactModel) domain.Contact {
	return domain.Contact{
		ID:        m.ID,
		TenantID:  m.TenantID,
		Number:    m.Number,
		Name:      m.Name,
		IsGroup:   m.IsGroup,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toTicketModel(t domain.Ticket) ticketModel {
	return ticketModel{
		ID:             t.ID,
		TenantID:       t.TenantID,
		ContactID:      t.ContactID,
		ChannelID:      t.ChannelID,
		Status:         string(t.Status),
		UserID:         toNullString(t.UserID),
		QueueID:        toNullString(t.QueueID),
		LastMessage:    t.LastMessage,
		UnreadMessages: t.UnreadMessages,
		IsBot:          t.IsBot,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func fromTicketModel(m ticketModel) domain.Ticket {
	return domain.Ticket{
		ID:             m.ID,
		TenantID:       m.TenantID,
		ContactID:      m.ContactID,
		ChannelID:      m.ChannelID,
		Status:         domain.TicketStatus(m.Status),
		UserID:         nullStringValue(m.UserID),
		QueueID:        nullStringValue(m.QueueID),
		LastMessage:    m.LastMessage,
		UnreadMessages: m.UnreadMessages,
		IsBot:          m.IsBot,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toMessageModel(msg domain.Message) messageModel {
	return messageModel{
		ID:         msg.ID,
		TenantID:   msg.TenantID,
		ExternalID: msg.ExternalID,
		TicketID:   msg.TicketID,
		ContactID:  msg.ContactID,
		Body:       msg.Body,
		FromMe:     msg.FromMe,
		Read:       msg.Read,
		Ack:        int(msg.Ack),
		MediaType:  toNullString(msg.MediaType),
		MediaRef:   toNullString(msg.MediaRef),
		QuotedID:   toNullString(msg.QuotedID),
		Timestamp:  msg.Timestamp,
		CreatedAt:  msg.CreatedAt,
		UpdatedAt:  msg.UpdatedAt,
	}
}

func fromMessageModel(m messageModel) domain.Message {
	return domain.Message{
		ID:         m.ID,
		TenantID:   m.TenantID,
		ExternalID: m.ExternalID,
		TicketID:   m.TicketID,
		ContactID:  m.ContactID,
		Body:       m.Body,
		FromMe:     m.FromMe,
		Read:       m.Read,
		Ack:        domain.AckLevel(m.Ack),
		MediaType:  nullStringValue(m.MediaType),
		MediaRef:   nullStringValue(m.MediaRef),
		QuotedID:   nullStringValue(m.QuotedID),
		Timestamp:  m.Timestamp,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func fromChannelModel(m channelModel) domain.ChannelInstance {
	return domain.ChannelInstance{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Name:           m.Name,
		Kind:           domain.ChannelKind(m.Kind),
		WabaID:         nullStringValue(m.WabaID),
		PhoneNumberID:  nullStringValue(m.PhoneNumberID),
		AccessToken:    nullStringValue(m.AccessToken),
		IntegrationID:  nullStringValue(m.IntegrationID),
		DefaultQueueID: nullStringValue(m.DefaultQueueID),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toChannelModel(ch domain.ChannelInstance) channelModel {
	return channelModel{
		ID:             ch.ID,
		TenantID:       ch.TenantID,
		Name:           ch.Name,
		Kind:           string(ch.Kind),
		WabaID:         toNullString(ch.WabaID),
		PhoneNumberID:  toNullString(ch.PhoneNumberID),
		AccessToken:    toNullString(ch.AccessToken),
		IntegrationID:  toNullString(ch.IntegrationID),
		DefaultQueueID: toNullString(ch.DefaultQueueID),
		CreatedAt:      ch.CreatedAt,
		UpdatedAt:      ch.UpdatedAt,
	}
}

func fromQueueModel(m queueModel) domain.Queue {
	var userIDs []string
	if raw := nullStringValue(m.AutoAssignUserIDs); raw != "" && raw != "null" {
		_ = json.Unmarshal([]byte(raw), &userIDs)
	}
	return domain.Queue{
		ID:                    m.ID,
		TenantID:              m.TenantID,
		Name:                  m.Name,
		IntegrationID:         nullStringValue(m.IntegrationID),
		AutoAssignmentEnabled: m.AutoAssignmentEnabled,
		AssignOfflineUsers:    m.AssignOfflineUsers,
		AutoAssignUserIDs:     userIDs,
		RRCursor:              m.RRCursor,
	}
}

func fromIntegrationModel(m integrationModel) domain.Integration {
	return domain.Integration{
		ID:       m.ID,
		TenantID: m.TenantID,
		Name:     m.Name,
		Kind:     m.Kind,
		URL:      m.URL,
	}
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
