package domain

import "time"

// EventKind is the discriminator of the normalized event sum type.
type EventKind string

const (
	EventKindInbound EventKind = "inbound"
	EventKindStatus  EventKind = "status"
	EventKindIgnored EventKind = "ignored"
)

// MessageContent is the channel-agnostic rendering of a message payload.
type MessageContent struct {
	Body      string
	MediaType string // image, video, audio, document, sticker, location, ...
	MediaRef  string // provider media id or URL; coordinates for locations
	QuotedID  string
	Kind      string // source kind tag, kept for the integration payload
}

// HasDownloadableMedia reports whether MediaRef points at a binary the
// channel can fetch. Locations and unrecognized kinds carry MediaType (and
// sometimes MediaRef) as descriptive metadata only.
func (c MessageContent) HasDownloadableMedia() bool {
	if c.MediaRef == "" {
		return false
	}
	switch c.MediaType {
	case "image", "video", "audio", "document", "sticker":
		return true
	}
	return false
}

// InboundMessage is a user (or own-device) message normalized from either
// transport, ready for the resolution pipeline.
type InboundMessage struct {
	ChannelID   string
	TenantID    string
	ExternalID  string
	Number      string // normalized counterpart number
	DisplayName string
	FromMe      bool
	IsGroup     bool
	Timestamp   time.Time
	Content     MessageContent
	Raw         map[string]any // original provider fields, forwarded to integrations
}

// StatusUpdate is a delivery-status transition for a previously sent message.
type StatusUpdate struct {
	ChannelID  string
	TenantID   string
	ExternalID string
	Number     string // recipient, used as gate key when present
	NewAck     AckLevel
}

// NormalizedEvent is exactly one of: inbound message, status update, ignored.
type NormalizedEvent struct {
	Kind    EventKind
	Inbound *InboundMessage
	Status  *StatusUpdate
	// Reason explains why an event was classified as ignored.
	Reason string
}

func IgnoredEvent(reason string) NormalizedEvent {
	return NormalizedEvent{Kind: EventKindIgnored, Reason: reason}
}

func InboundEvent(msg InboundMessage) NormalizedEvent {
	return NormalizedEvent{Kind: EventKindInbound, Inbound: &msg}
}

func StatusEvent(st StatusUpdate) NormalizedEvent {
	return NormalizedEvent{Kind: EventKindStatus, Status: &st}
}
