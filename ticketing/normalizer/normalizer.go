package normalizer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/pkg/utils"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

// Placeholders de contenido para mensajes sin cuerpo textual. Se conservan
// tal cual los muestra la bandeja de los agentes.
const (
	placeholderImage    = "[Imagen]"
	placeholderVideo    = "[Video]"
	placeholderAudio    = "[Audio]"
	placeholderDocument = "[Documento]"
	placeholderSticker  = "[Sticker]"
	placeholderContact  = "[Contacto compartido]"
	placeholderButton   = "[Botón]"
	placeholderReply    = "[Respuesta]"
	placeholderList     = "[Selección de lista]"
)

// cloudAckLevels mapea los estados del webhook a niveles de ack internos.
var cloudAckLevels = map[string]domain.AckLevel{
	"sent":      domain.AckSent,
	"delivered": domain.AckDelivered,
	"read":      domain.AckRead,
	"failed":    domain.AckFailed,
}

// NormalizeCloudChange traduce un change de la Cloud API al modelo interno.
// Cada mensaje y cada status del change produce exactamente un evento; las
// entradas malformadas producen eventos ignorados, nunca errores.
func NormalizeCloudChange(ch domain.ChannelInstance, value CloudChangeValue) []domain.NormalizedEvent {
	events := make([]domain.NormalizedEvent, 0, len(value.Messages)+len(value.Statuses))

	names := make(map[string]string, len(value.Contacts))
	for _, c := range value.Contacts {
		names[c.WaID] = c.Profile.Name
	}

	for _, msg := range value.Messages {
		events = append(events, normalizeCloudMessage(ch, msg, names))
	}
	for _, st := range value.Statuses {
		events = append(events, normalizeCloudStatus(ch, st))
	}

	return events
}

func normalizeCloudMessage(ch domain.ChannelInstance, msg CloudMessage, names map[string]string) domain.NormalizedEvent {
	if msg.ID == "" || msg.From == "" {
		logrus.Warnf("[NORMALIZER] Cloud message without id/from on channel %s, ignoring", ch.ID)
		return domain.IgnoredEvent("cloud message missing id or sender")
	}
	if len(msg.Errors) > 0 {
		return domain.IgnoredEvent(fmt.Sprintf("cloud message carries provider error %d", msg.Errors[0].Code))
	}

	content := cloudContent(msg)

	quoted := ""
	if msg.Context != nil {
		quoted = msg.Context.ID
	}
	content.QuotedID = quoted

	return domain.InboundEvent(domain.InboundMessage{
		ChannelID:   ch.ID,
		TenantID:    ch.TenantID,
		ExternalID:  msg.ID,
		Number:      utils.NormalizePhone(msg.From),
		DisplayName: names[msg.From],
		FromMe:      false, // la Cloud API solo entrega mensajes entrantes por webhook
		IsGroup:     false,
		Timestamp:   parseCloudTimestamp(msg.Timestamp),
		Content:     content,
		Raw:         toRawMap(msg),
	})
}

func normalizeCloudStatus(ch domain.ChannelInstance, st CloudStatus) domain.NormalizedEvent {
	if st.ID == "" {
		return domain.IgnoredEvent("cloud status missing message id")
	}
	ack, ok := cloudAckLevels[st.Status]
	if !ok {
		return domain.IgnoredEvent(fmt.Sprintf("unknown cloud status %q", st.Status))
	}
	return domain.StatusEvent(domain.StatusUpdate{
		ChannelID:  ch.ID,
		TenantID:   ch.TenantID,
		ExternalID: st.ID,
		Number:     utils.NormalizePhone(st.RecipientID),
		NewAck:     ack,
	})
}

// cloudContent reduce el payload tipado a un cuerpo textual más la referencia
// de media cuando aplica.
func cloudContent(msg CloudMessage) domain.MessageContent {
	switch msg.Type {
	case "text":
		body := ""
		if msg.Text != nil {
			body = msg.Text.Body
		}
		return domain.MessageContent{Body: body, Kind: "text"}
	case "image":
		return mediaContent(msg.Image, "image", placeholderImage)
	case "video":
		return mediaContent(msg.Video, "video", placeholderVideo)
	case "audio":
		return mediaContent(msg.Audio, "audio", placeholderAudio)
	case "document":
		return mediaContent(msg.Document, "document", placeholderDocument)
	case "sticker":
		return mediaContent(msg.Sticker, "sticker", placeholderSticker)
	case "location":
		c := domain.MessageContent{Body: "[Ubicación]", MediaType: "location", Kind: "location"}
		if msg.Location != nil {
			c.Body = fmt.Sprintf("[Ubicación: %v, %v]", msg.Location.Latitude, msg.Location.Longitude)
			// Las coordenadas viajan en MediaRef; no hay binario que descargar.
			c.MediaRef = fmt.Sprintf("%v,%v", msg.Location.Latitude, msg.Location.Longitude)
		}
		return c
	case "contacts":
		return domain.MessageContent{Body: placeholderContact, Kind: "contacts"}
	case "button":
		body := placeholderButton
		if msg.Button != nil && msg.Button.Text != "" {
			body = msg.Button.Text
		}
		return domain.MessageContent{Body: body, Kind: "button"}
	case "interactive":
		return interactiveContent(msg.Interactive)
	default:
		return domain.MessageContent{
			Body:      fmt.Sprintf("[Mensaje tipo: %s]", msg.Type),
			MediaType: msg.Type,
			Kind:      msg.Type,
		}
	}
}

func mediaContent(m *CloudMedia, kind, placeholder string) domain.MessageContent {
	c := domain.MessageContent{Body: placeholder, MediaType: kind, Kind: kind}
	if m == nil {
		return c
	}
	c.MediaRef = m.ID
	if m.Caption != "" {
		c.Body = m.Caption
	}
	return c
}

func interactiveContent(in *CloudInteractive) domain.MessageContent {
	c := domain.MessageContent{Kind: "interactive"}
	if in == nil {
		c.Body = placeholderReply
		return c
	}
	switch in.Type {
	case "button_reply":
		c.Body = placeholderReply
		if in.ButtonReply != nil && in.ButtonReply.Title != "" {
			c.Body = in.ButtonReply.Title
		}
	case "list_reply":
		c.Body = placeholderList
		if in.ListReply != nil && in.ListReply.Title != "" {
			c.Body = in.ListReply.Title
		}
	default:
		c.Body = placeholderReply
	}
	return c
}

func parseCloudTimestamp(ts string) time.Time {
	var unix int64
	if _, err := fmt.Sscanf(ts, "%d", &unix); err != nil || unix <= 0 {
		return time.Now()
	}
	return time.Unix(unix, 0)
}

// toRawMap conserva los campos originales del proveedor para el payload de
// integraciones salientes.
func toRawMap(msg CloudMessage) map[string]any {
	data, err := json.Marshal(msg)
	if err != nil {
		return map[string]any{"id": msg.ID, "type": msg.Type}
	}
	raw := make(map[string]any)
	if err := json.Unmarshal(data, &raw); err != nil {
		return map[string]any{"id": msg.ID, "type": msg.Type}
	}
	return raw
}
