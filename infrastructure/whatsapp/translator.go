package whatsapp

import (
	"fmt"
	"strings"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/AzielCF/az-desk/pkg/utils"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

// receiptAckLevels mapea los tipos de receipt del socket a niveles internos.
var receiptAckLevels = map[types.ReceiptType]domain.AckLevel{
	types.ReceiptTypeDelivered: domain.AckDelivered,
	types.ReceiptTypeRead:      domain.AckRead,
	types.ReceiptTypeReadSelf:  domain.AckRead,
}

// NormalizeMessageEvent traduce un events.Message del socket al modelo
// interno. Retorna además el adjunto descargable (si lo hay) para que el
// manager lo registre antes de que el pipeline pida la descarga.
func NormalizeMessageEvent(ch domain.ChannelInstance, evt *events.Message) (domain.NormalizedEvent, whatsmeow.DownloadableMessage) {
	if evt.Info.ID == "" {
		return domain.IgnoredEvent("direct message without stanza id"), nil
	}
	if evt.Info.Chat.Server == types.BroadcastServer {
		return domain.IgnoredEvent("status broadcast"), nil
	}
	if evt.Message == nil {
		return domain.IgnoredEvent("empty message payload"), nil
	}
	if evt.Message.GetProtocolMessage() != nil {
		// Revocaciones y ediciones no entran al hilo como mensajes nuevos.
		return domain.IgnoredEvent("protocol message"), nil
	}

	content, downloadable := directContent(evt)
	if content.Body == "" && downloadable == nil {
		return domain.IgnoredEvent("text message with empty body"), nil
	}
	if downloadable != nil {
		// La referencia es el stanza id: el manager resuelve el binario.
		content.MediaRef = evt.Info.ID
	}

	raw := map[string]any{
		"message_id": evt.Info.ID,
		"chat_jid":   evt.Info.Chat.String(),
		"sender_jid": evt.Info.Sender.String(),
		"push_name":  evt.Info.PushName,
		"timestamp":  evt.Info.Timestamp.Unix(),
		"from_me":    evt.Info.IsFromMe,
	}

	return domain.InboundEvent(domain.InboundMessage{
		ChannelID:   ch.ID,
		TenantID:    ch.TenantID,
		ExternalID:  evt.Info.ID,
		Number:      utils.NormalizePhone(evt.Info.Chat.User),
		DisplayName: evt.Info.PushName,
		FromMe:      evt.Info.IsFromMe,
		IsGroup:     evt.Info.IsGroup,
		Timestamp:   evt.Info.Timestamp,
		Content:     content,
		Raw:         raw,
	}), downloadable
}

// NormalizeReceiptEvent traduce un receipt del socket: un evento de status
// por cada message id que confirma.
func NormalizeReceiptEvent(ch domain.ChannelInstance, evt *events.Receipt) []domain.NormalizedEvent {
	ack, ok := receiptAckLevels[evt.Type]
	if !ok {
		return []domain.NormalizedEvent{domain.IgnoredEvent(fmt.Sprintf("unhandled receipt type %q", evt.Type))}
	}

	out := make([]domain.NormalizedEvent, 0, len(evt.MessageIDs))
	for _, id := range evt.MessageIDs {
		out = append(out, domain.StatusEvent(domain.StatusUpdate{
			ChannelID:  ch.ID,
			TenantID:   ch.TenantID,
			ExternalID: id,
			Number:     utils.NormalizePhone(evt.Chat.User),
			NewAck:     ack,
		}))
	}
	return out
}

// directContent reduce el árbol de mensaje de whatsmeow a cuerpo textual,
// con los mismos placeholders que el canal cloud.
func directContent(evt *events.Message) (domain.MessageContent, whatsmeow.DownloadableMessage) {
	msg := evt.Message

	if text := msg.GetConversation(); text != "" {
		return domain.MessageContent{Body: text, Kind: "text"}, nil
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return domain.MessageContent{
			Body:     ext.GetText(),
			Kind:     "text",
			QuotedID: ext.GetContextInfo().GetStanzaID(),
		}, nil
	}
	if img := msg.GetImageMessage(); img != nil {
		body := "[Imagen]"
		if caption := img.GetCaption(); caption != "" {
			body = caption
		}
		return domain.MessageContent{
			Body:      body,
			MediaType: "image",
			Kind:      "image",
			QuotedID:  img.GetContextInfo().GetStanzaID(),
		}, img
	}
	if video := msg.GetVideoMessage(); video != nil {
		body := "[Video]"
		if caption := video.GetCaption(); caption != "" {
			body = caption
		}
		return domain.MessageContent{
			Body:      body,
			MediaType: "video",
			Kind:      "video",
			QuotedID:  video.GetContextInfo().GetStanzaID(),
		}, video
	}
	if audio := msg.GetAudioMessage(); audio != nil {
		return domain.MessageContent{Body: "[Audio]", MediaType: "audio", Kind: "audio"}, audio
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		body := "[Documento]"
		if caption := doc.GetCaption(); caption != "" {
			body = caption
		}
		return domain.MessageContent{
			Body:      body,
			MediaType: "document",
			Kind:      "document",
			QuotedID:  doc.GetContextInfo().GetStanzaID(),
		}, doc
	}
	if sticker := msg.GetStickerMessage(); sticker != nil {
		return domain.MessageContent{Body: "[Sticker]", MediaType: "sticker", Kind: "sticker"}, sticker
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		return domain.MessageContent{
			Body:      fmt.Sprintf("[Ubicación: %v, %v]", loc.GetDegreesLatitude(), loc.GetDegreesLongitude()),
			MediaType: "location",
			// Coordenadas en MediaRef; no hay binario asociado.
			MediaRef: fmt.Sprintf("%v,%v", loc.GetDegreesLatitude(), loc.GetDegreesLongitude()),
			Kind:     "location",
		}, nil
	}
	if contact := msg.GetContactMessage(); contact != nil {
		return domain.MessageContent{Body: "[Contacto compartido]", Kind: "contacts"}, nil
	}
	if btn := msg.GetButtonsResponseMessage(); btn != nil {
		body := "[Respuesta]"
		if txt := btn.GetSelectedDisplayText(); txt != "" {
			body = txt
		}
		return domain.MessageContent{Body: body, Kind: "button"}, nil
	}
	if list := msg.GetListResponseMessage(); list != nil {
		body := "[Selección de lista]"
		if title := list.GetTitle(); title != "" {
			body = title
		}
		return domain.MessageContent{Body: body, Kind: "interactive"}, nil
	}

	// Cualquier otro tipo entra al hilo con un placeholder, igual que en el
	// canal cloud.
	kind := directKindTag(msg)
	return domain.MessageContent{
		Body:      fmt.Sprintf("[Mensaje tipo: %s]", kind),
		MediaType: kind,
		Kind:      kind,
	}, nil
}

// directKindTag deriva una etiqueta del primer campo poblado del mensaje,
// por ejemplo pollCreationMessage -> "pollCreation". Los campos de transporte
// que acompañan a cualquier mensaje no cuentan como contenido.
func directKindTag(msg protoreflect.ProtoMessage) string {
	kind := "unknown"
	msg.ProtoReflect().Range(func(fd protoreflect.FieldDescriptor, _ protoreflect.Value) bool {
		name := fd.JSONName()
		if name == "messageContextInfo" || name == "senderKeyDistributionMessage" {
			return true
		}
		kind = strings.TrimSuffix(name, "Message")
		return false
	})
	return kind
}
