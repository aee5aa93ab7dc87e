package whatsapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

var directChannel = domain.ChannelInstance{
	ID:       "ch-direct",
	TenantID: "t1",
	Kind:     domain.ChannelKindDirect,
}

func directEvent(msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat:   types.NewJID("5215550001111", types.DefaultUserServer),
				Sender: types.NewJID("5215550001111", types.DefaultUserServer),
			},
			ID:        "3EB0TESTSTANZA01",
			PushName:  "Cliente Prueba",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: msg,
	}
}

func TestNormalizeMessageEvent_Texto(t *testing.T) {
	ev, dl := NormalizeMessageEvent(directChannel, directEvent(&waE2E.Message{
		Conversation: proto.String("hola, necesito ayuda"),
	}))

	require.Equal(t, domain.EventKindInbound, ev.Kind)
	require.Nil(t, dl)
	require.Equal(t, "hola, necesito ayuda", ev.Inbound.Content.Body)
	require.Equal(t, "text", ev.Inbound.Content.Kind)
	require.Equal(t, "3EB0TESTSTANZA01", ev.Inbound.ExternalID)
	require.Equal(t, "5215550001111", ev.Inbound.Number)
}

func TestNormalizeMessageEvent_ImagenEsDescargable(t *testing.T) {
	ev, dl := NormalizeMessageEvent(directChannel, directEvent(&waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{Caption: proto.String("mira esto")},
	}))

	require.Equal(t, domain.EventKindInbound, ev.Kind)
	require.NotNil(t, dl)
	require.Equal(t, "mira esto", ev.Inbound.Content.Body)
	require.Equal(t, "image", ev.Inbound.Content.MediaType)
	// La referencia de media de un mensaje directo es el stanza id.
	require.Equal(t, "3EB0TESTSTANZA01", ev.Inbound.Content.MediaRef)
	require.True(t, ev.Inbound.Content.HasDownloadableMedia())
}

func TestNormalizeMessageEvent_UbicacionNoEsDescargable(t *testing.T) {
	ev, dl := NormalizeMessageEvent(directChannel, directEvent(&waE2E.Message{
		LocationMessage: &waE2E.LocationMessage{
			DegreesLatitude:  proto.Float64(19.4326),
			DegreesLongitude: proto.Float64(-99.1332),
		},
	}))

	require.Equal(t, domain.EventKindInbound, ev.Kind)
	require.Nil(t, dl)
	require.Equal(t, "[Ubicación: 19.4326, -99.1332]", ev.Inbound.Content.Body)
	require.Equal(t, "location", ev.Inbound.Content.MediaType)
	// Las coordenadas viajan en MediaRef pero no disparan descarga.
	require.Equal(t, "19.4326,-99.1332", ev.Inbound.Content.MediaRef)
	require.False(t, ev.Inbound.Content.HasDownloadableMedia())
}

func TestNormalizeMessageEvent_TipoNoSoportadoEntraConPlaceholder(t *testing.T) {
	// Un tipo que el traductor no maneja explícitamente igual entra al hilo,
	// con el mismo placeholder que usaría el canal cloud.
	ev, dl := NormalizeMessageEvent(directChannel, directEvent(&waE2E.Message{
		PollCreationMessage: &waE2E.PollCreationMessage{Name: proto.String("encuesta")},
	}))

	require.Equal(t, domain.EventKindInbound, ev.Kind)
	require.Nil(t, dl)
	require.Equal(t, "[Mensaje tipo: pollCreation]", ev.Inbound.Content.Body)
	require.Equal(t, "pollCreation", ev.Inbound.Content.Kind)
	require.Equal(t, "pollCreation", ev.Inbound.Content.MediaType)
	require.False(t, ev.Inbound.Content.HasDownloadableMedia())
}

func TestNormalizeMessageEvent_ProtocoloSigueIgnorado(t *testing.T) {
	ev, _ := NormalizeMessageEvent(directChannel, directEvent(&waE2E.Message{
		ProtocolMessage: &waE2E.ProtocolMessage{},
	}))

	require.Equal(t, domain.EventKindIgnored, ev.Kind)
}

func TestNormalizeReceiptEvent_MapeaAcks(t *testing.T) {
	evt := &events.Receipt{
		MessageSource: types.MessageSource{
			Chat: types.NewJID("5215550001111", types.DefaultUserServer),
		},
		MessageIDs: []string{"id1", "id2"},
		Type:       types.ReceiptTypeRead,
	}

	out := NormalizeReceiptEvent(directChannel, evt)
	require.Len(t, out, 2)
	for _, ev := range out {
		require.Equal(t, domain.EventKindStatus, ev.Kind)
		require.Equal(t, domain.AckRead, ev.Status.NewAck)
		require.Equal(t, "5215550001111", ev.Status.Number)
	}
}
