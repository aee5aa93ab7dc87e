package websocket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AzielCF/az-desk/ticketing/application"
)

func TestTenantChannel_UnCanalPorTenantYClase(t *testing.T) {
	// Cada tenant publica en canales propios, uno por clase de evento, y el
	// suscriptor los cubre a todos con un solo patrón.
	assert.Equal(t, "azdesk:tenant-t1-ticket", tenantChannel("t1", "ticket"))
	assert.Equal(t, "azdesk:tenant-t1-message", tenantChannel("t1", "message"))
	assert.Equal(t, "azdesk:tenant-otro-ack", tenantChannel("otro", "ack"))
	assert.NotEqual(t, tenantChannel("t1", "ticket"), tenantChannel("t2", "ticket"))
}

func TestSink_DeliverNuncaBloquea(t *testing.T) {
	s := NewSink()

	// Llenar la cola por encima de su capacidad: los sobrantes se descartan
	// sin bloquear al que entrega.
	for i := 0; i < cap(Broadcast)+10; i++ {
		err := s.Deliver(context.Background(), application.Event{
			TenantID: "t1",
			Kind:     "message",
			Action:   "create",
		})
		assert.NoError(t, err)
	}

	// Drenar para no ensuciar otros tests del paquete.
	for len(Broadcast) > 0 {
		<-Broadcast
	}
}
