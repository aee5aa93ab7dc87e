package application

import (
	"context"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// StatusReconciler aplica transiciones de estado de entrega a mensajes ya
// almacenados. Los acks solo avanzan; failed es terminal.
type StatusReconciler struct {
	messages domain.MessageRepository
}

func NewStatusReconciler(messages domain.MessageRepository) *StatusReconciler {
	return &StatusReconciler{messages: messages}
}

// Apply busca el mensaje por external id y aplica el nuevo ack. Un status
// para un mensaje desconocido es un no-op silencioso: los proveedores
// entregan acks de mensajes anteriores al despliegue o ya purgados.
func (r *StatusReconciler) Apply(ctx context.Context, st domain.StatusUpdate) (domain.Message, bool, error) {
	msg, err := r.messages.FindByExternalID(ctx, st.TenantID, st.ExternalID)
	if err != nil {
		if err == domain.ErrMessageNotFound {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, domain.Transient("finding message for ack", err)
	}

	if !msg.ApplyAck(st.NewAck) {
		// Transición hacia atrás o mensaje ya fallido: se descarta.
		return msg, false, nil
	}

	if err := r.messages.UpdateAck(ctx, st.TenantID, st.ExternalID, msg.Ack); err != nil {
		return domain.Message{}, false, domain.Transient("persisting ack", err)
	}
	return msg, true, nil
}
