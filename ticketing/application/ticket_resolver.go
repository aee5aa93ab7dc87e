package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

// TicketResolver decide si un mensaje entra a un ticket existente o abre uno
// nuevo. Corre siempre dentro del gate, así que para una conversación dada
// nunca hay dos resoluciones en vuelo.
type TicketResolver struct {
	tickets  domain.TicketRepository
	queues   domain.QueueRepository
	presence domain.PresenceStore
}

func NewTicketResolver(tickets domain.TicketRepository, queues domain.QueueRepository, presence domain.PresenceStore) *TicketResolver {
	return &TicketResolver{tickets: tickets, queues: queues, presence: presence}
}

// Resolve retorna el ticket activo del par (contacto, canal), creando uno
// pending cuando no existe. Un ticket cerrado nunca se reabre: el siguiente
// mensaje del contacto abre un hilo nuevo con el historial anterior intacto.
func (r *TicketResolver) Resolve(ctx context.Context, ch domain.ChannelInstance, contact domain.Contact) (domain.Ticket, bool, error) {
	ticket, err := r.tickets.FindActive(ctx, ch.TenantID, contact.ID, ch.ID)
	if err == nil {
		return ticket, false, nil
	}
	if err != domain.ErrTicketNotFound {
		return domain.Ticket{}, false, domain.Transient("finding active ticket", err)
	}

	ticket = domain.Ticket{
		TenantID:  ch.TenantID,
		ContactID: contact.ID,
		ChannelID: ch.ID,
		Status:    domain.TicketStatusPending,
		QueueID:   ch.DefaultQueueID,
		// Hasta que un agente lo tome, el hilo se considera atendido por bot.
		IsBot: true,
	}

	r.autoAssign(ctx, &ticket)

	if err := r.tickets.Create(ctx, &ticket); err != nil {
		return domain.Ticket{}, false, domain.Transient("creating ticket", err)
	}
	return ticket, true, nil
}

// autoAssign aplica la política round-robin de la cola por defecto. Cualquier
// falla deja el ticket sin asignar en pending; la asignación nunca bloquea la
// entrada del mensaje.
func (r *TicketResolver) autoAssign(ctx context.Context, ticket *domain.Ticket) {
	if ticket.QueueID == "" {
		return
	}

	queue, err := r.queues.GetByID(ctx, ticket.TenantID, ticket.QueueID)
	if err != nil {
		logrus.WithError(err).Warnf("[TICKET] Queue %s not found for auto-assignment", ticket.QueueID)
		return
	}
	if !queue.AutoAssignmentEnabled || len(queue.AutoAssignUserIDs) == 0 {
		return
	}

	idx, err := r.queues.NextAssignmentIndex(ctx, ticket.TenantID, queue.ID)
	if err != nil {
		logrus.WithError(err).Warnf("[TICKET] Round-robin cursor failed for queue %s", queue.ID)
		return
	}

	n := len(queue.AutoAssignUserIDs)
	start := int(idx % int64(n))

	// Recorrer los candidatos desde el cursor, saltando agentes offline salvo
	// que la cola permita asignarlos.
	for i := 0; i < n; i++ {
		candidate := queue.AutoAssignUserIDs[(start+i)%n]
		if !queue.AssignOfflineUsers && !r.presence.IsOnline(ctx, ticket.TenantID, candidate) {
			continue
		}
		ticket.UserID = candidate
		ticket.Status = domain.TicketStatusOpen
		logrus.Infof("[TICKET] Auto-assigned ticket to user %s via queue %s", candidate, queue.ID)
		return
	}

	logrus.Debugf("[TICKET] No eligible agent online in queue %s, leaving ticket pending", queue.ID)
}
