package application

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/pkg/dispatchgate"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

// MediaFetcher descarga el binario de un mensaje multimedia y retorna la
// referencia local almacenada. Implementado por canal (Cloud descarga vía
// Graph, Direct vía el socket).
type MediaFetcher interface {
	Fetch(ctx context.Context, ch domain.ChannelInstance, content domain.MessageContent) (string, error)
}

// mediaFailureSuffix se anexa al cuerpo cuando la descarga falla; el mensaje
// se persiste igual para no perder la conversación.
const mediaFailureSuffix = " (Error al descargar multimedia)"

// Pipeline orquesta la resolución de eventos normalizados: contacto, ticket,
// persistencia y fanout. Todo evento entra por el gate, que serializa por
// conversación.
type Pipeline struct {
	gate       *dispatchgate.Gate
	contacts   *ContactResolver
	tickets    *TicketResolver
	messages   domain.MessageRepository
	reconciler *StatusReconciler
	fanout     *Fanout
	notifier   *IntegrationNotifier
	media      MediaFetcher // opcional
}

func NewPipeline(
	gate *dispatchgate.Gate,
	contacts *ContactResolver,
	tickets *TicketResolver,
	messages domain.MessageRepository,
	reconciler *StatusReconciler,
	fanout *Fanout,
	notifier *IntegrationNotifier,
	media MediaFetcher,
) *Pipeline {
	return &Pipeline{
		gate:       gate,
		contacts:   contacts,
		tickets:    tickets,
		messages:   messages,
		reconciler: reconciler,
		fanout:     fanout,
		notifier:   notifier,
		media:      media,
	}
}

// Submit encola el evento en el gate y retorna si fue aceptado. Los eventos
// ignorados se descartan aquí mismo sin ocupar un worker.
func (p *Pipeline) Submit(ch domain.ChannelInstance, ev domain.NormalizedEvent) bool {
	switch ev.Kind {
	case domain.EventKindIgnored:
		logrus.Debugf("[PIPELINE] Ignored event on channel %s: %s", ch.ID, ev.Reason)
		return true
	case domain.EventKindInbound:
		return p.gate.TryDispatch(dispatchgate.Job{
			TenantID:  ch.TenantID,
			ChannelID: ch.ID,
			Number:    ev.Inbound.Number,
			Handler: func(ctx context.Context) error {
				return p.runStep(ctx, "inbound", func(ctx context.Context) error {
					return p.handleInbound(ctx, ch, *ev.Inbound)
				})
			},
		})
	case domain.EventKindStatus:
		// Sin número de destinatario, el external id mantiene el orden
		// relativo de los acks del mismo mensaje.
		key := ev.Status.Number
		if key == "" {
			key = ev.Status.ExternalID
		}
		return p.gate.TryDispatch(dispatchgate.Job{
			TenantID:  ch.TenantID,
			ChannelID: ch.ID,
			Number:    key,
			Handler: func(ctx context.Context) error {
				return p.runStep(ctx, "status", func(ctx context.Context) error {
					return p.handleStatus(ctx, ch, *ev.Status)
				})
			},
		})
	default:
		logrus.Warnf("[PIPELINE] Unknown event kind %q on channel %s", ev.Kind, ch.ID)
		return true
	}
}

// runStep aplica la taxonomía de severidad: lo ignorable se descarta con log,
// lo transitorio y lo fatal se reporta al gate como error.
func (p *Pipeline) runStep(ctx context.Context, step string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if err == nil {
		return nil
	}
	switch domain.ClassOf(err) {
	case domain.SeverityIgnorable:
		logrus.Debugf("[PIPELINE] Dropped %s event: %v", step, err)
		return nil
	case domain.SeverityFatal:
		logrus.WithError(err).Errorf("[PIPELINE] Fatal failure processing %s event", step)
		return err
	default:
		logrus.WithError(err).Warnf("[PIPELINE] Transient failure processing %s event", step)
		return err
	}
}

func (p *Pipeline) handleInbound(ctx context.Context, ch domain.ChannelInstance, in domain.InboundMessage) error {
	contact, err := p.contacts.Resolve(ctx, &in)
	if err != nil {
		return err
	}

	ticket, ticketCreated, err := p.tickets.Resolve(ctx, ch, contact)
	if err != nil {
		return err
	}

	body := in.Content.Body
	mediaRef := in.Content.MediaRef
	if in.Content.HasDownloadableMedia() && p.media != nil {
		stored, err := p.media.Fetch(ctx, ch, in.Content)
		if err != nil {
			logrus.WithError(err).Warnf("[PIPELINE] Media download failed for %s", in.ExternalID)
			body += mediaFailureSuffix
		} else {
			mediaRef = stored
		}
	}

	// Un mensaje enviado desde otro dispositivo propio ya salió al proveedor;
	// entra como sent, no como queued.
	ack := domain.AckQueued
	if in.FromMe {
		ack = domain.AckSent
	}

	msg := domain.Message{
		TenantID:   in.TenantID,
		ExternalID: in.ExternalID,
		TicketID:   ticket.ID,
		ContactID:  contact.ID,
		Body:       body,
		FromMe:     in.FromMe,
		Read:       in.FromMe,
		Ack:        ack,
		MediaType:  in.Content.MediaType,
		MediaRef:   mediaRef,
		QuotedID:   in.Content.QuotedID,
		Timestamp:  in.Timestamp,
	}

	created, stored, err := p.messages.StoreInbound(ctx, &msg)
	if err != nil {
		return domain.Transient("storing inbound message", err)
	}
	if !created {
		// Reentrega: la primera pasada ya emitió los eventos.
		logrus.Debugf("[PIPELINE] Duplicate message %s, skipping", in.ExternalID)
		return nil
	}

	// Reflejar en el snapshot local lo que la transacción ya escribió.
	ticket.LastMessage = stored.Body
	if !stored.FromMe {
		ticket.UnreadMessages++
	}

	ticketAction := "update"
	if ticketCreated {
		ticketAction = "create"
	}
	p.fanout.Emit(ctx, Event{TenantID: ch.TenantID, Kind: "ticket", Action: ticketAction, Payload: ticket})
	p.fanout.Emit(ctx, Event{TenantID: ch.TenantID, Kind: "message", Action: "create", Payload: stored})

	if !stored.FromMe && p.notifier != nil {
		p.notifier.NotifyInbound(ch, contact, ticket, stored, in.Raw)
	}
	return nil
}

func (p *Pipeline) handleStatus(ctx context.Context, ch domain.ChannelInstance, st domain.StatusUpdate) error {
	msg, changed, err := p.reconciler.Apply(ctx, st)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	p.fanout.Emit(ctx, Event{
		TenantID: ch.TenantID,
		Kind:     "ack",
		Action:   "update",
		Payload: map[string]any{
			"message_id":  msg.ID,
			"external_id": msg.ExternalID,
			"ticket_id":   msg.TicketID,
			"ack":         int(msg.Ack),
		},
	})
	return nil
}
