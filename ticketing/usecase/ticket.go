package usecase

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"

	pkgError "github.com/AzielCF/az-desk/pkg/error"
	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

// ChannelSender envía texto por el transporte del canal y retorna el id
// externo asignado por el proveedor.
type ChannelSender interface {
	SendText(ctx context.Context, ch domain.ChannelInstance, to, body, quotedID string) (string, error)
}

// TicketDetail agrupa lo que la bandeja necesita para abrir una conversación.
type TicketDetail struct {
	Ticket   domain.Ticket    `json:"ticket"`
	Contact  domain.Contact   `json:"contact"`
	Messages []domain.Message `json:"messages"`
}

type SendTextRequest struct {
	TenantID string `json:"tenant_id"`
	TicketID string `json:"ticket_id"`
	UserID   string `json:"user_id"`
	Body     string `json:"body"`
	QuotedID string `json:"quoted_id"`
}

func (r SendTextRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TenantID, validation.Required),
		validation.Field(&r.TicketID, validation.Required),
		validation.Field(&r.Body, validation.Required, validation.Length(1, 65536)),
	)
}

type UpdateStatusRequest struct {
	TenantID string `json:"tenant_id"`
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
	UserID   string `json:"user_id"`
}

func (r UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TenantID, validation.Required),
		validation.Field(&r.TicketID, validation.Required),
		validation.Field(&r.Status, validation.Required, validation.In(
			string(domain.TicketStatusPending),
			string(domain.TicketStatusOpen),
			string(domain.TicketStatusClosed),
		)),
	)
}

type ITicketUsecase interface {
	ListTickets(ctx context.Context, tenantID string, status domain.TicketStatus, limit, offset int) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, tenantID, ticketID string) (TicketDetail, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (domain.Ticket, error)
	SendText(ctx context.Context, req SendTextRequest) (domain.Message, error)
}

type ticketUsecase struct {
	tickets  domain.TicketRepository
	contacts domain.ContactRepository
	messages domain.MessageRepository
	channels domain.ChannelRepository
	direct   ChannelSender
	cloud    ChannelSender
	fanout   *application.Fanout
}

func NewTicketUsecase(
	tickets domain.TicketRepository,
	contacts domain.ContactRepository,
	messages domain.MessageRepository,
	channels domain.ChannelRepository,
	direct ChannelSender,
	cloud ChannelSender,
	fanout *application.Fanout,
) ITicketUsecase {
	return &ticketUsecase{
		tickets:  tickets,
		contacts: contacts,
		messages: messages,
		channels: channels,
		direct:   direct,
		cloud:    cloud,
		fanout:   fanout,
	}
}

func (u *ticketUsecase) ListTickets(ctx context.Context, tenantID string, status domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	return u.tickets.ListByStatus(ctx, tenantID, status, limit, offset)
}

func (u *ticketUsecase) GetTicket(ctx context.Context, tenantID, ticketID string) (TicketDetail, error) {
	ticket, err := u.tickets.GetByID(ctx, tenantID, ticketID)
	if err != nil {
		return TicketDetail{}, err
	}
	contact, err := u.contacts.GetByID(ctx, tenantID, ticket.ContactID)
	if err != nil {
		return TicketDetail{}, err
	}
	messages, err := u.messages.ListByTicket(ctx, tenantID, ticketID)
	if err != nil {
		return TicketDetail{}, err
	}
	return TicketDetail{Ticket: ticket, Contact: contact, Messages: messages}, nil
}

// UpdateStatus mueve el ticket entre pending/open/closed. Tomar un ticket
// (open) asigna al agente y limpia el contador de no leídos.
func (u *ticketUsecase) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (domain.Ticket, error) {
	if err := req.Validate(); err != nil {
		return domain.Ticket{}, pkgError.ValidationError(err.Error())
	}

	ticket, err := u.tickets.GetByID(ctx, req.TenantID, req.TicketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	ticket.Status = domain.TicketStatus(req.Status)
	if ticket.Status == domain.TicketStatusOpen {
		if req.UserID != "" {
			ticket.UserID = req.UserID
		}
		ticket.UnreadMessages = 0
		ticket.IsBot = false
	}

	if err := u.tickets.Update(ctx, &ticket); err != nil {
		return domain.Ticket{}, err
	}

	u.fanout.Emit(ctx, application.Event{
		TenantID: ticket.TenantID,
		Kind:     "ticket",
		Action:   "update",
		Payload:  ticket,
	})
	return ticket, nil
}

// SendText envía la respuesta del agente por el transporte del canal del
// ticket y persiste el espejo saliente con ack sent.
func (u *ticketUsecase) SendText(ctx context.Context, req SendTextRequest) (domain.Message, error) {
	if err := req.Validate(); err != nil {
		return domain.Message{}, pkgError.ValidationError(err.Error())
	}

	ticket, err := u.tickets.GetByID(ctx, req.TenantID, req.TicketID)
	if err != nil {
		return domain.Message{}, err
	}
	contact, err := u.contacts.GetByID(ctx, req.TenantID, ticket.ContactID)
	if err != nil {
		return domain.Message{}, err
	}
	ch, err := u.channels.GetByID(ctx, ticket.ChannelID)
	if err != nil {
		return domain.Message{}, err
	}

	sender, err := u.senderFor(ch)
	if err != nil {
		return domain.Message{}, err
	}

	externalID, err := sender.SendText(ctx, ch, contact.Number, req.Body, req.QuotedID)
	if err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		TenantID:   req.TenantID,
		ExternalID: externalID,
		TicketID:   ticket.ID,
		ContactID:  contact.ID,
		Body:       req.Body,
		FromMe:     true,
		Read:       true,
		Ack:        domain.AckSent,
		QuotedID:   req.QuotedID,
	}
	_, stored, err := u.messages.StoreOutbound(ctx, &msg)
	if err != nil {
		// El proveedor ya aceptó el mensaje; se reporta pero no se revierte.
		logrus.WithError(err).Errorf("[TICKET] Sent message %s could not be stored", externalID)
		return msg, nil
	}
	msg = stored

	ticket.LastMessage = msg.Body
	u.fanout.Emit(ctx, application.Event{TenantID: ticket.TenantID, Kind: "message", Action: "create", Payload: msg})
	u.fanout.Emit(ctx, application.Event{TenantID: ticket.TenantID, Kind: "ticket", Action: "update", Payload: ticket})
	return msg, nil
}

func (u *ticketUsecase) senderFor(ch domain.ChannelInstance) (ChannelSender, error) {
	switch ch.Kind {
	case domain.ChannelKindDirect:
		if u.direct == nil {
			return nil, domain.Fatal("direct sender not configured", nil)
		}
		return u.direct, nil
	case domain.ChannelKindCloud:
		if u.cloud == nil {
			return nil, domain.Fatal("cloud sender not configured", nil)
		}
		return u.cloud, nil
	default:
		return nil, domain.Fatal("unknown channel kind", nil)
	}
}
