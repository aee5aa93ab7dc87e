package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pkgError "github.com/AzielCF/az-desk/pkg/error"
	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/domain"
	"github.com/AzielCF/az-desk/ticketing/repository"
)

// fakeSender simula el transporte: registra el último envío y devuelve un
// id externo fijo.
type fakeSender struct {
	lastTo   string
	lastBody string
	err      error
}

func (f *fakeSender) SendText(_ context.Context, _ domain.ChannelInstance, to, body, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastTo = to
	f.lastBody = body
	return "wamid.fake1", nil
}

type usecaseEnv struct {
	svc      ITicketUsecase
	db       *gorm.DB
	tickets  *repository.TicketGormRepository
	messages *repository.MessageGormRepository
	contacts *repository.ContactGormRepository
	sender   *fakeSender
}

func newUsecaseEnv(t *testing.T) *usecaseEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(context.Background(), db))

	now := time.Now()
	require.NoError(t, db.Exec(
		`INSERT INTO channels (id, tenant_id, name, kind, created_at, updated_at)
		 VALUES ('ch1', 't1', 'Soporte', 'cloud', ?, ?)`, now, now,
	).Error)

	tickets := repository.NewTicketGormRepository(db)
	contacts := repository.NewContactGormRepository(db)
	messages := repository.NewMessageGormRepository(db)
	channels := repository.NewChannelGormRepository(db)

	sender := &fakeSender{}
	svc := NewTicketUsecase(tickets, contacts, messages, channels, nil, sender, application.NewFanout())

	return &usecaseEnv{svc: svc, db: db, tickets: tickets, messages: messages, contacts: contacts, sender: sender}
}

func (e *usecaseEnv) seedTicket(t *testing.T, status domain.TicketStatus) domain.Ticket {
	t.Helper()
	ctx := context.Background()

	contact, err := e.contacts.FindOrCreate(ctx, "t1", "5215550001111", "Cliente", false)
	require.NoError(t, err)

	ticket := domain.Ticket{
		TenantID:  "t1",
		ContactID: contact.ID,
		ChannelID: "ch1",
		Status:    status,
	}
	require.NoError(t, e.tickets.Create(ctx, &ticket))
	return ticket
}

func TestUpdateStatus_OpenAssignsAgentAndClearsUnread(t *testing.T) {
	env := newUsecaseEnv(t)
	ticket := env.seedTicket(t, domain.TicketStatusPending)

	// Simular mensajes sin leer acumulados
	require.NoError(t, env.db.Exec(
		`UPDATE tickets SET unread_messages = 7, is_bot = 1 WHERE id = ?`, ticket.ID,
	).Error)

	updated, err := env.svc.UpdateStatus(context.Background(), UpdateStatusRequest{
		TenantID: "t1",
		TicketID: ticket.ID,
		Status:   string(domain.TicketStatusOpen),
		UserID:   "agente1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
	assert.Equal(t, "agente1", updated.UserID)
	assert.Equal(t, 0, updated.UnreadMessages)
	assert.False(t, updated.IsBot)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	env := newUsecaseEnv(t)
	ticket := env.seedTicket(t, domain.TicketStatusPending)

	_, err := env.svc.UpdateStatus(context.Background(), UpdateStatusRequest{
		TenantID: "t1",
		TicketID: ticket.ID,
		Status:   "archivado",
	})
	require.Error(t, err)

	var generic pkgError.GenericError
	require.True(t, errors.As(err, &generic))
	assert.Equal(t, "VALIDATION_ERROR", generic.ErrCode())
}

func TestUpdateStatus_UnknownTicket(t *testing.T) {
	env := newUsecaseEnv(t)

	_, err := env.svc.UpdateStatus(context.Background(), UpdateStatusRequest{
		TenantID: "t1",
		TicketID: "no-existe",
		Status:   string(domain.TicketStatusClosed),
	})
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestSendText_StoresOutboundMirror(t *testing.T) {
	env := newUsecaseEnv(t)
	ticket := env.seedTicket(t, domain.TicketStatusOpen)

	msg, err := env.svc.SendText(context.Background(), SendTextRequest{
		TenantID: "t1",
		TicketID: ticket.ID,
		UserID:   "agente1",
		Body:     "Claro, con gusto le ayudo",
	})
	require.NoError(t, err)

	assert.Equal(t, "5215550001111", env.sender.lastTo)
	assert.Equal(t, "wamid.fake1", msg.ExternalID)
	assert.True(t, msg.FromMe)
	assert.Equal(t, domain.AckSent, msg.Ack)

	stored, err := env.messages.FindByExternalID(context.Background(), "t1", "wamid.fake1")
	require.NoError(t, err)
	assert.Equal(t, "Claro, con gusto le ayudo", stored.Body)

	// El envío saliente no suma no leídos
	reread, err := env.tickets.GetByID(context.Background(), "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, reread.UnreadMessages)
	assert.Equal(t, "Claro, con gusto le ayudo", reread.LastMessage)
}

func TestSendText_ProviderFailureDoesNotPersist(t *testing.T) {
	env := newUsecaseEnv(t)
	ticket := env.seedTicket(t, domain.TicketStatusOpen)
	env.sender.err = errors.New("graph api 500")

	_, err := env.svc.SendText(context.Background(), SendTextRequest{
		TenantID: "t1",
		TicketID: ticket.ID,
		Body:     "hola",
	})
	require.Error(t, err)

	count, err := env.messages.CountByTicket(context.Background(), "t1", ticket.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSendText_RejectsEmptyBody(t *testing.T) {
	env := newUsecaseEnv(t)
	ticket := env.seedTicket(t, domain.TicketStatusOpen)

	_, err := env.svc.SendText(context.Background(), SendTextRequest{
		TenantID: "t1",
		TicketID: ticket.ID,
		Body:     "",
	})
	require.Error(t, err)

	var generic pkgError.GenericError
	assert.True(t, errors.As(err, &generic))
}
