package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1) // una sola conexión para :memory:

	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seedTicket(t *testing.T, db *gorm.DB, tenantID, contactID, channelID string, status domain.TicketStatus) domain.Ticket {
	t.Helper()
	repo := NewTicketGormRepository(db)
	ticket := domain.Ticket{
		TenantID:  tenantID,
		ContactID: contactID,
		ChannelID: channelID,
		Status:    status,
	}
	require.NoError(t, repo.Create(context.Background(), &ticket))
	return ticket
}

// --- Contacts ---

func TestContactFindOrCreate_CreatesOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewContactGormRepository(db)
	ctx := context.Background()

	first, err := repo.FindOrCreate(ctx, "t1", "5215550001111", "María", false)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "María", first.Name)

	// Segunda llamada con otro nombre: misma fila, nombre original intacto
	second, err := repo.FindOrCreate(ctx, "t1", "5215550001111", "Otro Nombre", false)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "María", second.Name)
}

func TestContactFindOrCreate_TenantIsolation(t *testing.T) {
	db := newTestDB(t)
	repo := NewContactGormRepository(db)
	ctx := context.Background()

	a, err := repo.FindOrCreate(ctx, "t1", "5215550001111", "María", false)
	require.NoError(t, err)
	b, err := repo.FindOrCreate(ctx, "t2", "5215550001111", "María", false)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID, "el mismo número en tenants distintos son contactos distintos")
}

// --- Tickets ---

func TestTicketFindActive(t *testing.T) {
	db := newTestDB(t)
	repo := NewTicketGormRepository(db)
	ctx := context.Background()

	_, err := repo.FindActive(ctx, "t1", "c1", "ch1")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)

	ticket := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusPending)

	found, err := repo.FindActive(ctx, "t1", "c1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, found.ID)

	// Un ticket cerrado no cuenta como activo
	found.Status = domain.TicketStatusClosed
	require.NoError(t, repo.Update(ctx, &found))

	_, err = repo.FindActive(ctx, "t1", "c1", "ch1")
	assert.ErrorIs(t, err, domain.ErrTicketNotFound)
}

func TestTicketReopenCreatesNewThread(t *testing.T) {
	db := newTestDB(t)
	repo := NewTicketGormRepository(db)
	ctx := context.Background()

	first := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusOpen)

	closed := first
	closed.Status = domain.TicketStatusClosed
	require.NoError(t, repo.Update(ctx, &closed))

	second := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusPending)
	require.NotEqual(t, first.ID, second.ID)

	// El historial del primero sigue accesible
	old, err := repo.GetByID(ctx, "t1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, old.Status)

	active, err := repo.FindActive(ctx, "t1", "c1", "ch1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)
}

// --- Messages ---

func TestMessageStoreInbound_Idempotent(t *testing.T) {
	db := newTestDB(t)
	msgRepo := NewMessageGormRepository(db)
	ticketRepo := NewTicketGormRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusPending)

	msg := domain.Message{
		TenantID:   "t1",
		ExternalID: "wamid.dup1",
		TicketID:   ticket.ID,
		ContactID:  "c1",
		Body:       "Hola",
		Timestamp:  time.Now(),
	}

	created, stored, err := msgRepo.StoreInbound(ctx, &msg)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, stored.ID)

	// Reentrega del mismo external id: no-op
	dup := domain.Message{
		TenantID:   "t1",
		ExternalID: "wamid.dup1",
		TicketID:   ticket.ID,
		ContactID:  "c1",
		Body:       "Hola",
		Timestamp:  time.Now(),
	}
	created2, stored2, err := msgRepo.StoreInbound(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created2)
	assert.Equal(t, stored.ID, stored2.ID)

	count, err := msgRepo.CountByTicket(ctx, "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// El contador de no leídos se incrementó exactamente una vez
	got, err := ticketRepo.GetByID(ctx, "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UnreadMessages)
	assert.Equal(t, "Hola", got.LastMessage)
}

func TestMessageStoreInbound_FromMeDoesNotCountUnread(t *testing.T) {
	db := newTestDB(t)
	msgRepo := NewMessageGormRepository(db)
	ticketRepo := NewTicketGormRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusOpen)

	msg := domain.Message{
		TenantID:   "t1",
		ExternalID: "wamid.own1",
		TicketID:   ticket.ID,
		ContactID:  "c1",
		Body:       "escrito desde el teléfono",
		FromMe:     true,
	}
	created, _, err := msgRepo.StoreInbound(ctx, &msg)
	require.NoError(t, err)
	require.True(t, created)

	got, err := ticketRepo.GetByID(ctx, "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadMessages)
	assert.Equal(t, "escrito desde el teléfono", got.LastMessage)
}

func TestMessageStoreOutbound_NoUnread(t *testing.T) {
	db := newTestDB(t)
	msgRepo := NewMessageGormRepository(db)
	ticketRepo := NewTicketGormRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusOpen)

	msg := domain.Message{
		TenantID:   "t1",
		ExternalID: "wamid.out1",
		TicketID:   ticket.ID,
		ContactID:  "c1",
		Body:       "respuesta del agente",
		FromMe:     true,
		Ack:        domain.AckSent,
	}
	created, _, err := msgRepo.StoreOutbound(ctx, &msg)
	require.NoError(t, err)
	require.True(t, created)

	got, err := ticketRepo.GetByID(ctx, "t1", ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.UnreadMessages)
	assert.Equal(t, "respuesta del agente", got.LastMessage)
}

func TestMessageUpdateAck(t *testing.T) {
	db := newTestDB(t)
	msgRepo := NewMessageGormRepository(db)
	ctx := context.Background()

	ticket := seedTicket(t, db, "t1", "c1", "ch1", domain.TicketStatusOpen)

	msg := domain.Message{
		TenantID:   "t1",
		ExternalID: "wamid.ack1",
		TicketID:   ticket.ID,
		ContactID:  "c1",
		FromMe:     true,
		Ack:        domain.AckSent,
	}
	_, _, err := msgRepo.StoreOutbound(ctx, &msg)
	require.NoError(t, err)

	require.NoError(t, msgRepo.UpdateAck(ctx, "t1", "wamid.ack1", domain.AckDelivered))

	got, err := msgRepo.FindByExternalID(ctx, "t1", "wamid.ack1")
	require.NoError(t, err)
	assert.Equal(t, domain.AckDelivered, got.Ack)

	// Ack para un mensaje inexistente
	err = msgRepo.UpdateAck(ctx, "t1", "wamid.nope", domain.AckRead)
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

// --- Queues ---

func TestQueueNextAssignmentIndex(t *testing.T) {
	db := newTestDB(t)
	repo := NewQueueGormRepository(db)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, db.Create(&queueModel{
		ID:        "q1",
		TenantID:  "t1",
		Name:      "Soporte",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)

	// El cursor avanza de uno en uno y nunca se repite
	for want := int64(1); want <= 5; want++ {
		got, err := repo.NextAssignmentIndex(ctx, "t1", "q1")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := repo.NextAssignmentIndex(ctx, "t1", "missing")
	assert.ErrorIs(t, err, domain.ErrQueueNotFound)
}

// --- Presence ---

func TestMemoryPresenceStore(t *testing.T) {
	store := NewMemoryPresenceStore()
	ctx := context.Background()

	assert.False(t, store.IsOnline(ctx, "t1", "u1"))

	require.NoError(t, store.SetOnline(ctx, "t1", "u1"))
	assert.True(t, store.IsOnline(ctx, "t1", "u1"))
	assert.False(t, store.IsOnline(ctx, "t2", "u1"), "la presencia es por tenant")

	require.NoError(t, store.SetOffline(ctx, "t1", "u1"))
	assert.False(t, store.IsOnline(ctx, "t1", "u1"))
}
