package rest

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/AzielCF/az-desk/pkg/dispatchgate"
	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/repository"
)

const testVerifyToken = "token_de_prueba"

func newWebhookApp(t *testing.T) (*fiber.App, *repository.MessageGormRepository, *repository.TicketGormRepository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.Migrate(context.Background(), db))

	// Canal cloud de prueba asociado a la WABA 111222333
	now := time.Now()
	require.NoError(t, db.Exec(
		`INSERT INTO channels (id, tenant_id, name, kind, waba_id, created_at, updated_at)
		 VALUES ('ch1', 't1', 'Ventas', 'cloud', '111222333', ?, ?)`, now, now,
	).Error)

	contacts := repository.NewContactGormRepository(db)
	tickets := repository.NewTicketGormRepository(db)
	messages := repository.NewMessageGormRepository(db)
	queues := repository.NewQueueGormRepository(db)
	channels := repository.NewChannelGormRepository(db)
	presence := repository.NewMemoryPresenceStore()

	gate := dispatchgate.New(2, 50)
	ctx, cancel := context.WithCancel(context.Background())
	gate.Start(ctx)
	t.Cleanup(func() {
		cancel()
		gate.Stop()
	})

	pipeline := application.NewPipeline(
		gate,
		application.NewContactResolver(contacts),
		application.NewTicketResolver(tickets, queues, presence),
		messages,
		application.NewStatusReconciler(messages),
		application.NewFanout(),
		nil,
		nil,
	)

	app := fiber.New()
	InitRestWebhook(app, testVerifyToken, channels, pipeline)
	return app, messages, tickets
}

func TestWebhookVerify_AcceptsValidToken(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest("GET",
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "12345", string(body), "debe devolver el challenge tal cual")
}

func TestWebhookVerify_RejectsBadToken(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest("GET",
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token=incorrecto&hub.challenge=12345", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestWebhookVerify_RejectsWrongMode(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest("GET",
		"/webhooks/whatsapp/?hub.mode=unsubscribe&hub.verify_token="+testVerifyToken, nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestWebhookReceive_StoresInboundMessage(t *testing.T) {
	app, messages, tickets := newWebhookApp(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "111222333",
			"changes": [{
				"field": "messages",
				"value": {
					"messaging_product": "whatsapp",
					"contacts": [{"wa_id": "5215550001111", "profile": {"name": "María"}}],
					"messages": [{
						"id": "wamid.http1",
						"from": "5215550001111",
						"timestamp": "1714000000",
						"type": "text",
						"text": {"body": "Hola desde el webhook"}
					}]
				}
			}]
		}]
	}`

	req := httptest.NewRequest("POST", "/webhooks/whatsapp/", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	ctx := context.Background()
	require.Eventually(t, func() bool {
		_, err := messages.FindByExternalID(ctx, "t1", "wamid.http1")
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)

	msg, err := messages.FindByExternalID(ctx, "t1", "wamid.http1")
	require.NoError(t, err)
	assert.Equal(t, "Hola desde el webhook", msg.Body)

	all, err := tickets.ListByStatus(ctx, "t1", "", 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Hola desde el webhook", all[0].LastMessage)
}

func TestWebhookReceive_UnknownWabaStillAcks(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	payload := `{"object":"whatsapp_business_account","entry":[{"id":"999","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.x","from":"5215550001111","type":"text","text":{"body":"hola"}}]}}]}]}`

	req := httptest.NewRequest("POST", "/webhooks/whatsapp/", bytes.NewReader([]byte(payload)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode, "un WABA desconocido no debe romper el ack")
}

func TestWebhookReceive_MalformedBodyStillAcks(t *testing.T) {
	app, _, _ := newWebhookApp(t)

	req := httptest.NewRequest("POST", "/webhooks/whatsapp/", bytes.NewReader([]byte("{no es json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
