package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-desk/ticketing/application"
	"github.com/AzielCF/az-desk/ticketing/domain"
	"github.com/AzielCF/az-desk/ticketing/normalizer"
)

// Webhook recibe el tráfico de la Cloud API: el handshake de verificación y
// los POST de mensajes/estados.
type Webhook struct {
	VerifyToken string
	Channels    domain.ChannelRepository
	Pipeline    *application.Pipeline

	// channelCache evita un SELECT por canal en cada POST del webhook.
	channelCache *gocache.Cache
}

func InitRestWebhook(app fiber.Router, verifyToken string, channels domain.ChannelRepository, pipeline *application.Pipeline) Webhook {
	handler := Webhook{
		VerifyToken:  verifyToken,
		Channels:     channels,
		Pipeline:     pipeline,
		channelCache: gocache.New(5*time.Minute, 10*time.Minute),
	}

	group := app.Group("/webhooks/whatsapp")
	group.Get("/", handler.Verify)
	group.Post("/", handler.Receive)

	return handler
}

// Verify responde el handshake GET de Meta: si el token coincide se devuelve
// el challenge tal cual, si no 403.
func (h *Webhook) Verify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == h.VerifyToken {
		logrus.Info("[WEBHOOK] Verification handshake accepted")
		return c.Status(fiber.StatusOK).SendString(challenge)
	}

	logrus.Warn("[WEBHOOK] Verification handshake rejected")
	return c.SendStatus(fiber.StatusForbidden)
}

// Receive procesa un POST del webhook. Siempre responde 200: Meta reintenta
// ante cualquier otra cosa y el reintento duplicaría trabajo que la
// idempotencia ya cubre.
func (h *Webhook) Receive(c *fiber.Ctx) error {
	var payload normalizer.CloudWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		logrus.WithError(err).Warn("[WEBHOOK] Unparseable payload, acknowledging anyway")
		return c.SendStatus(fiber.StatusOK)
	}

	for _, entry := range payload.Entry {
		ch, err := h.channelByWaba(c, entry.ID)
		if err != nil {
			logrus.Warnf("[WEBHOOK] No channel for WABA %s, dropping entry", entry.ID)
			continue
		}

		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			for _, ev := range normalizer.NormalizeCloudChange(ch, change.Value) {
				if !h.Pipeline.Submit(ch, ev) {
					logrus.Warnf("[WEBHOOK] Gate rejected event for channel %s (backpressure)", ch.ID)
				}
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Webhook) channelByWaba(c *fiber.Ctx, wabaID string) (domain.ChannelInstance, error) {
	if cached, ok := h.channelCache.Get(wabaID); ok {
		return cached.(domain.ChannelInstance), nil
	}
	ch, err := h.Channels.GetByWabaID(c.UserContext(), wabaID)
	if err != nil {
		return domain.ChannelInstance{}, err
	}
	h.channelCache.Set(wabaID, ch, gocache.DefaultExpiration)
	return ch, nil
}
