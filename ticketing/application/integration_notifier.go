package application

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	pkgError "github.com/AzielCF/az-desk/pkg/error"
	"github.com/AzielCF/az-desk/ticketing/domain"
)

const defaultIntegrationTimeout = 10 * time.Second

// IntegrationNotifier reenvía mensajes entrantes a webhooks externos
// (n8n y similares). El destino se resuelve por cola y cae al default del
// canal cuando la cola no define uno.
type IntegrationNotifier struct {
	integrations domain.IntegrationRepository
	queues       domain.QueueRepository
	client       *resty.Client
	timeout      time.Duration
}

func NewIntegrationNotifier(integrations domain.IntegrationRepository, queues domain.QueueRepository, timeout time.Duration) *IntegrationNotifier {
	if timeout == 0 {
		timeout = defaultIntegrationTimeout
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &IntegrationNotifier{
		integrations: integrations,
		queues:       queues,
		client:       client,
		timeout:      timeout,
	}
}

// NotifyInbound envía el payload del mensaje a la integración configurada.
// Fire-and-forget: corre en su propia goroutine con timeout acotado y nunca
// reporta error al pipeline.
func (n *IntegrationNotifier) NotifyInbound(ch domain.ChannelInstance, contact domain.Contact, ticket domain.Ticket, msg domain.Message, raw map[string]any) {
	integrationID := n.resolveIntegrationID(ch, ticket)
	if integrationID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		integration, err := n.integrations.GetByID(ctx, ch.TenantID, integrationID)
		if err != nil {
			logrus.WithError(err).Warnf("[INTEGRATION] Integration %s not found", integrationID)
			return
		}

		// El payload conserva los campos originales del proveedor y agrega el
		// contexto resuelto, igual que lo consumen los flujos de n8n.
		payload := make(map[string]any, len(raw)+5)
		for k, v := range raw {
			payload[k] = v
		}
		payload["contact"] = contact
		payload["ticket"] = ticket
		payload["type"] = msg.MediaType
		payload["body"] = msg.Body
		payload["source"] = string(ch.Kind)

		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(integration.URL)
		if err != nil {
			logrus.Warn("[INTEGRATION] ", pkgError.WebhookError(fmt.Sprintf("POST to %s failed: %v", integration.Name, err)))
			return
		}
		if resp.IsError() {
			logrus.Warn("[INTEGRATION] ", pkgError.WebhookError(fmt.Sprintf("%s answered %d", integration.Name, resp.StatusCode())))
		}
	}()
}

// resolveIntegrationID prioriza la integración de la cola del ticket y cae a
// la del canal.
func (n *IntegrationNotifier) resolveIntegrationID(ch domain.ChannelInstance, ticket domain.Ticket) string {
	if ticket.QueueID != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if queue, err := n.queues.GetByID(ctx, ch.TenantID, ticket.QueueID); err == nil && queue.IntegrationID != "" {
			return queue.IntegrationID
		}
	}
	return ch.IntegrationID
}
