package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

type MessageGormRepository struct {
	db *gorm.DB
}

func NewMessageGormRepository(db *gorm.DB) *MessageGormRepository {
	return &MessageGormRepository{db: db}
}

// StoreInbound inserta el mensaje y actualiza el snapshot del ticket en la
// misma transacción. Un external_id repetido es un no-op completo: ni fila
// nueva ni contador tocado.
func (r *MessageGormRepository) StoreInbound(ctx context.Context, msg *domain.Message) (bool, domain.Message, error) {
	return r.store(ctx, msg, true)
}

// StoreOutbound es el espejo para mensajes enviados por agentes: actualiza
// last_message pero nunca el contador de no leídos.
func (r *MessageGormRepository) StoreOutbound(ctx context.Context, msg *domain.Message) (bool, domain.Message, error) {
	return r.store(ctx, msg, false)
}

func (r *MessageGormRepository) store(ctx context.Context, msg *domain.Message, countUnread bool) (bool, domain.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.CreatedAt = now
	msg.UpdatedAt = now

	created := false
	var stored messageModel

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := toMessageModel(*msg)
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "external_id"}},
			DoNothing: true,
		}).Create(&model)
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			// Duplicado: devolver la fila ya almacenada sin tocar el ticket.
			return tx.Where("tenant_id = ? AND external_id = ?", msg.TenantID, msg.ExternalID).
				First(&stored).Error
		}
		created = true
		stored = model

		updates := map[string]interface{}{
			"last_message": msg.Body,
			"updated_at":   now,
		}
		if countUnread && !msg.FromMe {
			updates["unread_messages"] = gorm.Expr("unread_messages + 1")
		}
		return tx.Model(&ticketModel{}).
			Where("tenant_id = ? AND id = ?", msg.TenantID, msg.TicketID).
			Updates(updates).Error
	})
	if err != nil {
		return false, domain.Message{}, err
	}
	return created, fromMessageModel(stored), nil
}

func (r *MessageGormRepository) FindByExternalID(ctx context.Context, tenantID, externalID string) (domain.Message, error) {
	var m messageModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Message{}, domain.ErrMessageNotFound
		}
		return domain.Message{}, err
	}
	return fromMessageModel(m), nil
}

func (r *MessageGormRepository) UpdateAck(ctx context.Context, tenantID, externalID string, ack domain.AckLevel) error {
	res := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("tenant_id = ? AND external_id = ?", tenantID, externalID).
		Updates(map[string]interface{}{
			"ack":        int(ack),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageGormRepository) ListByTicket(ctx context.Context, tenantID, ticketID string) ([]domain.Message, error) {
	var models []messageModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND ticket_id = ?", tenantID, ticketID).
		Order("timestamp ASC, created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Message, len(models))
	for i, m := range models {
		res[i] = fromMessageModel(m)
	}
	return res, nil
}

func (r *MessageGormRepository) CountByTicket(ctx context.Context, tenantID, ticketID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&messageModel{}).
		Where("tenant_id = ? AND ticket_id = ?", tenantID, ticketID).
		Count(&count).Error
	return count, err
}
