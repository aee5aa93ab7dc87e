package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

type ChannelGormRepository struct {
	db *gorm.DB
}

func NewChannelGormRepository(db *gorm.DB) *ChannelGormRepository {
	return &ChannelGormRepository{db: db}
}

func (r *ChannelGormRepository) GetByID(ctx context.Context, id string) (domain.ChannelInstance, error) {
	var m channelModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ChannelInstance{}, domain.ErrChannelNotFound
		}
		return domain.ChannelInstance{}, err
	}
	return fromChannelModel(m), nil
}

func (r *ChannelGormRepository) GetByWabaID(ctx context.Context, wabaID string) (domain.ChannelInstance, error) {
	var m channelModel
	if err := r.db.WithContext(ctx).Where("waba_id = ?", wabaID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.ChannelInstance{}, domain.ErrChannelNotFound
		}
		return domain.ChannelInstance{}, err
	}
	return fromChannelModel(m), nil
}

// SavePhoneNumberID persiste un phone-number id descubierto de forma lazy.
// Idempotente: escribir el mismo valor dos veces no es un error.
func (r *ChannelGormRepository) SavePhoneNumberID(ctx context.Context, channelID, phoneNumberID string) error {
	return r.db.WithContext(ctx).Model(&channelModel{}).
		Where("id = ?", channelID).
		Updates(map[string]interface{}{
			"phone_number_id": phoneNumberID,
			"updated_at":      time.Now(),
		}).Error
}

// ListByKind retorna todos los canales de un transporte, de todos los
// tenants. Lo usa el arranque para levantar las sesiones de socket.
func (r *ChannelGormRepository) ListByKind(ctx context.Context, kind domain.ChannelKind) ([]domain.ChannelInstance, error) {
	var models []channelModel
	if err := r.db.WithContext(ctx).Where("kind = ?", string(kind)).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ChannelInstance, len(models))
	for i, m := range models {
		res[i] = fromChannelModel(m)
	}
	return res, nil
}

func (r *ChannelGormRepository) List(ctx context.Context, tenantID string) ([]domain.ChannelInstance, error) {
	var models []channelModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ChannelInstance, len(models))
	for i, m := range models {
		res[i] = fromChannelModel(m)
	}
	return res, nil
}
