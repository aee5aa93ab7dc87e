package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

type ContactGormRepository struct {
	db *gorm.DB
}

func NewContactGormRepository(db *gorm.DB) *ContactGormRepository {
	return &ContactGormRepository{db: db}
}

// FindOrCreate resuelve (tenant, number) a un contacto. El insert usa
// ON CONFLICT DO NOTHING sobre el índice único, así dos llamadas concurrentes
// para el mismo número terminan leyendo la misma fila.
func (r *ContactGormRepository) FindOrCreate(ctx context.Context, tenantID, number, name string, isGroup bool) (domain.Contact, error) {
	var m contactModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&m).Error
	if err == nil {
		return fromContactModel(m), nil
	}
	if err != gorm.ErrRecordNotFound {
		return domain.Contact{}, err
	}

	now := time.Now()
	candidate := contactModel{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Number:    number,
		Name:      name,
		IsGroup:   isGroup,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "number"}},
			DoNothing: true,
		}).
		Create(&candidate).Error; err != nil {
		return domain.Contact{}, err
	}

	// Releer siempre: si otro writer ganó la carrera, esta lectura devuelve
	// su fila en vez de la candidata.
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND number = ?", tenantID, number).
		First(&m).Error; err != nil {
		return domain.Contact{}, err
	}
	return fromContactModel(m), nil
}

func (r *ContactGormRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Contact, error) {
	var m contactModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Contact{}, domain.ErrContactNotFound
		}
		return domain.Contact{}, err
	}
	return fromContactModel(m), nil
}
