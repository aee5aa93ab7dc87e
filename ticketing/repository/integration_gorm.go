package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

var ErrIntegrationNotFound = errors.New("integration not found")

type IntegrationGormRepository struct {
	db *gorm.DB
}

func NewIntegrationGormRepository(db *gorm.DB) *IntegrationGormRepository {
	return &IntegrationGormRepository{db: db}
}

func (r *IntegrationGormRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Integration, error) {
	var m integrationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Integration{}, ErrIntegrationNotFound
		}
		return domain.Integration{}, err
	}
	return fromIntegrationModel(m), nil
}
