package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

type QueueGormRepository struct {
	db *gorm.DB
}

func NewQueueGormRepository(db *gorm.DB) *QueueGormRepository {
	return &QueueGormRepository{db: db}
}

func (r *QueueGormRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Queue, error) {
	var m queueModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Queue{}, domain.ErrQueueNotFound
		}
		return domain.Queue{}, err
	}
	return fromQueueModel(m), nil
}

// NextAssignmentIndex avanza el cursor round-robin de la cola con un UPDATE
// atómico y retorna el valor nuevo. El cursor nunca se calcula en memoria:
// dos servidores compartiendo la base obtienen índices distintos.
func (r *QueueGormRepository) NextAssignmentIndex(ctx context.Context, tenantID, queueID string) (int64, error) {
	var cursor int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&queueModel{}).
			Where("tenant_id = ? AND id = ?", tenantID, queueID).
			Update("rr_cursor", gorm.Expr("rr_cursor + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrQueueNotFound
		}
		return tx.Model(&queueModel{}).
			Where("tenant_id = ? AND id = ?", tenantID, queueID).
			Select("rr_cursor").
			Scan(&cursor).Error
	})
	return cursor, err
}
