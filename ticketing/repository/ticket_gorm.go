package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AzielCF/az-desk/ticketing/domain"
)

type TicketGormRepository struct {
	db *gorm.DB
}

func NewTicketGormRepository(db *gorm.DB) *TicketGormRepository {
	return &TicketGormRepository{db: db}
}

// FindActive retorna el ticket no cerrado más reciente del par
// (contacto, canal). Un ticket cerrado nunca se reutiliza.
func (r *TicketGormRepository) FindActive(ctx context.Context, tenantID, contactID, channelID string) (domain.Ticket, error) {
	var m ticketModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND contact_id = ? AND channel_id = ? AND status <> ?",
			tenantID, contactID, channelID, string(domain.TicketStatusClosed)).
		Order("updated_at DESC").
		First(&m).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, err
	}
	return fromTicketModel(m), nil
}

func (r *TicketGormRepository) Create(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	model := toTicketModel(*t)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *TicketGormRepository) Update(ctx context.Context, t *domain.Ticket) error {
	t.UpdatedAt = time.Now()
	model := toTicketModel(*t)
	res := r.db.WithContext(ctx).
		Where("tenant_id = ?", t.TenantID).
		Save(&model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTicketNotFound
	}
	return nil
}

func (r *TicketGormRepository) GetByID(ctx context.Context, tenantID, id string) (domain.Ticket, error) {
	var m ticketModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Ticket{}, domain.ErrTicketNotFound
		}
		return domain.Ticket{}, err
	}
	return fromTicketModel(m), nil
}

func (r *TicketGormRepository) ListByStatus(ctx context.Context, tenantID string, status domain.TicketStatus, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var models []ticketModel
	if err := query.Order("updated_at DESC").Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Ticket, len(models))
	for i, m := range models {
		res[i] = fromTicketModel(m)
	}
	return res, nil
}
