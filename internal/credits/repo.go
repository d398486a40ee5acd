package credits

import (
	"context"

	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository persists the consume audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateUsage(ctx context.Context, usage *models.CreditUsage) error
	ListUsages(ctx context.Context, userID string, limit int) ([]models.CreditUsage, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.CreditUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

func (r *repository) ListUsages(ctx context.Context, userID string, limit int) ([]models.CreditUsage, error) {
	var usages []models.CreditUsage
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&usages).Error; err != nil {
		return nil, err
	}
	return usages, nil
}
