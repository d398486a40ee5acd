package lemonsqueezywebhook

import (
	"context"

	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"gorm.io/gorm"
)

// JournalRepository stores the webhook_events reconciliation log.
type JournalRepository interface {
	Create(ctx context.Context, entry *models.WebhookEvent) error
	ListByOrderID(ctx context.Context, orderID string) ([]models.WebhookEvent, error)
}

type journalRepository struct {
	db *gorm.DB
}

func NewJournalRepository(db *gorm.DB) JournalRepository {
	return &journalRepository{db: db}
}

func (r *journalRepository) Create(ctx context.Context, entry *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *journalRepository) ListByOrderID(ctx context.Context, orderID string) ([]models.WebhookEvent, error) {
	var entries []models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
