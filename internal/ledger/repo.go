package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for credit orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.CreditOrder) error
	FindByOrderID(ctx context.Context, orderID string) (*models.CreditOrder, error)
	FindByOrderIDForUpdate(ctx context.Context, orderID string) (*models.CreditOrder, error)
	MarkRefunded(ctx context.Context, orderID string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]models.CreditOrder, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.CreditOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByOrderID returns nil, nil when the order has not been recorded.
func (r *repository) FindByOrderID(ctx context.Context, orderID string) (*models.CreditOrder, error) {
	return r.find(r.db.WithContext(ctx), orderID)
}

func (r *repository) FindByOrderIDForUpdate(ctx context.Context, orderID string) (*models.CreditOrder, error) {
	query := r.db.WithContext(ctx)
	if db.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(query, orderID)
}

func (r *repository) find(query *gorm.DB, orderID string) (*models.CreditOrder, error) {
	var order models.CreditOrder
	if err := query.First(&order, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// MarkRefunded flips a paid order to refunded. It reports false when the
// order was not in the paid state.
func (r *repository) MarkRefunded(ctx context.Context, orderID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CreditOrder{}).
		Where("order_id = ? AND status = ?", orderID, enums.CreditOrderStatusPaid).
		Updates(map[string]any{
			"status":      enums.CreditOrderStatusRefunded,
			"refunded_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListByUser returns the newest orders first.
func (r *repository) ListByUser(ctx context.Context, userID string, limit int) ([]models.CreditOrder, error) {
	var orders []models.CreditOrder
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("order_id DESC").
		Limit(limit).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
