package users

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no user row matches the id.
var ErrNotFound = errors.New("user not found")

// Repository reads user rows and moves their credit balance.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	AddCredits(ctx context.Context, id string, amount int) error
	DebitCredits(ctx context.Context, id string, amount int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByID loads a user by id.
func (r *repository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.find(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate loads a user and holds a row lock until the surrounding
// transaction ends. The lock is skipped on drivers without FOR UPDATE.
func (r *repository) FindByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := r.db.WithContext(ctx)
	if db.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, query, id)
}

func (r *repository) find(_ context.Context, query *gorm.DB, id string) (*models.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	var user models.User
	if err := query.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// AddCredits increments the balance atomically.
func (r *repository) AddCredits(ctx context.Context, id string, amount int) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DebitCredits subtracts amount only when the balance covers it. It reports
// false when no row qualified, which covers both a short balance and a
// missing user.
func (r *repository) DebitCredits(ctx context.Context, id string, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND credits >= ?", id, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
