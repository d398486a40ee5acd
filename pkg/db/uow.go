package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// UnitOfWork is one database transaction. Every statement issued through DB()
// commits or rolls back together.
type UnitOfWork struct {
	tx   *gorm.DB
	done bool
}

// Begin opens a unit of work bound to ctx.
func (c *Client) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	return &UnitOfWork{tx: tx}, nil
}

func (u *UnitOfWork) DB() *gorm.DB {
	return u.tx
}

func (u *UnitOfWork) Commit() error {
	if u.done {
		return fmt.Errorf("unit of work already finished")
	}
	u.done = true
	if err := u.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Rollback discards pending writes. It is a no-op once the unit of work finished,
// so callers may defer it right after Begin.
func (u *UnitOfWork) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback().Error
}

// SupportsRowLocks reports whether SELECT ... FOR UPDATE is available on tx.
func SupportsRowLocks(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}
