// Package dbtest opens isolated in-memory SQLite databases carrying the credit
// ledger schema for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/angelmondragon/creditpacks-backend/pkg/db"
	"github.com/angelmondragon/creditpacks-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Open returns a client backed by a private in-memory database. The pool is
// capped at one connection so concurrent callers queue on the database the way
// row locks would serialize them on Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(
		&models.User{},
		&models.CreditOrder{},
		&models.CreditUsage{},
		&models.WebhookEvent{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	return db.FromGorm(conn)
}

// SeedUser inserts a user with the given balance.
func SeedUser(t testing.TB, client *db.Client, id string, credits int) models.User {
	t.Helper()

	user := models.User{
		ID:      id,
		Email:   id + "@example.com",
		Credits: credits,
	}
	if err := client.DB().Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
	return user
}

// Balance reads the stored credits for id.
func Balance(t testing.TB, client *db.Client, id string) int {
	t.Helper()

	var user models.User
	if err := client.DB().First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to load user %s: %v", id, err)
	}
	return user.Credits
}

// Count returns the number of rows in model's table.
func Count(t testing.TB, client *db.Client, model any) int64 {
	t.Helper()

	var n int64
	if err := client.DB().Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
