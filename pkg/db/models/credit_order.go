package models

import (
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
)

// CreditOrder is the ledger entry for one provider order. The provider order id
// is the primary key so a replayed order_created cannot insert twice.
type CreditOrder struct {
	OrderID       string                  `gorm:"column:order_id;type:text;primaryKey"`
	UserID        string                  `gorm:"column:user_id;type:text;not null;index:idx_credit_orders_user_created,priority:1"`
	ProductID     string                  `gorm:"column:product_id;type:text;not null"`
	VariantID     *string                 `gorm:"column:variant_id;type:text"`
	Credits       int                     `gorm:"column:credits;not null"`
	OrderTotal    int64                   `gorm:"column:order_total;not null"`
	Status        enums.CreditOrderStatus `gorm:"column:status;type:text;not null"`
	CustomerEmail string                  `gorm:"column:customer_email;type:text;not null"`
	CreatedAt     time.Time               `gorm:"column:created_at;autoCreateTime;index:idx_credit_orders_user_created,priority:2,sort:desc"`
	RefundedAt    *time.Time              `gorm:"column:refunded_at"`
}

func (CreditOrder) TableName() string { return "credit_orders" }
