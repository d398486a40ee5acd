package models

import "time"

// CreditUsage records one successful consume.
type CreditUsage struct {
	ID           string    `gorm:"column:id;type:text;primaryKey"`
	UserID       string    `gorm:"column:user_id;type:text;not null;index"`
	Amount       int       `gorm:"column:amount;not null"`
	Description  string    `gorm:"column:description;type:text;not null"`
	BalanceAfter int       `gorm:"column:balance_after;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CreditUsage) TableName() string { return "credit_usages" }
