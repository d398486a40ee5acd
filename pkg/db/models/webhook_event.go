package models

import (
	"time"

	"github.com/angelmondragon/creditpacks-backend/pkg/enums"
)

// WebhookEvent journals every signed delivery and how it was handled.
type WebhookEvent struct {
	ID        string               `gorm:"column:id;type:text;primaryKey"`
	EventName string               `gorm:"column:event_name;type:text;not null"`
	OrderID   *string              `gorm:"column:order_id;type:text;index"`
	UserID    *string              `gorm:"column:user_id;type:text"`
	Outcome   enums.WebhookOutcome `gorm:"column:outcome;type:text;not null"`
	Error     *string              `gorm:"column:error;type:text"`
	Payload   string               `gorm:"column:payload;type:text;not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
