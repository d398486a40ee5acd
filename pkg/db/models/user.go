package models

import "time"

// User is the identity row owned by the auth provider. This service only
// reads it and moves the credits column.
type User struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Email     string    `gorm:"column:email;type:text;not null"`
	Name      *string   `gorm:"column:name;type:text"`
	Credits   int       `gorm:"column:credits;not null;default:0;check:credits >= 0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string { return "users" }
