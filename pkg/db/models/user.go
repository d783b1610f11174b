package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// User is a directory entry resolving a national id to a display name and role.
type User struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	NationalID string     `gorm:"column:national_id;not null;uniqueIndex:ux_users_national_id"`
	FullName   string     `gorm:"column:full_name;not null"`
	Email      *string    `gorm:"column:email"`
	Role       enums.Role `gorm:"column:role;type:varchar(16);not null"`
	Active     bool       `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
