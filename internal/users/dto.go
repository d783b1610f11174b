package users

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// UserDTO is the transport shape of a directory entry.
type UserDTO struct {
	ID         uuid.UUID  `json:"id"`
	NationalID string     `json:"national_id"`
	FullName   string     `json:"full_name"`
	Email      *string    `json:"email,omitempty"`
	Role       enums.Role `json:"role"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new directory entry.
type CreateUserDTO struct {
	NationalID string
	FullName   string
	Email      *string
	Role       enums.Role
	Active     *bool
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:         u.ID,
		NationalID: u.NationalID,
		FullName:   u.FullName,
		Email:      u.Email,
		Role:       u.Role,
		Active:     u.Active,
		CreatedAt:  u.CreatedAt,
	}
}

func (c CreateUserDTO) ToModel() *models.User {
	active := true
	if c.Active != nil {
		active = *c.Active
	}
	return &models.User{
		NationalID: NormalizeNationalID(c.NationalID),
		FullName:   strings.TrimSpace(c.FullName),
		Email:      c.Email,
		Role:       c.Role,
		Active:     active,
	}
}

// NormalizeNationalID strips dots and spaces and upper-cases the check digit,
// so "12.345.678-k" and "12345678-K" resolve to the same record.
func NormalizeNationalID(raw string) string {
	cleaned := strings.NewReplacer(".", "", " ", "").Replace(strings.TrimSpace(raw))
	return strings.ToUpper(cleaned)
}
