package models

import (
	"time"

	"github.com/google/uuid"
)

// Admin is a console operator allowed to manage events.
type Admin struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminPublic is Admin without sensitive fields for API responses.
type AdminPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Admin to AdminPublic.
func (a *Admin) ToPublic() AdminPublic {
	return AdminPublic{
		ID:        a.ID,
		Email:     a.Email,
		FullName:  a.FullName,
		CreatedAt: a.CreatedAt,
	}
}
