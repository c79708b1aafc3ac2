package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account. Secret columns (password hash,
// refresh token, reset token fields) are excluded from JSON so any handler
// returning a User returns it sanitized.
type User struct {
	ID       uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Username string    `json:"username" gorm:"uniqueIndex;size:255;not null"`
	Email    string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	FullName string    `json:"full_name" gorm:"size:255;not null"`

	AvatarKey string `json:"-" gorm:"size:255;not null"`
	AvatarURL string `json:"avatar" gorm:"size:512;not null"`
	CoverKey  string `json:"-" gorm:"size:255"`
	CoverURL  string `json:"cover_image,omitempty" gorm:"size:512"`

	PasswordHash string `json:"-" gorm:"size:255;not null"`

	// RefreshToken is the single source of truth for refresh validity: a
	// presented refresh token must match it byte for byte. Logout clears it,
	// login and refresh overwrite it.
	RefreshToken string `json:"-" gorm:"size:512"`

	// ResetTokenHash and ResetTokenExpiresAt are set together when a password
	// reset is requested and cleared together once consumed or replaced.
	ResetTokenHash      string     `json:"-" gorm:"size:64;index"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
