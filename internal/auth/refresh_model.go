package auth

import "time"

const (
	// SchemaLegacyPlain marca registros antigos cujo TokenHash ainda guarda o token cru.
	SchemaLegacyPlain = 1
	SchemaHashed      = 2
)

type RefreshToken struct {
	ID                  uint       `gorm:"primaryKey"`
	UserID              uint       `gorm:"index;not null"`
	TokenHash           string     `gorm:"uniqueIndex;size:512;not null"`
	SchemaVersion       int        `gorm:"not null;default:2;index"`
	ExpiresAt           time.Time  `gorm:"index;not null"`
	Revoked             bool       `gorm:"not null;default:false;index"`
	RevokedAt           *time.Time `gorm:"index"`
	ReplacedByTokenHash *string    `gorm:"size:64"`
	CreatedByIP         string     `gorm:"size:64"`
	UserAgent           string     `gorm:"size:255"`
	CreatedAt           time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

