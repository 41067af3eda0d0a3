package models

import "time"

// URLMapping représente l'association persistée entre un code court et son URL longue.
type URLMapping struct {
	ID        uint       `gorm:"primaryKey" json:"-"`
	ShortCode string     `gorm:"uniqueIndex;size:16;not null" json:"short_code"`
	LongURL   string     `gorm:"type:text;index;not null" json:"long_url"`
	ShortURL  string     `gorm:"type:text;not null" json:"short_url"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // jamais renseigné ni appliqué
}
