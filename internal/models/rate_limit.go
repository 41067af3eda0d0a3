package models

import "time"

// RateLimitRecord is one accepted creation attempt from a client IP.
// Records are append-only; only the cleanup janitor removes them once they fall out of the window.
type RateLimitRecord struct {
	ID uint `gorm:"primaryKey"`

	// IP of the client. Clients that do not report one share the anonymous key.
	IP string `gorm:"size:64;index:idx_rate_limit_ip_created"`

	// CreatedAt is compared against the rate-limit window.
	CreatedAt time.Time `gorm:"index:idx_rate_limit_ip_created;index"`
}
