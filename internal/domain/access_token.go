package domain

import "time"

// AccessToken is a personal API token issued to a portal user. The plain
// token is never stored; only its sha256 hex digest.
type AccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}
