package domain

import "time"

// Plans a user can be on.
const (
	PlanFree   = "free"
	PlanAdFree = "adfree"
)

type User struct {
	ID           string
	Email        string // lowercased, unique
	DisplayName  string
	PasswordHash string // argon2id PHC string
	Credits      int
	AdFree       bool
	Plan         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RevokedToken is a logged-out session id, kept until the token would
// have expired anyway.
type RevokedToken struct {
	JTI       string
	UserID    string
	ExpiresAt time.Time
}

// SigningKey is a persisted session signing key. PrivateKeySealed is the
// PKCS8 PEM encrypted under the studio master key.
type SigningKey struct {
	Kid              string
	Algorithm        string
	PrivateKeySealed []byte
	CreatedAt        time.Time
	RetiredAt        *time.Time
	ExpiresAt        *time.Time
}
