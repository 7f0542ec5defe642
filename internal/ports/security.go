package ports

import "time"

// SecretHasher compares presented secrets against stored one-way hashes.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) error
}

// AdminClaims is the token payload for authenticated admin sessions.
type AdminClaims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	KeyID     string    `json:"kid"`
}

// TokenSigner signs and validates admin bearer tokens.
type TokenSigner interface {
	Sign(claims AdminClaims) (string, error)
	ParseAndValidate(token string) (AdminClaims, error)
}
