package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher is a bcrypt adapter for password hashing and verification.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. A cost of zero falls back to the bcrypt
// default.
func NewHasher(cost int) Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash derives a one-way hash of the raw password.
func (h Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the raw password matches the stored hash.
func (h Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
