// Passwords are stored as a (salt, hash) pair rather than a single encoded
// string, because the users table keeps the two in separate columns:
//
//	salt = hex(64 random bytes)
//	hash = hex(PBKDF2-HMAC-SHA512(password, salt, 10000 iterations, 64 bytes))
//
// The salt is hex-decoded back to raw bytes before derivation, so the same
// (password, salt) text pair always yields the same hash text.

package auth

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltBytes         = 64
	keyBytes          = 64
	defaultIterations = 10000
)

// PasswordService derives and checks PBKDF2 password hashes.
//
// Like the bcrypt cost in other services, the iteration count is a field so
// that it is fixed for the lifetime of the process and visible in one place.
// Changing it invalidates every stored hash.
type PasswordService struct {
	iterations int
}

// NewPasswordService creates a PasswordService with 10000 iterations.
func NewPasswordService() *PasswordService {
	return &PasswordService{iterations: defaultIterations}
}

// GenerateSaltAndHash creates a fresh random salt and derives the hash of
// password under it. Both values are hex text, ready to store.
func (p *PasswordService) GenerateSaltAndHash(password string) (salt, hash string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("auth: generating salt: %w", err)
	}

	salt = hex.EncodeToString(raw)
	return salt, p.derive(password, raw), nil
}

// CheckPassword recomputes the hash of password under salt and compares it
// with hash in constant time. A salt that is not valid hex never matches.
func (p *PasswordService) CheckPassword(password, salt, hash string) bool {
	raw, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}

	calculated := p.derive(password, raw)
	return subtle.ConstantTimeCompare([]byte(calculated), []byte(hash)) == 1
}

func (p *PasswordService) derive(password string, salt []byte) string {
	key := pbkdf2.Key([]byte(password), salt, p.iterations, keyBytes, sha512.New)
	return hex.EncodeToString(key)
}
