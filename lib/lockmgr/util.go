package lockmgr

import (
	"crypto/rand"
)

const (
	ownerIDBytes = 32
)

// generateOwnerID creates a new unique owner token.
func generateOwnerID() ([]byte, error) {
	randomBytes := make([]byte, ownerIDBytes)
	_, err := rand.Read(randomBytes)
	return randomBytes, err
}
