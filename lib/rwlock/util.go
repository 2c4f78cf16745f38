package rwlock

import (
	"crypto/rand"

	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("rwlock")

const tokenBytes = 32

// generateToken creates a new unique owner token (256 random bits).
func generateToken() ([]byte, error) {
	token := make([]byte, tokenBytes)
	_, err := rand.Read(token)
	return token, err
}
