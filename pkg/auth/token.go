package auth

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateToken returns a random 32-hex-char token, used for persistent
// session tokens and identifier seeds.
func GenerateToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
