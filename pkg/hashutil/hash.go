// Package hashutil provides the fast non-cryptographic hash used for
// login-field correlation, session token storage and the account session
// identifier. It is deliberately not a password primitive; credential
// hashing lives in pkg/auth.
package hashutil

import (
	"crypto/md5"
	"encoding/hex"
)

// Size is the length in characters of every QuickHash result.
const Size = 32

// QuickHash returns a fixed 32-hex-char digest of s.
func QuickHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
