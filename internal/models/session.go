package models

// Identifier layout constants. The identifier is stable across token
// rotations on the same device lineage: the first half is a random
// per-device seed, the second half is the owning account's identifier
// (quick hash of password hash + email address).
const (
	IdentifierSeedLength = 32
	IdentifierLength     = 64
	TokenHashLength      = 32
)

// PersistentSession is one "remember me" session row. One row per device;
// the token rotates in place on every successful validation.
type PersistentSession struct {
	ID         int64
	UserID     int64
	Identifier string // 64 chars, see layout constants
	TokenHash  string // 32 chars, quick hash of the current token
	Created    int64
	Updated    int64
}

// SeedHalf returns the per-device random half of the identifier.
func (s *PersistentSession) SeedHalf() string {
	if len(s.Identifier) < IdentifierSeedLength {
		return s.Identifier
	}
	return s.Identifier[:IdentifierSeedLength]
}

// AccountHalf returns the half of the identifier bound to the account's
// current secret state.
func (s *PersistentSession) AccountHalf() string {
	if len(s.Identifier) < IdentifierLength {
		return ""
	}
	return s.Identifier[IdentifierSeedLength:IdentifierLength]
}
