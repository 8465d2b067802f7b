package models

import "github.com/gatekeephq/gatekeep/pkg/hashutil"

// Account permission levels. Ordered so that comparisons work for
// "at least" checks.
const (
	PermissionDeleted    int16 = 0
	PermissionGuest      int16 = 1
	PermissionRegistered int16 = 2
	PermissionModerator  int16 = 3
	PermissionAdmin      int16 = 4
)

// Account is a user account row. All timestamps are unix seconds.
type Account struct {
	ID             int64
	EmailID        int64
	Username       string
	PasswordHash   string
	Activated      bool
	Permission     int16
	Credits        int64
	BanUntil       int64 // absolute expiry, 0 = never banned
	BanCount       int
	PasswordEdited int64
	Created        int64
	Updated        int64
	LastActivity   int64
}

// Banned reports whether the account is inside an active ban window.
func (a *Account) Banned(now int64) bool {
	return a.BanUntil > now
}

// Identifier derives the value that binds persistent sessions to the
// account's current secret state. Changing the password or the email
// address changes the identifier and so silently invalidates every
// remembered session.
func (a *Account) Identifier(emailAddress string) string {
	return hashutil.QuickHash(a.PasswordHash + emailAddress)
}
