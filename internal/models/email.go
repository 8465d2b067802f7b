package models

// Email is a shared email address row. More than one account may reference
// the same address (e.g. after an account is deleted and the address reused).
type Email struct {
	ID      int64
	Address string
	Created int64
	Updated int64
}
