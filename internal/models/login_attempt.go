package models

// Outcome values for attempt rows. The login path records failures and
// successes; AttemptUnknownAccount is the reserved marker value that the
// per-IP window count excludes.
const (
	AttemptUnknownAccount = -1
	AttemptFailed         = 0
	AttemptSuccess        = 1
)

// LoginAttempt is one row of the append-only attempt log. Rows are never
// updated or deleted (outside retention cleanup); throttling always
// recomputes from this log plus the current ban window.
type LoginAttempt struct {
	ID          int64
	FieldHash   string // quick hash of the raw login identifier (email/username)
	IPID        int64
	AttemptTime int64 // unix seconds
	Success     int
}
