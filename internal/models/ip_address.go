package models

// IPAddress tracks ban state for a client IP. Rows are created lazily the
// first time an attempt from the address is observed and are mutated only by
// ban issuance.
type IPAddress struct {
	ID       int64
	Address  string
	BanUntil int64 // absolute expiry, 0 = never banned
	BanCount int
	Created  int64
}

// Banned reports whether the IP is inside an active ban window.
func (ip *IPAddress) Banned(now int64) bool {
	return ip.BanUntil > now
}
