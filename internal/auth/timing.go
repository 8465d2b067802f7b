package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig tunes the response-time floor applied to failed logins.
type TimingConfig struct {
	BaseDelayMs   int // minimum elapsed time for a failed attempt
	RandomDelayMs int // random jitter added on top
}

// TimingDelay pads failed login responses to a minimum elapsed time. An
// unknown account skips the bcrypt comparison entirely, which would
// otherwise make "no such account" distinguishable from "wrong password"
// by response time alone.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// WaitFrom sleeps until at least the configured floor has elapsed since
// start. Successes return immediately.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if success {
		return
	}

	target := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs > 0 {
		target += time.Duration(cryptoRandIntn(td.config.RandomDelayMs)) * time.Millisecond
	}

	if elapsed := time.Since(start); elapsed < target {
		time.Sleep(target - elapsed)
	}
}

// cryptoRandIntn returns a random int in [0, max). Uses crypto/rand so the
// jitter itself leaks nothing.
func cryptoRandIntn(max int) int {
	if max <= 0 {
		return 0
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return int(binary.BigEndian.Uint64(buf[:]) % uint64(max))
}
