package services_test

import (
	"io"
	"log/slog"
	"sync"

	"github.com/gatekeephq/gatekeep/internal/metrics"
	pkgauth "github.com/gatekeephq/gatekeep/pkg/auth"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(testLogger())
}

func testMetrics() *metrics.Metrics {
	return metrics.New()
}

const testPassword = "Sw0rdfish!Valid"

var (
	testHashOnce sync.Once
	testHash     string
)

// testPasswordHash hashes testPassword once per test binary; bcrypt at the
// production cost is too slow to run per test.
func testPasswordHash() string {
	testHashOnce.Do(func() {
		h, err := pkgauth.HashPassword(testPassword)
		if err != nil {
			panic(err)
		}
		testHash = h
	})
	return testHash
}
