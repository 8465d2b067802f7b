package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatekeephq/gatekeep/internal/metrics"
	"github.com/gatekeephq/gatekeep/internal/models"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
)

// ThrottleAttemptRepository is the slice of the attempt log the throttle
// engine reads. Counts are always recomputed from the log; there is no
// counter that could drift.
type ThrottleAttemptRepository interface {
	CountByIPWithin(ctx context.Context, ipID int64, window int64) (int, error)
	CountByFieldSince(ctx context.Context, fieldHash string, since int64) (int, error)
	LastSuccessTime(ctx context.Context, fieldHash string) (int64, error)
	FailureAgeAtOffset(ctx context.Context, fieldHash string, offset int) (int64, error)
}

// ThrottleIPRepository issues IP ban windows.
type ThrottleIPRepository interface {
	Ban(ctx context.Context, id int64, length int64) error
}

// ThrottleAccountRepository reads and issues account ban windows.
type ThrottleAccountRepository interface {
	BanRemaining(ctx context.Context, id int64) (int64, error)
	Ban(ctx context.Context, id int64, length int64) error
}

// ThrottleConfig holds the tunable throttling constants, ban times in
// seconds.
type ThrottleConfig struct {
	BanTimeIP          int64
	BanTimeAccount     int64
	MaxAttemptsIP      int
	MaxAttemptsAccount int
	WarningThreshold   int
}

// ThrottleService computes remaining attempts and active ban durations for
// IPs and accounts, and issues bans when thresholds are crossed.
type ThrottleService struct {
	attempts ThrottleAttemptRepository
	ips      ThrottleIPRepository
	accounts ThrottleAccountRepository
	config   ThrottleConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	metrics  *metrics.Metrics
}

func NewThrottleService(
	attempts ThrottleAttemptRepository,
	ips ThrottleIPRepository,
	accounts ThrottleAccountRepository,
	config ThrottleConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *ThrottleService {
	return &ThrottleService{
		attempts: attempts,
		ips:      ips,
		accounts: accounts,
		config:   config,
		logger:   logger,
		audit:    audit,
		metrics:  m,
	}
}

// CheckIP returns the remaining login attempts for an IP inside the
// trailing BanTimeIP window, banning the IP when the count is exhausted.
// The returned value can be zero or negative once the threshold is crossed.
func (s *ThrottleService) CheckIP(ctx context.Context, ipID int64) (int, error) {
	count, err := s.attempts.CountByIPWithin(ctx, ipID, s.config.BanTimeIP)
	if err != nil {
		s.logger.Error("failed to count IP attempts", slog.Int64("ip_id", ipID), slog.Any("error", err))
		return 0, fmt.Errorf("check ip throttle: %w", err)
	}

	remaining := s.config.MaxAttemptsIP - count
	if remaining <= 0 {
		if _, err := s.BanIP(ctx, ipID, s.config.BanTimeIP); err != nil {
			return remaining, err
		}
	}

	s.logger.Debug("IP throttle checked",
		slog.Int64("ip_id", ipID),
		slog.Int("remaining", remaining))

	return remaining, nil
}

// CheckAccount returns the remaining attempts and active ban countdown for
// an account or, when accountID is 0, for the unknown login identifier
// behind fieldHash. An active ban short-circuits to remaining 0. Otherwise
// failures are counted since the later of the last successful login and the
// start of the trailing BanTimeAccount window, and a ban is issued when the
// count is exhausted.
func (s *ThrottleService) CheckAccount(ctx context.Context, accountID int64, fieldHash string) (int, int64, error) {
	var banRemaining int64

	if accountID != 0 {
		var err error
		banRemaining, err = s.accounts.BanRemaining(ctx, accountID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to read account ban", slog.Int64("account_id", accountID), slog.Any("error", err))
				return 0, 0, fmt.Errorf("check account throttle: %w", err)
			}
			banRemaining = 0
		}
	}

	if banRemaining > 0 {
		return 0, banRemaining, nil
	}

	lastSuccess, err := s.attempts.LastSuccessTime(ctx, fieldHash)
	if err != nil {
		return 0, 0, fmt.Errorf("check account throttle: %w", err)
	}

	// Failures strictly before the last success never count.
	since := time.Now().Unix() - s.config.BanTimeAccount
	if lastSuccess > since {
		since = lastSuccess
	}

	count, err := s.attempts.CountByFieldSince(ctx, fieldHash, since)
	if err != nil {
		return 0, 0, fmt.Errorf("check account throttle: %w", err)
	}

	remaining := s.config.MaxAttemptsAccount - count
	if remaining <= 0 {
		banRemaining, err = s.BanAccount(ctx, accountID, s.config.BanTimeAccount)
		if err != nil {
			return remaining, 0, err
		}

		// Unknown accounts have no row to persist a ban on. Estimate how
		// far into the fresh window the flood already reaches by looking
		// at the attempt that overshot the limit, and report the shortened
		// countdown instead. Best effort: on any store error the plain ban
		// length stands.
		if accountID == 0 {
			age, ageErr := s.attempts.FailureAgeAtOffset(ctx, fieldHash, -remaining)
			if ageErr == nil {
				banRemaining -= age
			} else if !errors.Is(ageErr, models.ErrNotFound) {
				s.logger.Warn("pseudo-ban estimate unavailable", slog.Any("error", ageErr))
			}
		}
	}

	s.logger.Debug("account throttle checked",
		slog.Int64("account_id", accountID),
		slog.Int("remaining", remaining),
		slog.Int64("ban_remaining", banRemaining))

	return remaining, banRemaining, nil
}

// BanIP bans an IP for length seconds (BanTimeIP when length <= 0) and
// returns the applied length. Re-banning resets the window from now.
func (s *ThrottleService) BanIP(ctx context.Context, ipID int64, length int64) (int64, error) {
	if length <= 0 {
		length = s.config.BanTimeIP
	}

	if err := s.ips.Ban(ctx, ipID, length); err != nil {
		s.logger.Error("failed to ban IP", slog.Int64("ip_id", ipID), slog.Any("error", err))
		return length, fmt.Errorf("ban ip: %w", err)
	}

	s.audit.LogBan("ip", ipID, length)
	s.metrics.BansIssued.WithLabelValues("ip").Inc()

	return length, nil
}

// BanAccount bans an account for length seconds (BanTimeAccount when
// length <= 0) and returns the applied length. A zero accountID is a no-op
// that still reports the length, so callers handle known and unknown
// accounts uniformly.
func (s *ThrottleService) BanAccount(ctx context.Context, accountID int64, length int64) (int64, error) {
	if length <= 0 {
		length = s.config.BanTimeAccount
	}

	if accountID == 0 {
		return length, nil
	}

	if err := s.accounts.Ban(ctx, accountID, length); err != nil {
		s.logger.Error("failed to ban account", slog.Int64("account_id", accountID), slog.Any("error", err))
		return length, fmt.Errorf("ban account: %w", err)
	}

	s.audit.LogBan("account", accountID, length)
	s.metrics.BansIssued.WithLabelValues("account").Inc()

	return length, nil
}
