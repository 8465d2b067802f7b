package services

import (
	"context"
	"fmt"
	"log/slog"

	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
)

// AdminAccountRepository is the subset of account operations the admin
// surface needs.
type AdminAccountRepository interface {
	Unban(ctx context.Context, id int64) error
}

// AdminIPRepository is the subset of IP operations the admin surface needs.
type AdminIPRepository interface {
	Unban(ctx context.Context, id int64) error
}

// Banner issues bans; satisfied by ThrottleService.
type Banner interface {
	BanIP(ctx context.Context, ipID int64, length int64) (int64, error)
	BanAccount(ctx context.Context, accountID int64, length int64) (int64, error)
}

// AdminService exposes the manual ban/unban calls. Bans go through the
// throttle engine so manual and automatic bans behave identically; unbans
// clear the window directly.
type AdminService struct {
	accounts AdminAccountRepository
	ips      AdminIPRepository
	throttle Banner
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

func NewAdminService(
	accounts AdminAccountRepository,
	ips AdminIPRepository,
	throttle Banner,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
) *AdminService {
	return &AdminService{
		accounts: accounts,
		ips:      ips,
		throttle: throttle,
		logger:   logger,
		audit:    audit,
	}
}

// BanAccount bans an account for length seconds (0 = configured default)
// and returns the applied length.
func (s *AdminService) BanAccount(ctx context.Context, accountID int64, length int64) (int64, error) {
	applied, err := s.throttle.BanAccount(ctx, accountID, length)
	if err != nil {
		return 0, fmt.Errorf("admin ban account: %w", err)
	}
	s.logger.Info("account banned by admin",
		slog.Int64("account_id", accountID),
		slog.Int64("length", applied))
	return applied, nil
}

// BanIP bans an IP for length seconds (0 = configured default) and returns
// the applied length.
func (s *AdminService) BanIP(ctx context.Context, ipID int64, length int64) (int64, error) {
	applied, err := s.throttle.BanIP(ctx, ipID, length)
	if err != nil {
		return 0, fmt.Errorf("admin ban ip: %w", err)
	}
	s.logger.Info("IP banned by admin",
		slog.Int64("ip_id", ipID),
		slog.Int64("length", applied))
	return applied, nil
}

// UnbanAccount clears an account's ban window. The ban counter is kept so
// escalation history survives a manual unban.
func (s *AdminService) UnbanAccount(ctx context.Context, accountID int64) error {
	if err := s.accounts.Unban(ctx, accountID); err != nil {
		return fmt.Errorf("admin unban account: %w", err)
	}
	s.audit.LogBan("account_unban", accountID, 0)
	return nil
}

// UnbanIP clears an IP's ban window.
func (s *AdminService) UnbanIP(ctx context.Context, ipID int64) error {
	if err := s.ips.Unban(ctx, ipID); err != nil {
		return fmt.Errorf("admin unban ip: %w", err)
	}
	s.audit.LogBan("ip_unban", ipID, 0)
	return nil
}
