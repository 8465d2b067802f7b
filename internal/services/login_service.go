package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gatekeephq/gatekeep/internal/auth"
	"github.com/gatekeephq/gatekeep/internal/metrics"
	"github.com/gatekeephq/gatekeep/internal/models"
	pkgauth "github.com/gatekeephq/gatekeep/pkg/auth"
	"github.com/gatekeephq/gatekeep/pkg/hashutil"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
)

// Login result statuses. StatusBanned means the credentials may have been
// fine but the account or IP is inside an active ban window.
const (
	StatusBanned  = -1
	StatusFailed  = 0
	StatusSuccess = 1
)

// LoginAccountRepository is the account access the orchestrator needs.
type LoginAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmailAddress(ctx context.Context, address string) (*models.Account, error)
	Create(ctx context.Context, emailID int64, username, passwordHash string) (*models.Account, error)
	SetPasswordHash(ctx context.Context, id int64, passwordHash string) error
	TouchActivity(ctx context.Context, id int64) error
}

// LoginEmailRepository resolves email addresses to rows.
type LoginEmailRepository interface {
	GetOrCreate(ctx context.Context, address string) (*models.Email, error)
}

// AttemptRecorder appends to the login attempt log.
type AttemptRecorder interface {
	Record(ctx context.Context, fieldHash string, ipID int64, success int) (int64, error)
}

// Throttler is the ban state machine consulted after each recorded attempt.
type Throttler interface {
	CheckIP(ctx context.Context, ipID int64) (int, error)
	CheckAccount(ctx context.Context, accountID int64, fieldHash string) (int, int64, error)
}

// AccountInfo carries the stored account fields returned on a successful
// credential check.
type AccountInfo struct {
	ID             int64
	EmailID        int64
	Username       string
	PasswordEdited int64
	Created        int64
	LastSeen       int64
	Credits        int64
	Permission     int16
	Activated      bool
	BanUntil       int64
}

// LoginResult is the structured outcome of a login call.
type LoginResult struct {
	Account     *AccountInfo
	Warnings    []string
	Errors      []string
	Status      int
	AccessToken string
}

// LoginService orchestrates credential verification, attempt recording and
// throttle consultation.
type LoginService struct {
	accounts LoginAccountRepository
	emails   LoginEmailRepository
	attempts AttemptRecorder
	throttle Throttler
	tm       *auth.TokenManager
	timing   *auth.TimingDelay
	config   ThrottleConfig
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	metrics  *metrics.Metrics
}

func NewLoginService(
	accounts LoginAccountRepository,
	emails LoginEmailRepository,
	attempts AttemptRecorder,
	throttle Throttler,
	tm *auth.TokenManager,
	timing *auth.TimingDelay,
	config ThrottleConfig,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *LoginService {
	return &LoginService{
		accounts: accounts,
		emails:   emails,
		attempts: attempts,
		throttle: throttle,
		tm:       tm,
		timing:   timing,
		config:   config,
		logger:   logger,
		audit:    audit,
		metrics:  m,
	}
}

// Login verifies the supplied password for accountID (0 = unknown account)
// and assembles the structured result. When both ipID and rawField are set
// this is a real network attempt: it is recorded in the attempt log before
// either throttle check runs, so the attempt itself contributes to the
// count that may trigger a ban. Without them the call is an internal
// credential check and leaves no trace.
func (s *LoginService) Login(ctx context.Context, accountID int64, password string, ipID int64, rawField string) (*LoginResult, error) {
	start := time.Now()
	result := &LoginResult{Status: StatusFailed}

	var account *models.Account
	if accountID != 0 {
		var err error
		account, err = s.accounts.GetByID(ctx, accountID)
		if err != nil {
			if !errors.Is(err, models.ErrNotFound) {
				s.logger.Error("failed to fetch account", slog.Int64("account_id", accountID), slog.Any("error", err))
				return nil, fmt.Errorf("login: %w", err)
			}
			account = nil
		}
	}

	if account != nil && pkgauth.ComparePassword(account.PasswordHash, password) == nil {
		result.Status = StatusSuccess
		result.Account = &AccountInfo{
			ID:             account.ID,
			EmailID:        account.EmailID,
			Username:       account.Username,
			PasswordEdited: account.PasswordEdited,
			Created:        account.Created,
			LastSeen:       account.LastActivity,
			Credits:        account.Credits,
			Permission:     account.Permission,
			Activated:      account.Activated,
			BanUntil:       account.BanUntil,
		}
	} else {
		result.Errors = append(result.Errors, "Incorrect login details")
	}

	if ipID != 0 && rawField != "" {
		if err := s.recordAndThrottle(ctx, accountID, account, rawField, ipID, result); err != nil {
			return nil, err
		}
	}

	if result.Status == StatusSuccess {
		token, err := s.tm.GenerateAccessToken(account.ID, account.Username)
		if err != nil {
			s.logger.Error("failed to generate access token", slog.Int64("account_id", account.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		result.AccessToken = token

		if err := s.accounts.TouchActivity(ctx, account.ID); err != nil {
			s.logger.Warn("failed to update last activity", slog.Int64("account_id", account.ID), slog.Any("error", err))
		}
	}

	s.observe(accountID, ipID, result.Status)

	// An unknown account skips the hash comparison, so pad network attempts
	// to a floor that hides the difference.
	if ipID != 0 {
		s.timing.WaitFrom(start, result.Status == StatusSuccess)
	}

	return result, nil
}

// recordAndThrottle appends the attempt row and runs the IP and account
// throttle checks, mutating the result in place. An active account ban
// overwrites the status to StatusBanned even when credentials were correct.
func (s *LoginService) recordAndThrottle(ctx context.Context, accountID int64, account *models.Account, rawField string, ipID int64, result *LoginResult) error {
	fieldHash := hashutil.QuickHash(rawField)

	// Durably committed before the counts below, so the current attempt is
	// included in them. The status here is 0 or 1; the ban overwrite only
	// happens further down, so unknown-account failures land as plain
	// failures and count toward the IP window like any other.
	if _, err := s.attempts.Record(ctx, fieldHash, ipID, result.Status); err != nil {
		s.logger.Error("failed to record login attempt", slog.Int64("ip_id", ipID), slog.Any("error", err))
		return fmt.Errorf("login: %w", err)
	}

	ipRemaining, err := s.throttle.CheckIP(ctx, ipID)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if ipRemaining <= s.config.WarningThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("You have %d more login attempt%s until your IP is temporarily banned.",
				ipRemaining, plural(ipRemaining)))
	}

	accRemaining, banRemaining, err := s.throttle.CheckAccount(ctx, accountID, fieldHash)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if banRemaining > 0 {
		result.Status = StatusBanned
		result.Errors = append(result.Errors,
			fmt.Sprintf("Your account is disabled for another %d seconds.", banRemaining))
	} else if accRemaining <= s.config.WarningThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("You have %d more login attempt%s before this account is temporarily disabled.",
				accRemaining, plural(accRemaining)))
	}

	return nil
}

func (s *LoginService) observe(accountID, ipID int64, status int) {
	var label, event string
	switch status {
	case StatusSuccess:
		label, event = "success", "login_success"
	case StatusBanned:
		label, event = "banned", "login_banned"
	default:
		label, event = "failed", "login_failed"
	}
	s.metrics.LoginAttempts.WithLabelValues(label).Inc()
	s.audit.LogLoginAttempt(pkglogger.AuditEvent{
		EventType: event,
		AccountID: accountID,
		IPID:      ipID,
		Success:   status == StatusSuccess,
	})
}

// Register creates a new account for an email address. The address row is
// created on demand; the plaintext password is validated and hashed here,
// never stored.
func (s *LoginService) Register(ctx context.Context, emailAddress, password, username string) (*models.Account, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, err
	}

	email, err := s.emails.GetOrCreate(ctx, emailAddress)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	_, err = s.accounts.GetByEmailAddress(ctx, emailAddress)
	if err == nil {
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("register: %w", err)
	}

	passwordHash, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	account, err := s.accounts.Create(ctx, email.ID, username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("account created",
		slog.Int64("account_id", account.ID),
		slog.String("email", pkglogger.SanitizedEmail(emailAddress)))
	s.audit.LogLoginAttempt(pkglogger.AuditEvent{
		EventType: "account_registered",
		AccountID: account.ID,
		Success:   true,
	})

	return account, nil
}

// ChangePassword validates and stores a new password. The stored hash and
// password_edited change together, which silently invalidates every
// persistent session bound to the old credentials.
func (s *LoginService) ChangePassword(ctx context.Context, accountID int64, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return err
	}

	passwordHash, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.accounts.SetPasswordHash(ctx, accountID, passwordHash); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	s.logger.Info("password changed", slog.Int64("account_id", accountID))
	return nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
