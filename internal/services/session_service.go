package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatekeephq/gatekeep/internal/metrics"
	"github.com/gatekeephq/gatekeep/internal/models"
	pkgauth "github.com/gatekeephq/gatekeep/pkg/auth"
	"github.com/gatekeephq/gatekeep/pkg/hashutil"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
)

// SessionRepository is the persistent session storage the rotator drives.
type SessionRepository interface {
	Create(ctx context.Context, session *models.PersistentSession) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PersistentSession, error)
	RotateToken(ctx context.Context, id int64, newTokenHash string) error
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteAllForUser(ctx context.Context, userID int64) (int64, error)
}

// SessionAccountRepository resolves the owning account of a session.
type SessionAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

// SessionEmailRepository resolves the account's email address, needed to
// derive the live account identifier.
type SessionEmailRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Email, error)
}

// SessionService issues, validates and rotates persistent login sessions.
// The identifier is stable per device lineage; the token changes on every
// successful validation.
type SessionService struct {
	sessions SessionRepository
	accounts SessionAccountRepository
	emails   SessionEmailRepository
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
	metrics  *metrics.Metrics
}

func NewSessionService(
	sessions SessionRepository,
	accounts SessionAccountRepository,
	emails SessionEmailRepository,
	logger *slog.Logger,
	audit *pkglogger.AuditLogger,
	m *metrics.Metrics,
) *SessionService {
	return &SessionService{
		sessions: sessions,
		accounts: accounts,
		emails:   emails,
		logger:   logger,
		audit:    audit,
		metrics:  m,
	}
}

// Issue creates a new persistent session for an account and returns it with
// the plaintext token for the caller to set in the client's cookie. Only
// the token's quick hash is stored.
func (s *SessionService) Issue(ctx context.Context, account *models.Account) (*models.PersistentSession, string, error) {
	email, err := s.emails.GetByID(ctx, account.EmailID)
	if err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}

	token := pkgauth.GenerateToken()
	session := &models.PersistentSession{
		UserID:     account.ID,
		Identifier: hashutil.QuickHash(pkgauth.GenerateToken()) + account.Identifier(email.Address),
		TokenHash:  hashutil.QuickHash(token),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("issue session: %w", err)
	}

	s.audit.LogSessionEvent("session_issued", account.ID, true)
	s.logger.Info("persistent session issued", slog.Int64("account_id", account.ID))

	return session, token, nil
}

// Validate checks a returning client's token and identifier. On success the
// token is rotated and the new value returned for the caller to set in the
// client's cookie. Every failure surfaces as ErrSessionInvalid; store
// outages surface as their own error.
//
// An identifier mismatch while the stored identifier is still bound to the
// account's live secret state means a token was presented outside its
// lineage (theft, or a replayed cookie that already rotated elsewhere); in
// that case every remembered session the account owns is destroyed before
// failing. A stale second half just fails: anyone could force mass logouts
// otherwise by replaying cookies from before a password change.
func (s *SessionService) Validate(ctx context.Context, token, identifier string) (*models.PersistentSession, string, error) {
	session, err := s.sessions.GetByTokenHash(ctx, hashutil.QuickHash(token))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Covers token replay after rotation: the old hash no longer
			// matches any row.
			return nil, "", models.ErrSessionInvalid
		}
		return nil, "", fmt.Errorf("validate session: %w", err)
	}

	live, err := s.liveIdentifier(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, "", models.ErrSessionInvalid
		}
		return nil, "", fmt.Errorf("validate session: %w", err)
	}

	if session.Identifier != identifier {
		if session.AccountHalf() == live {
			if _, err := s.sessions.DeleteAllForUser(ctx, session.UserID); err != nil {
				return nil, "", fmt.Errorf("validate session: %w", err)
			}
			s.metrics.SessionInvalidations.Inc()
			s.audit.LogSessionEvent("sessions_invalidated", session.UserID, false)
			s.logger.Warn("identifier mismatch, all sessions destroyed",
				slog.Int64("account_id", session.UserID))
		}
		return nil, "", models.ErrSessionInvalid
	}

	// The password or email may have changed between issuing the cookie
	// and this check.
	if session.AccountHalf() != live {
		return nil, "", models.ErrSessionInvalid
	}

	next := pkgauth.GenerateToken()
	if err := s.sessions.RotateToken(ctx, session.ID, hashutil.QuickHash(next)); err != nil {
		return nil, "", fmt.Errorf("validate session: %w", err)
	}
	session.TokenHash = hashutil.QuickHash(next)

	s.metrics.SessionRotations.Inc()
	s.audit.LogSessionEvent("session_rotated", session.UserID, true)

	return session, next, nil
}

// Revoke destroys the session behind a token, if any. Unknown tokens are
// not an error.
func (s *SessionService) Revoke(ctx context.Context, token string) error {
	if err := s.sessions.DeleteByTokenHash(ctx, hashutil.QuickHash(token)); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// RevokeAll destroys every remembered session an account owns.
func (s *SessionService) RevokeAll(ctx context.Context, accountID int64) error {
	n, err := s.sessions.DeleteAllForUser(ctx, accountID)
	if err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	s.audit.LogSessionEvent("sessions_revoked", accountID, true)
	s.logger.Info("sessions revoked", slog.Int64("account_id", accountID), slog.Int64("count", n))
	return nil
}

func (s *SessionService) liveIdentifier(ctx context.Context, accountID int64) (string, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	email, err := s.emails.GetByID(ctx, account.EmailID)
	if err != nil {
		return "", err
	}
	return account.Identifier(email.Address), nil
}
