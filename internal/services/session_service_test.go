package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/gatekeephq/gatekeep/internal/services"
	"github.com/gatekeephq/gatekeep/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockSessionRepository keeps session rows in memory, keyed by token hash
// the way the real table is queried.
type MockSessionRepository struct {
	nextID   int64
	sessions map[string]*models.PersistentSession

	createErr    error
	deleteAllFor int64
	deleteAllN   int64
}

func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{sessions: make(map[string]*models.PersistentSession)}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *models.PersistentSession) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	session.ID = m.nextID
	session.Created = time.Now().Unix()
	session.Updated = session.Created
	copied := *session
	m.sessions[session.TokenHash] = &copied
	return nil
}

func (m *MockSessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PersistentSession, error) {
	session, ok := m.sessions[tokenHash]
	if !ok {
		return nil, models.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

func (m *MockSessionRepository) RotateToken(ctx context.Context, id int64, newTokenHash string) error {
	for hash, session := range m.sessions {
		if session.ID == id {
			delete(m.sessions, hash)
			session.TokenHash = newTokenHash
			session.Updated = time.Now().Unix()
			m.sessions[newTokenHash] = session
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MockSessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	delete(m.sessions, tokenHash)
	return nil
}

func (m *MockSessionRepository) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	m.deleteAllFor = userID
	var n int64
	for hash, session := range m.sessions {
		if session.UserID == userID {
			delete(m.sessions, hash)
			n++
		}
	}
	m.deleteAllN = n
	return n, nil
}

// MockSessionAccountRepository serves one account by ID.
type MockSessionAccountRepository struct {
	account *models.Account
}

func (m *MockSessionAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if m.account == nil || m.account.ID != id {
		return nil, models.ErrNotFound
	}
	return m.account, nil
}

// MockSessionEmailRepository serves one email row by ID.
type MockSessionEmailRepository struct {
	email *models.Email
}

func (m *MockSessionEmailRepository) GetByID(ctx context.Context, id int64) (*models.Email, error) {
	if m.email == nil || m.email.ID != id {
		return nil, models.ErrNotFound
	}
	return m.email, nil
}

func newSessionFixture() (*services.SessionService, *MockSessionRepository, *models.Account) {
	account := testAccount()
	sessions := NewMockSessionRepository()
	accounts := &MockSessionAccountRepository{account: account}
	emails := &MockSessionEmailRepository{email: &models.Email{ID: account.EmailID, Address: "alice@example.com"}}
	service := services.NewSessionService(sessions, accounts, emails, testLogger(), testAudit(), testMetrics())
	return service, sessions, account
}

func TestSessionIssue_IdentifierLayout(t *testing.T) {
	service, sessions, account := newSessionFixture()

	session, token, err := service.Issue(context.Background(), account)

	require.NoError(t, err)
	assert.Len(t, session.Identifier, models.IdentifierLength)
	assert.Len(t, token, 32)
	assert.Equal(t, hashutil.QuickHash(token), session.TokenHash)
	assert.Equal(t, account.Identifier("alice@example.com"), session.AccountHalf())

	stored, err := sessions.GetByTokenHash(context.Background(), session.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, account.ID, stored.UserID)
}

func TestSessionIssue_SeedsDiffer(t *testing.T) {
	service, _, account := newSessionFixture()

	first, _, err := service.Issue(context.Background(), account)
	require.NoError(t, err)
	second, _, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	assert.NotEqual(t, first.SeedHalf(), second.SeedHalf())
	assert.Equal(t, first.AccountHalf(), second.AccountHalf())
}

func TestSessionValidate_RotatesToken(t *testing.T) {
	service, _, account := newSessionFixture()
	issued, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	validated, next, err := service.Validate(context.Background(), token, issued.Identifier)

	require.NoError(t, err)
	assert.Equal(t, issued.ID, validated.ID)
	assert.Equal(t, issued.Identifier, validated.Identifier)
	assert.NotEqual(t, token, next)

	// The replaced token must no longer resolve.
	_, _, err = service.Validate(context.Background(), token, issued.Identifier)
	assert.ErrorIs(t, err, models.ErrSessionInvalid)

	// The new one validates and rotates again.
	_, third, err := service.Validate(context.Background(), next, issued.Identifier)
	require.NoError(t, err)
	assert.NotEqual(t, next, third)
}

func TestSessionValidate_UnknownToken(t *testing.T) {
	service, _, _ := newSessionFixture()

	_, _, err := service.Validate(context.Background(), "deadbeefdeadbeefdeadbeefdeadbeef", "x")

	assert.ErrorIs(t, err, models.ErrSessionInvalid)
}

func TestSessionValidate_MismatchWithLiveHalfDestroysAll(t *testing.T) {
	service, sessions, account := newSessionFixture()
	issued, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)
	_, _, err = service.Issue(context.Background(), account)
	require.NoError(t, err)

	// Right token, wrong identifier, while the stored identifier is still
	// bound to the account's live secrets: treated as a stolen token.
	wrong := "00000000000000000000000000000000" + issued.AccountHalf()
	_, _, err = service.Validate(context.Background(), token, wrong)

	assert.ErrorIs(t, err, models.ErrSessionInvalid)
	assert.Equal(t, account.ID, sessions.deleteAllFor)
	assert.Equal(t, int64(2), sessions.deleteAllN)
	assert.Empty(t, sessions.sessions)
}

func TestSessionValidate_MismatchWithStaleHalfFailsQuietly(t *testing.T) {
	service, sessions, account := newSessionFixture()
	issued, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	// Password changed after the cookie was set: the stored half no longer
	// matches the live one, so a mismatch must not nuke other sessions.
	account.PasswordHash = "different-hash"

	wrong := "00000000000000000000000000000000" + issued.AccountHalf()
	_, _, err = service.Validate(context.Background(), token, wrong)

	assert.ErrorIs(t, err, models.ErrSessionInvalid)
	assert.Equal(t, int64(0), sessions.deleteAllFor)
	assert.Len(t, sessions.sessions, 1)
}

func TestSessionValidate_PasswordChangeInvalidates(t *testing.T) {
	service, sessions, account := newSessionFixture()
	issued, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	account.PasswordHash = "different-hash"

	_, _, err = service.Validate(context.Background(), token, issued.Identifier)

	assert.ErrorIs(t, err, models.ErrSessionInvalid)
	// Stale sessions fail but are not mass-destroyed.
	assert.Equal(t, int64(0), sessions.deleteAllFor)
}

func TestSessionValidate_DeletedAccountInvalidates(t *testing.T) {
	service, _, account := newSessionFixture()
	issued, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	account.ID = 999 // the lookup by the session's user ID now misses

	_, _, err = service.Validate(context.Background(), token, issued.Identifier)

	assert.ErrorIs(t, err, models.ErrSessionInvalid)
}

func TestSessionRevoke(t *testing.T) {
	service, sessions, account := newSessionFixture()
	_, token, err := service.Issue(context.Background(), account)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(context.Background(), token))
	assert.Empty(t, sessions.sessions)

	// Revoking an unknown token is not an error.
	assert.NoError(t, service.Revoke(context.Background(), token))
}

func TestSessionRevokeAll(t *testing.T) {
	service, sessions, account := newSessionFixture()
	_, _, err := service.Issue(context.Background(), account)
	require.NoError(t, err)
	_, _, err = service.Issue(context.Background(), account)
	require.NoError(t, err)

	require.NoError(t, service.RevokeAll(context.Background(), account.ID))
	assert.Empty(t, sessions.sessions)
}
