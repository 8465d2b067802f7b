package integration

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gatekeephq/gatekeep/internal/auth"
	"github.com/gatekeephq/gatekeep/internal/metrics"
	"github.com/gatekeephq/gatekeep/internal/repositories"
	"github.com/gatekeephq/gatekeep/internal/services"
	pkglogger "github.com/gatekeephq/gatekeep/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLoginStack wires the real repositories into the throttle engine and
// the login orchestrator, with a tight attempt budget so the ban path is
// reachable in a handful of iterations.
func newLoginStack(db *TestDB) (*services.LoginService, *services.SessionService) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	audit := pkglogger.NewAuditLogger(logger)
	m := metrics.New()

	accounts := repositories.NewAccountRepository(db.DB)
	emails := repositories.NewEmailRepository(db.DB)
	attempts := repositories.NewLoginAttemptRepository(db.DB)
	sessions := repositories.NewSessionRepository(db.DB)

	config := services.ThrottleConfig{
		BanTimeIP:          600,
		BanTimeAccount:     3600,
		MaxAttemptsIP:      20,
		MaxAttemptsAccount: 5,
		WarningThreshold:   3,
	}

	throttle := services.NewThrottleService(
		attempts, repositories.NewIPRepository(db.DB), accounts,
		config, logger, audit, m,
	)
	tm := auth.NewTokenManager("integration-test-secret-hs256-key", 15*time.Minute)
	timing := auth.NewTimingDelay(auth.TimingConfig{})
	login := services.NewLoginService(accounts, emails, attempts, throttle, tm, timing, config, logger, audit, m)
	session := services.NewSessionService(sessions, accounts, emails, logger, audit, m)
	return login, session
}

func TestLoginFlow_FailuresEscalateToBan(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	account, password, err := SeedAccount(ctx, db, "flow")
	require.NoError(t, err)
	ip, err := SeedIP(ctx, db)
	require.NoError(t, err)

	login, _ := newLoginStack(db)

	// Attempts 2 through 4 fall at remaining 3, 2, 1 and warn.
	var fourth *services.LoginResult
	for i := 0; i < 4; i++ {
		fourth, err = login.Login(ctx, account.ID, "wrong-password", ip.ID, account.Username)
		require.NoError(t, err)
	}

	assert.Equal(t, services.StatusFailed, fourth.Status)
	assert.Contains(t, fourth.Warnings,
		"You have 1 more login attempt before this account is temporarily disabled.")

	// The fifth attempt exhausts the budget and is reported as banned on
	// the spot.
	fifth, err := login.Login(ctx, account.ID, "wrong-password", ip.ID, account.Username)
	require.NoError(t, err)
	assert.Equal(t, services.StatusBanned, fifth.Status)

	// The ban holds even for the correct password.
	result, err := login.Login(ctx, account.ID, password, ip.ID, account.Username)
	require.NoError(t, err)
	assert.Equal(t, services.StatusBanned, result.Status)
	require.Len(t, result.Errors, 1)
	assert.Regexp(t, `^Your account is disabled for another \d+ seconds\.$`, result.Errors[0])
	assert.Empty(t, result.AccessToken)
}

func TestLoginFlow_UnknownAccountFloodBansIP(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	ip, err := SeedIP(ctx, db)
	require.NoError(t, err)

	login, _ := newLoginStack(db)

	// Nobody owns this username; the attempts must still burn through the
	// IP budget (20 in this stack). The account side crosses into its
	// pseudo-ban along the way, which must not stop the IP counting.
	for i := 0; i < 20; i++ {
		result, err := login.Login(ctx, 0, "wrong-password", ip.ID, "no-such-user")
		require.NoError(t, err)
		require.NotEqual(t, services.StatusSuccess, result.Status)
	}

	banned, err := repositories.NewIPRepository(db.DB).GetByID(ctx, ip.ID)
	require.NoError(t, err)
	assert.True(t, banned.Banned(time.Now().Unix()))
	assert.Equal(t, 1, banned.BanCount)
}

func TestLoginFlow_SuccessResetsFailureWindow(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	account, password, err := SeedAccount(ctx, db, "reset")
	require.NoError(t, err)
	ip, err := SeedIP(ctx, db)
	require.NoError(t, err)

	login, _ := newLoginStack(db)

	for i := 0; i < 3; i++ {
		_, err = login.Login(ctx, account.ID, "wrong-password", ip.ID, account.Username)
		require.NoError(t, err)
	}

	result, err := login.Login(ctx, account.ID, password, ip.ID, account.Username)
	require.NoError(t, err)
	require.Equal(t, services.StatusSuccess, result.Status)
	assert.NotEmpty(t, result.AccessToken)

	// Counting restarts after the success, so the next failure sees a full
	// budget again (minus itself).
	failed, err := login.Login(ctx, account.ID, "wrong-password", ip.ID, account.Username)
	require.NoError(t, err)
	assert.Equal(t, services.StatusFailed, failed.Status)
	assert.NotContains(t, failed.Warnings,
		"You have 0 more login attempts before this account is temporarily disabled.")
}

func TestLoginFlow_SessionRotationAgainstStore(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	account, _, err := SeedAccount(ctx, db, "rotate")
	require.NoError(t, err)

	_, sessions := newLoginStack(db)

	issued, token, err := sessions.Issue(ctx, account)
	require.NoError(t, err)

	_, next, err := sessions.Validate(ctx, token, issued.Identifier)
	require.NoError(t, err)
	assert.NotEqual(t, token, next)

	// The superseded token must be dead.
	_, _, err = sessions.Validate(ctx, token, issued.Identifier)
	assert.Error(t, err)
}
