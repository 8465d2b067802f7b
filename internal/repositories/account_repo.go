package repositories

import (
	"context"
	"fmt"

	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = `id, email_id, username, password_hash, activated, permission, credits,
	ban_until, ban_count, password_edited, created, updated, last_activity`

// AccountRepository handles database operations for user accounts.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner supports scanning from both QueryRow and Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var username *string

	err := scanner.Scan(
		&account.ID, &account.EmailID, &username, &account.PasswordHash,
		&account.Activated, &account.Permission, &account.Credits,
		&account.BanUntil, &account.BanCount, &account.PasswordEdited,
		&account.Created, &account.Updated, &account.LastActivity,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	if username != nil {
		account.Username = *username
	}
	return &account, nil
}

// The lookup functions are deliberately separate per key rather than one
// polymorphic resolver; call sites pick the one matching their input.

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE id = $1`, accountColumns)
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM accounts WHERE username = $1`, accountColumns)
	return scanAccountRow(r.pool.QueryRow(ctx, query, username))
}

func (r *AccountRepository) GetByEmailAddress(ctx context.Context, address string) (*models.Account, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM accounts
		WHERE email_id = (SELECT id FROM emails WHERE address = $1)
	`, accountColumns)
	return scanAccountRow(r.pool.QueryRow(ctx, query, address))
}

// Create inserts a new account. The caller supplies an already-hashed
// password; created, updated and password_edited are stamped here.
func (r *AccountRepository) Create(ctx context.Context, emailID int64, username, passwordHash string) (*models.Account, error) {
	query := fmt.Sprintf(`
		INSERT INTO accounts (email_id, username, password_hash, permission,
			password_edited, created, updated, last_activity)
		VALUES ($1, $2, $3, $4,
			extract(epoch from now())::bigint, extract(epoch from now())::bigint,
			extract(epoch from now())::bigint, extract(epoch from now())::bigint)
		RETURNING %s
	`, accountColumns)

	var usernameParam *string
	if username != "" {
		usernameParam = &username
	}

	return scanAccountRow(r.pool.QueryRow(ctx, query, emailID, usernameParam, passwordHash, models.PermissionRegistered))
}

// SetPasswordHash is the single mutator for stored credentials: it always
// stamps password_edited alongside the new hash, which in turn changes the
// account identifier and invalidates every persistent session.
func (r *AccountRepository) SetPasswordHash(ctx context.Context, id int64, passwordHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $1,
			password_edited = extract(epoch from now())::bigint,
			updated = extract(epoch from now())::bigint
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Ban sets the ban window to now+length and increments the ban counter.
func (r *AccountRepository) Ban(ctx context.Context, id int64, length int64) error {
	query := `
		UPDATE accounts
		SET ban_until = extract(epoch from now())::bigint + $1,
			ban_count = ban_count + 1,
			updated = extract(epoch from now())::bigint
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, length, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Unban clears any active ban window without touching the ban counter.
func (r *AccountRepository) Unban(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET ban_until = 0, updated = extract(epoch from now())::bigint
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// BanRemaining returns the seconds left on an account's ban window, 0 if
// no ban is active.
func (r *AccountRepository) BanRemaining(ctx context.Context, id int64) (int64, error) {
	query := `
		SELECT GREATEST(ban_until, extract(epoch from now())::bigint) - extract(epoch from now())::bigint
		FROM accounts WHERE id = $1
	`

	var remaining int64
	err := r.pool.QueryRow(ctx, query, id).Scan(&remaining)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return remaining, nil
}

func (r *AccountRepository) Activate(ctx context.Context, id int64) error {
	query := `
		UPDATE accounts
		SET activated = TRUE, updated = extract(epoch from now())::bigint
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// TouchActivity refreshes last_activity to the store's current time.
func (r *AccountRepository) TouchActivity(ctx context.Context, id int64) error {
	query := `UPDATE accounts SET last_activity = extract(epoch from now())::bigint WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)
	return database.MapPostgresError(err)
}
