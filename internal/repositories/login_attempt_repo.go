package repositories

import (
	"context"
	"errors"

	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository handles the append-only login attempt log.
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Record appends an attempt row stamped with the store's current time and
// returns its id. Rows are never updated afterwards.
func (r *LoginAttemptRepository) Record(ctx context.Context, fieldHash string, ipID int64, success int) (int64, error) {
	query := `
		INSERT INTO login_attempts (field_hash, ip_id, attempt_time, success)
		VALUES ($1, $2, extract(epoch from now())::bigint, $3)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query, fieldHash, ipID, success).Scan(&id)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return id, nil
}

// CountByIPWithin counts attempts from an IP inside the trailing window.
// Both failures and successes count (success >= 0); only unknown-account
// markers are excluded.
func (r *LoginAttemptRepository) CountByIPWithin(ctx context.Context, ipID int64, window int64) (int, error) {
	query := `
		SELECT count(*) FROM login_attempts
		WHERE success >= 0
		  AND attempt_time > extract(epoch from now())::bigint - $1
		  AND ip_id = $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, window, ipID).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// CountByFieldSince counts attempts against a login identifier strictly
// after the given unix-seconds boundary.
func (r *LoginAttemptRepository) CountByFieldSince(ctx context.Context, fieldHash string, since int64) (int, error) {
	query := `
		SELECT count(*) FROM login_attempts
		WHERE attempt_time > $1 AND field_hash = $2
	`

	var count int
	err := r.pool.QueryRow(ctx, query, since, fieldHash).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}

// LastSuccessTime returns the attempt_time of the most recent successful
// attempt for a login identifier, 0 if there has never been one.
func (r *LoginAttemptRepository) LastSuccessTime(ctx context.Context, fieldHash string) (int64, error) {
	query := `
		SELECT attempt_time FROM login_attempts
		WHERE success = 1 AND field_hash = $1
		ORDER BY attempt_time DESC
		LIMIT 1
	`

	var t int64
	err := r.pool.QueryRow(ctx, query, fieldHash).Scan(&t)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrNotFound) {
			return 0, nil
		}
		return 0, mapped
	}
	return t, nil
}

// FailureAgeAtOffset returns now - attempt_time for the nth most recent
// non-successful attempt against a login identifier (offset 0 = most
// recent). Used to estimate the pseudo-ban for unknown accounts.
func (r *LoginAttemptRepository) FailureAgeAtOffset(ctx context.Context, fieldHash string, offset int) (int64, error) {
	query := `
		SELECT extract(epoch from now())::bigint - attempt_time FROM login_attempts
		WHERE success < 1 AND field_hash = $1
		ORDER BY attempt_time DESC
		LIMIT 1 OFFSET $2
	`

	var age int64
	err := r.pool.QueryRow(ctx, query, fieldHash, offset).Scan(&age)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return age, nil
}

// DeleteOlderThan removes attempt rows older than the cutoff. Retention
// only; throttling never depends on deletion since windows age rows out.
func (r *LoginAttemptRepository) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	query := `DELETE FROM login_attempts WHERE attempt_time < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
