package repositories

import (
	"context"

	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles persistent login session rows.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

func (r *SessionRepository) Create(ctx context.Context, session *models.PersistentSession) error {
	query := `
		INSERT INTO persistent_sessions (user_id, identifier, token_hash, created, updated)
		VALUES ($1, $2, $3, extract(epoch from now())::bigint, extract(epoch from now())::bigint)
		RETURNING id, created, updated
	`

	err := r.pool.QueryRow(ctx, query, session.UserID, session.Identifier, session.TokenHash).
		Scan(&session.ID, &session.Created, &session.Updated)
	return database.MapPostgresError(err)
}

func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PersistentSession, error) {
	query := `
		SELECT id, user_id, identifier, token_hash, created, updated
		FROM persistent_sessions WHERE token_hash = $1
	`

	var session models.PersistentSession
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID, &session.UserID, &session.Identifier,
		&session.TokenHash, &session.Created, &session.Updated,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &session, nil
}

// RotateToken replaces the stored token hash in place; the identifier and
// the row itself survive the rotation.
func (r *SessionRepository) RotateToken(ctx context.Context, id int64, newTokenHash string) error {
	query := `
		UPDATE persistent_sessions
		SET token_hash = $1, updated = extract(epoch from now())::bigint
		WHERE id = $2
	`

	result, err := r.pool.Exec(ctx, query, newTokenHash, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	query := `DELETE FROM persistent_sessions WHERE token_hash = $1`

	_, err := r.pool.Exec(ctx, query, tokenHash)
	return database.MapPostgresError(err)
}

// DeleteAllForUser removes every remembered session an account owns.
// Invoked on tampering detection and on explicit logout-everywhere.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM persistent_sessions WHERE user_id = $1`

	result, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}

// DeleteStale removes sessions that have not validated since the cutoff.
func (r *SessionRepository) DeleteStale(ctx context.Context, cutoff int64) (int64, error) {
	query := `DELETE FROM persistent_sessions WHERE updated < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
