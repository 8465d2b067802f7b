package repositories

import (
	"context"
	"errors"

	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailRepository handles the shared email address table.
type EmailRepository struct {
	pool     *pgxpool.Pool
	validate *validator.Validate
}

func NewEmailRepository(db *database.DB) *EmailRepository {
	return &EmailRepository{pool: db.Pool, validate: validator.New()}
}

func (r *EmailRepository) GetByID(ctx context.Context, id int64) (*models.Email, error) {
	query := `SELECT id, address, created, updated FROM emails WHERE id = $1`

	var email models.Email
	err := r.pool.QueryRow(ctx, query, id).Scan(&email.ID, &email.Address, &email.Created, &email.Updated)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &email, nil
}

func (r *EmailRepository) GetByAddress(ctx context.Context, address string) (*models.Email, error) {
	query := `SELECT id, address, created, updated FROM emails WHERE address = $1`

	var email models.Email
	err := r.pool.QueryRow(ctx, query, address).Scan(&email.ID, &email.Address, &email.Created, &email.Updated)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &email, nil
}

// GetOrCreate returns the row for an address, inserting it if it does not
// exist yet. The address is format-validated before it touches the store.
func (r *EmailRepository) GetOrCreate(ctx context.Context, address string) (*models.Email, error) {
	if err := r.validate.Var(address, "required,email"); err != nil {
		return nil, models.ErrInvalidEmail
	}

	email, err := r.GetByAddress(ctx, address)
	if err == nil {
		return email, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// Upsert so two concurrent first-time logins for the same address
	// cannot race each other into a unique violation.
	query := `
		INSERT INTO emails (address, created, updated)
		VALUES ($1, extract(epoch from now())::bigint, extract(epoch from now())::bigint)
		ON CONFLICT (address) DO UPDATE SET updated = emails.updated
		RETURNING id, address, created, updated
	`

	var created models.Email
	err = r.pool.QueryRow(ctx, query, address).Scan(&created.ID, &created.Address, &created.Created, &created.Updated)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &created, nil
}
