package repositories

import (
	"context"

	"github.com/gatekeephq/gatekeep/internal/database"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IPRepository handles ban state rows for client IPs.
type IPRepository struct {
	pool *pgxpool.Pool
}

func NewIPRepository(db *database.DB) *IPRepository {
	return &IPRepository{pool: db.Pool}
}

func (r *IPRepository) GetByID(ctx context.Context, id int64) (*models.IPAddress, error) {
	query := `SELECT id, address, ban_until, ban_count, created FROM ip_addresses WHERE id = $1`

	var ip models.IPAddress
	err := r.pool.QueryRow(ctx, query, id).Scan(&ip.ID, &ip.Address, &ip.BanUntil, &ip.BanCount, &ip.Created)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &ip, nil
}

// GetOrCreate returns the row for an address, creating it lazily on first
// observed attempt.
func (r *IPRepository) GetOrCreate(ctx context.Context, address string) (*models.IPAddress, error) {
	query := `
		INSERT INTO ip_addresses (address, created)
		VALUES ($1, extract(epoch from now())::bigint)
		ON CONFLICT (address) DO UPDATE SET address = EXCLUDED.address
		RETURNING id, address, ban_until, ban_count, created
	`

	var ip models.IPAddress
	err := r.pool.QueryRow(ctx, query, address).Scan(&ip.ID, &ip.Address, &ip.BanUntil, &ip.BanCount, &ip.Created)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &ip, nil
}

// Ban sets the ban window to now+length and increments the ban counter.
// Re-banning inside an active window simply resets the expiry from now.
func (r *IPRepository) Ban(ctx context.Context, id int64, length int64) error {
	query := `
		UPDATE ip_addresses
		SET ban_until = extract(epoch from now())::bigint + $1, ban_count = ban_count + 1
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
func (r *IPRepository) Unban(ctx context.Context, id int64) error {
	query := `UPDATE ip_addresses SET ban_until = 0 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
