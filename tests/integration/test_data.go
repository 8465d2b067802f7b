package integration

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/gatekeephq/gatekeep/internal/models"
	"github.com/gatekeephq/gatekeep/internal/repositories"
	pkgauth "github.com/gatekeephq/gatekeep/pkg/auth"
)

// TestCredentials generates unique account credentials.
func TestCredentials(suffix string) (email, username, password string) {
	email = fmt.Sprintf("test-%s-%s", suffix, gofakeit.Email())
	username = fmt.Sprintf("user-%s-%d", suffix, gofakeit.Number(1000, 9999))
	password = "TestPassword123!"
	return
}

// SeedAccount creates an email row and an account with a real bcrypt hash,
// returning the account and the plaintext password.
func SeedAccount(ctx context.Context, db *TestDB, suffix string) (*models.Account, string, error) {
	emailAddr, username, password := TestCredentials(suffix)

	emails := repositories.NewEmailRepository(db.DB)
	email, err := emails.GetOrCreate(ctx, emailAddr)
	if err != nil {
		return nil, "", fmt.Errorf("seed email: %w", err)
	}

	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("seed password hash: %w", err)
	}

	accounts := repositories.NewAccountRepository(db.DB)
	account, err := accounts.Create(ctx, email.ID, username, hash)
	if err != nil {
		return nil, "", fmt.Errorf("seed account: %w", err)
	}

	return account, password, nil
}

// SeedIP creates an IP row and returns it.
func SeedIP(ctx context.Context, db *TestDB) (*models.IPAddress, error) {
	ips := repositories.NewIPRepository(db.DB)
	return ips.GetOrCreate(ctx, gofakeit.IPv4Address())
}
