package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vet360/vet360/internal/auth"
	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/platform/db"
	"github.com/vet360/vet360/internal/shared"
)

const uniqueViolation = "23505"

// PGAccounts writes credentials and profiles in one PostgreSQL transaction.
type PGAccounts struct {
	pool *pgxpool.Pool
}

// NewPGAccounts constructs PGAccounts.
func NewPGAccounts(pool *pgxpool.Pool) *PGAccounts {
	return &PGAccounts{pool: pool}
}

// CreateAccount inserts both rows or neither. A duplicate email or uid maps to
// shared.ErrConflict.
func (a *PGAccounts) CreateAccount(ctx context.Context, cred auth.Credential, profile authz.Profile) error {
	err := db.WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		if err := auth.NewRepository(tx).Create(ctx, cred); err != nil {
			return err
		}
		return authz.NewPGProfileStore(tx).Insert(ctx, profile)
	})
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("users: create account %s: %w", cred.Email, shared.ErrConflict)
	}
	return fmt.Errorf("users: create account: %w", err)
}

var _ Accounts = (*PGAccounts)(nil)
