package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vet360/vet360/internal/platform/db"
	"github.com/vet360/vet360/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	Create(ctx context.Context, cred Credential) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	conn db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(conn db.DBTX) *PGRepository {
	return &PGRepository{conn: conn}
}

// FindByEmail fetches a credential by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	var cred Credential
	err := r.conn.QueryRow(ctx, `SELECT uid, email, password_hash, is_active, created_at, updated_at FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))).
		Scan(&cred.UID, &cred.Email, &cred.PasswordHash, &cred.IsActive, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("auth: find credential: %w", err)
	}
	return &cred, nil
}

// Create inserts a credential row.
func (r *PGRepository) Create(ctx context.Context, cred Credential) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO users (uid, email, password_hash, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		cred.UID, strings.ToLower(cred.Email), cred.PasswordHash, cred.IsActive, cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("auth: create credential: %w", err)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
