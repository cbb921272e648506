package pg

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
)

// GetUser implements domain.UserDirectory.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, role, blocked FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.Role, &u.Blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) HasRole(ctx context.Context, id uuid.UUID, role string) (bool, error) {
	u, err := r.GetUser(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !u.Blocked && u.Role == role, nil
}

func (r *Repository) UpsertUser(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, role, blocked) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET email = $2, role = $3, blocked = $4
	`, u.ID, u.Email, u.Role, u.Blocked)
	return err
}
