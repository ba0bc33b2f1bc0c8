package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homebase-backend/internal/models"
)

type HomeRepo struct {
	pool *pgxpool.Pool
}

func NewHomeRepo(pool *pgxpool.Pool) *HomeRepo {
	return &HomeRepo{pool: pool}
}

// PrimaryHome returns the owner's primary home, falling back to their oldest one.
func (r *HomeRepo) PrimaryHome(ctx context.Context, ownerID uuid.UUID) (*models.Home, error) {
	h := &models.Home{}
	query := `SELECT id, owner_id, address, is_primary, created_at FROM homes
		WHERE owner_id = $1 ORDER BY is_primary DESC, created_at ASC LIMIT 1`

	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&h.ID, &h.OwnerID, &h.Address, &h.IsPrimary, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// OwnedHome returns the home only when it belongs to ownerID.
func (r *HomeRepo) OwnedHome(ctx context.Context, ownerID, homeID uuid.UUID) (*models.Home, error) {
	h := &models.Home{}
	query := `SELECT id, owner_id, address, is_primary, created_at FROM homes
		WHERE id = $1 AND owner_id = $2`

	err := r.pool.QueryRow(ctx, query, homeID, ownerID).Scan(&h.ID, &h.OwnerID, &h.Address, &h.IsPrimary, &h.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}
