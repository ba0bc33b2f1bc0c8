package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homebase-backend/internal/models"
)

type ProviderRepo struct {
	pool *pgxpool.Pool
}

func NewProviderRepo(pool *pgxpool.Pool) *ProviderRepo {
	return &ProviderRepo{pool: pool}
}

// Match calls the match_providers database function.
func (r *ProviderRepo) Match(ctx context.Context, serviceType string, homeID *uuid.UUID, limit int) ([]models.MatchedProvider, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT org_id, name, trust_score FROM match_providers($1, $2, $3)",
		serviceType, homeID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []models.MatchedProvider
	for rows.Next() {
		var m models.MatchedProvider
		if err := rows.Scan(&m.OrgID, &m.Name, &m.TrustScore); err != nil {
			return nil, err
		}
		matched = append(matched, m)
	}
	return matched, rows.Err()
}

// ClientDetails returns a client the organization has worked with.
func (r *ProviderRepo) ClientDetails(ctx context.Context, orgID, clientID uuid.UUID) (*models.ClientDetails, error) {
	c := &models.ClientDetails{}
	query := `SELECT u.id, u.full_name, u.email, u.phone,
		(SELECT h.address FROM homes h WHERE h.owner_id = u.id ORDER BY h.is_primary DESC, h.created_at LIMIT 1),
		COUNT(j.id), MAX(j.starts_at)
		FROM users u
		JOIN scheduled_jobs j ON j.client_id = u.id AND j.org_id = $1
		WHERE u.id = $2
		GROUP BY u.id`

	err := r.pool.QueryRow(ctx, query, orgID, clientID).Scan(
		&c.ClientID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TotalJobs, &c.LastServiceAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Schedule lists the organization's jobs starting in [from, to).
func (r *ProviderRepo) Schedule(ctx context.Context, orgID uuid.UUID, from, to time.Time) ([]*models.ScheduledJob, error) {
	query := `SELECT j.id, j.request_id, u.full_name, sr.category, j.starts_at, j.ends_at, j.status
		FROM scheduled_jobs j
		JOIN users u ON u.id = j.client_id
		JOIN service_requests sr ON sr.id = j.request_id
		WHERE j.org_id = $1 AND j.starts_at >= $2 AND j.starts_at < $3
		ORDER BY j.starts_at`

	rows, err := r.pool.Query(ctx, query, orgID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ScheduledJob
	for rows.Next() {
		j := &models.ScheduledJob{}
		if err := rows.Scan(&j.ID, &j.RequestID, &j.ClientName, &j.Category, &j.StartsAt, &j.EndsAt, &j.Status); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// OpenJobs lists pending requests routed to the organization that are not yet scheduled.
func (r *ProviderRepo) OpenJobs(ctx context.Context, orgID uuid.UUID) ([]*models.OpenJob, error) {
	query := `SELECT sr.id, sr.category, sr.ai_summary, sr.severity_level, sr.estimated_max_cost, sr.created_at
		FROM provider_leads l
		JOIN service_requests sr ON sr.id = l.request_id
		WHERE l.org_id = $1 AND sr.status = 'pending'
		AND NOT EXISTS (SELECT 1 FROM scheduled_jobs j WHERE j.request_id = sr.id)
		ORDER BY sr.created_at`

	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.OpenJob
	for rows.Next() {
		j := &models.OpenJob{}
		if err := rows.Scan(&j.RequestID, &j.Category, &j.Summary, &j.SeverityLevel, &j.EstimatedMaxCost, &j.CreatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
