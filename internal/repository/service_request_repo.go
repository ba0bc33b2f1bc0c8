package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homebase-backend/internal/models"
)

type ServiceRequestRepo struct {
	pool *pgxpool.Pool
}

func NewServiceRequestRepo(pool *pgxpool.Pool) *ServiceRequestRepo {
	return &ServiceRequestRepo{pool: pool}
}

func (r *ServiceRequestRepo) Create(ctx context.Context, sr *models.ServiceRequest) error {
	sr.ID = uuid.New()
	if sr.Status == "" {
		sr.Status = "pending"
	}
	if sr.Scope.Includes == nil {
		sr.Scope.Includes = []string{}
	}
	if sr.Scope.Excludes == nil {
		sr.Scope.Excludes = []string{}
	}
	scopeBytes, err := json.Marshal(sr.Scope)
	if err != nil {
		return err
	}
	meta := []byte(sr.AIMetadata)
	if len(meta) == 0 {
		meta = []byte("{}")
	}

	query := `INSERT INTO service_requests (id, homeowner_id, home_id, category, description,
		ai_summary, severity_level, likely_cause, confidence_score,
		estimated_min_cost, estimated_max_cost, scope, ai_metadata, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		sr.ID, sr.HomeownerID, sr.HomeID, sr.Category, sr.Description,
		sr.AISummary, sr.SeverityLevel, sr.LikelyCause, sr.ConfidenceScore,
		sr.EstimatedMinCost, sr.EstimatedMaxCost, scopeBytes, meta, sr.Status,
	).Scan(&sr.CreatedAt)
}

func (r *ServiceRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	sr := &models.ServiceRequest{}
	query := `SELECT id, homeowner_id, home_id, category, description, ai_summary, severity_level,
		likely_cause, confidence_score, estimated_min_cost, estimated_max_cost,
		scope, ai_metadata, matched_providers, status, created_at
		FROM service_requests WHERE id = $1`

	var scope, meta, matched []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&sr.ID, &sr.HomeownerID, &sr.HomeID, &sr.Category, &sr.Description, &sr.AISummary, &sr.SeverityLevel,
		&sr.LikelyCause, &sr.ConfidenceScore, &sr.EstimatedMinCost, &sr.EstimatedMaxCost,
		&scope, &meta, &matched, &sr.Status, &sr.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scope, &sr.Scope); err != nil {
		return nil, err
	}
	sr.AIMetadata = meta
	if matched != nil {
		sr.MatchedProviders = matched
	}
	return sr, nil
}

// UpdateMatchedProviders stores the denormalized snapshot of matched providers.
func (r *ServiceRequestRepo) UpdateMatchedProviders(ctx context.Context, id uuid.UUID, providers []models.MatchedProvider) error {
	data, err := json.Marshal(providers)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, "UPDATE service_requests SET matched_providers = $1 WHERE id = $2", data, id)
	return err
}

// RecordLeads creates a lead per organization. Existing leads are left alone,
// so redelivered jobs do not duplicate them.
func (r *ServiceRequestRepo) RecordLeads(ctx context.Context, requestID uuid.UUID, orgIDs []uuid.UUID) (int, error) {
	if len(orgIDs) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, orgID := range orgIDs {
		batch.Queue(`INSERT INTO provider_leads (id, org_id, request_id)
			VALUES ($1, $2, $3) ON CONFLICT (org_id, request_id) DO NOTHING`,
			uuid.New(), orgID, requestID)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	created := 0
	for range orgIDs {
		tag, err := results.Exec()
		if err != nil {
			return created, err
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}
