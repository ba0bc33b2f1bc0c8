package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"homebase-backend/internal/models"
)

type AssistantRepo struct {
	pool *pgxpool.Pool
}

func NewAssistantRepo(pool *pgxpool.Pool) *AssistantRepo {
	return &AssistantRepo{pool: pool}
}

func (r *AssistantRepo) CreateSession(ctx context.Context, s *models.AssistantSession) error {
	s.ID = uuid.New()
	if len(s.ContextJSON) == 0 {
		s.ContextJSON = json.RawMessage("{}")
	}

	query := `INSERT INTO assistant_sessions (id, user_id, profile_id, role, context)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		s.ID, s.UserID, s.ProfileID, s.Role, []byte(s.ContextJSON),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *AssistantRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.AssistantSession, error) {
	s := &models.AssistantSession{}
	query := `SELECT id, user_id, profile_id, role, context, created_at, updated_at
		FROM assistant_sessions WHERE id = $1`

	var bag []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.ProfileID, &s.Role, &bag, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.ContextJSON = bag
	return s, nil
}

// TouchSession stores the merged context bag and refreshes updated_at.
func (r *AssistantRepo) TouchSession(ctx context.Context, id uuid.UUID, bag json.RawMessage) error {
	if len(bag) == 0 {
		bag = json.RawMessage("{}")
	}
	_, err := r.pool.Exec(ctx,
		"UPDATE assistant_sessions SET context = $1, updated_at = NOW() WHERE id = $2",
		[]byte(bag), id,
	)
	return err
}

func (r *AssistantRepo) AppendMessage(ctx context.Context, m *models.AssistantMessage) error {
	m.ID = uuid.New()

	query := `INSERT INTO assistant_messages (id, session_id, role, content)
		VALUES ($1, $2, $3, $4) RETURNING seq, created_at`

	return r.pool.QueryRow(ctx, query, m.ID, m.SessionID, m.Role, m.Content).Scan(&m.Seq, &m.CreatedAt)
}

// RecentMessages returns the newest limit messages of a session, oldest first.
func (r *AssistantRepo) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.AssistantMessage, error) {
	query := `SELECT id, session_id, seq, role, content, created_at FROM (
			SELECT id, session_id, seq, role, content, created_at
			FROM assistant_messages WHERE session_id = $1
			ORDER BY seq DESC LIMIT $2
		) recent ORDER BY seq ASC`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.AssistantMessage
	for rows.Next() {
		m := &models.AssistantMessage{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Seq, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// CountIdleSessions reports how many sessions have not been touched since
// idleBefore.
func (r *AssistantRepo) CountIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM assistant_sessions WHERE updated_at < $1`, idleBefore).Scan(&n)
	return n, err
}
