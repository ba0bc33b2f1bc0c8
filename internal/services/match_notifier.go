package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"homebase-backend/internal/models"
)

// MatchNotifier queues a request-matched job for the worker pool.
type MatchNotifier struct {
	redis *redis.Client
	now   func() time.Time
}

func NewMatchNotifier(redisClient *redis.Client) *MatchNotifier {
	return &MatchNotifier{redis: redisClient, now: time.Now}
}

func (n *MatchNotifier) NotifyMatched(ctx context.Context, req *models.ServiceRequest, providers []models.MatchedProvider) error {
	jobBytes, err := buildMatchJob(req, providers, n.now())
	if err != nil {
		return err
	}
	if err := n.redis.LPush(ctx, models.RequestMatchedQueue, string(jobBytes)).Err(); err != nil {
		return fmt.Errorf("failed to enqueue match job: %w", err)
	}
	return nil
}

func buildMatchJob(req *models.ServiceRequest, providers []models.MatchedProvider, now time.Time) ([]byte, error) {
	cfg, err := json.Marshal(models.RequestMatchedConfig{
		ServiceType: req.Category,
		Summary:     req.AISummary,
		Providers:   providers,
	})
	if err != nil {
		return nil, err
	}

	job := models.Job{
		ID:          uuid.New(),
		UserID:      req.HomeownerID,
		Type:        models.JobTypeRequestMatched,
		ReferenceID: req.ID,
		ConfigJSON:  cfg,
		CreatedAt:   now,
	}
	return json.Marshal(job)
}

// UpdatePublisher sends websocket updates to a user's channel via Redis pub/sub.
type UpdatePublisher struct {
	redis *redis.Client
}

func NewUpdatePublisher(redisClient *redis.Client) *UpdatePublisher {
	return &UpdatePublisher{redis: redisClient}
}

func (p *UpdatePublisher) PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.redis.Publish(ctx, UserChannel(userID), string(data)).Err()
}

func UserChannel(userID uuid.UUID) string {
	return fmt.Sprintf("user_updates:%s", userID.String())
}
