package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"homebase-backend/internal/models"
)

const maxRetries = 3

// jobFailedMessage is what the homeowner sees when a job gives up. The
// underlying error stays in the logs.
const jobFailedMessage = "We could not notify providers about your request. Please try again later."

type LeadRecorder interface {
	RecordLeads(ctx context.Context, requestID uuid.UUID, orgIDs []uuid.UUID) (int, error)
}

type UpdatePublisher interface {
	PublishUpdate(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// Pool consumes background jobs queued by the assistant. Today that is the
// request-matched job: record provider leads, then tell the homeowner.
type Pool struct {
	redis       *redis.Client
	leads       LeadRecorder
	publisher   UpdatePublisher
	workerCount int
	logger      *slog.Logger
	stopChan    chan struct{}
}

func NewPool(redisClient *redis.Client, leads LeadRecorder, publisher UpdatePublisher, workerCount int, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		redis:       redisClient,
		leads:       leads,
		publisher:   publisher,
		workerCount: workerCount,
		logger:      logger,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	queues := []string{models.RequestMatchedQueue}

	for i := 0; i < p.workerCount; i++ {
		go p.worker(i, queues)
	}

	p.logger.Info("worker pool started", "workers", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

func (p *Pool) worker(id int, queues []string) {
	log := p.logger.With("worker", id)
	for {
		select {
		case <-p.stopChan:
			log.Info("worker shutting down")
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Error("failed to parse job", "error", err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Info("processing job", "job_id", job.ID, "type", job.Type)

		if processErr := p.process(ctx, &job); processErr != nil {
			p.handleFailure(ctx, &job, processErr)
		} else {
			log.Info("job completed", "job_id", job.ID)
		}

		p.redis.Del(ctx, lockKey)
	}
}

func (p *Pool) process(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTypeRequestMatched:
		return p.processRequestMatched(ctx, job)
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (p *Pool) processRequestMatched(ctx context.Context, job *models.Job) error {
	var cfg models.RequestMatchedConfig
	if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
		return fmt.Errorf("invalid job config: %w", err)
	}

	orgIDs := make([]uuid.UUID, 0, len(cfg.Providers))
	names := make([]string, 0, len(cfg.Providers))
	for _, prov := range cfg.Providers {
		orgIDs = append(orgIDs, prov.OrgID)
		names = append(names, prov.Name)
	}

	created, err := p.leads.RecordLeads(ctx, job.ReferenceID, orgIDs)
	if err != nil {
		return fmt.Errorf("failed to record leads: %w", err)
	}
	p.logger.Info("provider leads recorded", "request_id", job.ReferenceID, "created", created)

	// Leads are idempotent, so a failed publish does not retry the job.
	if err := p.publisher.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: models.WSServiceRequestMatched,
		Payload: models.RequestMatchedEvent{
			RequestID:    job.ReferenceID,
			ServiceType:  cfg.ServiceType,
			MatchedCount: len(cfg.Providers),
			Providers:    names,
		},
	}); err != nil {
		p.logger.Warn("failed to publish match update", "request_id", job.ReferenceID, "error", err)
	}
	return nil
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	if job.RetryCount < maxRetries {
		p.logger.Warn("job failed, retrying", "job_id", job.ID, "attempt", job.RetryCount, "error", errMsg)

		jobBytes, _ := json.Marshal(job)
		time.AfterFunc(retryBackoff(job.RetryCount), func() {
			p.redis.LPush(context.Background(), jobQueueName(job.Type), string(jobBytes))
		})
		return
	}

	p.logger.Error("job failed permanently", "job_id", job.ID, "error", errMsg)
	if pubErr := p.publisher.PublishUpdate(ctx, job.UserID, models.WSMessage{
		Type: models.WSError,
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: jobFailedMessage,
		},
	}); pubErr != nil {
		p.logger.Warn("failed to publish job failure", "job_id", job.ID, "error", pubErr)
	}
}

func retryBackoff(retry int) time.Duration {
	return time.Duration(1<<uint(retry)) * time.Second
}

func jobQueueName(jobType string) string {
	switch jobType {
	case models.JobTypeRequestMatched:
		return models.RequestMatchedQueue
	default:
		return "queue:" + jobType
	}
}
