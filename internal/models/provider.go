package models

import (
	"time"

	"github.com/google/uuid"
)

type ClientDetails struct {
	ClientID      uuid.UUID  `json:"client_id"`
	Name          string     `json:"name"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	Address       *string    `json:"address"`
	TotalJobs     int        `json:"total_jobs"`
	LastServiceAt *time.Time `json:"last_service_at"`
}

type ScheduledJob struct {
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	ClientName string    `json:"client_name"`
	Category   string    `json:"category"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Status     string    `json:"status"`
}

// OpenJob is a service request routed to an organization and not yet scheduled.
type OpenJob struct {
	RequestID        uuid.UUID `json:"request_id"`
	Category         string    `json:"category"`
	Summary          string    `json:"summary"`
	SeverityLevel    string    `json:"severity_level"`
	EstimatedMaxCost float64   `json:"estimated_max_cost"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProviderLead records that an organization was matched to a request.
type ProviderLead struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	RequestID uuid.UUID `json:"request_id"`
	Status    string    `json:"status"` // "new" | "viewed" | "quoted"
	CreatedAt time.Time `json:"created_at"`
}
