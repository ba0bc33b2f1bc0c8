package assistant

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"homebase-backend/internal/models"
)

const (
	dateLayout      = "2006-01-02"
	maxScheduleDays = 90
)

var (
	nextNDaysPattern = regexp.MustCompile(`^next (\d+) days?$`)
	rangeSeparator   = regexp.MustCompile(`\s*(?:\.\.|\bto\b)\s*`)
)

var severityRank = map[string]int{
	"emergency": 0,
	"high":      1,
	"moderate":  2,
	"low":       3,
}

type providerTools struct {
	deps Dependencies
}

func (p *providerTools) orgID(turn *TurnContext) (uuid.UUID, error) {
	if turn.OrgID == nil || *turn.OrgID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("caller has no organization")
	}
	return *turn.OrgID, nil
}

func (p *providerTools) getClientDetails(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error) {
	orgID, err := p.orgID(turn)
	if err != nil {
		return nil, err
	}
	clientID, err := uuid.Parse(stringArg(args, "client_id"))
	if err != nil {
		return nil, fmt.Errorf("client_id is not a valid id")
	}

	client, err := p.deps.ProviderData.ClientDetails(ctx, orgID, clientID)
	if err != nil {
		return nil, fmt.Errorf("client lookup failed: %w", err)
	}
	return &ToolOutput{Payload: map[string]any{"client": client}}, nil
}

func (p *providerTools) checkSchedule(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error) {
	orgID, err := p.orgID(turn)
	if err != nil {
		return nil, err
	}
	from, to, err := parseDateRange(stringArg(args, "date_range"), p.deps.Now())
	if err != nil {
		return nil, err
	}

	jobs, err := p.deps.ProviderData.Schedule(ctx, orgID, from, to)
	if err != nil {
		return nil, fmt.Errorf("schedule lookup failed: %w", err)
	}
	return &ToolOutput{Payload: map[string]any{
		"from":  from.Format(dateLayout),
		"to":    to.AddDate(0, 0, -1).Format(dateLayout),
		"count": len(jobs),
		"jobs":  jobs,
	}}, nil
}

func (p *providerTools) prioritizeJobs(ctx context.Context, turn *TurnContext, args map[string]any) (*ToolOutput, error) {
	orgID, err := p.orgID(turn)
	if err != nil {
		return nil, err
	}
	criteria := stringArg(args, "criteria")

	jobs, err := p.deps.ProviderData.OpenJobs(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("open jobs lookup failed: %w", err)
	}
	ranked := rankJobs(jobs, criteria)

	return &ToolOutput{Payload: map[string]any{
		"criteria": criteria,
		"count":    len(ranked),
		"jobs":     ranked,
	}}, nil
}

// rankJobs orders open jobs by criteria. Ties fall back to age, then id, so the
// order is deterministic.
func rankJobs(jobs []*models.OpenJob, criteria string) []*models.OpenJob {
	ranked := slices.Clone(jobs)
	byAge := func(a, b *models.OpenJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RequestID.String(), b.RequestID.String())
	}

	slices.SortStableFunc(ranked, func(a, b *models.OpenJob) int {
		switch criteria {
		case "urgency":
			if c := cmp.Compare(rankOf(a.SeverityLevel), rankOf(b.SeverityLevel)); c != 0 {
				return c
			}
		case "value":
			if c := cmp.Compare(b.EstimatedMaxCost, a.EstimatedMaxCost); c != 0 {
				return c
			}
		}
		return byAge(a, b)
	})
	return ranked
}

func rankOf(severity string) int {
	if r, ok := severityRank[severity]; ok {
		return r
	}
	return len(severityRank)
}

// parseDateRange resolves a date range expression to a half-open [from, to)
// interval of whole days in now's location.
func parseDateRange(expr string, now time.Time) (time.Time, time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(expr))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	switch s {
	case "", "today":
		return today, today.AddDate(0, 0, 1), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), today.AddDate(0, 0, 2), nil
	case "this week":
		return today, startOfWeek(today).AddDate(0, 0, 7), nil
	case "next week":
		next := startOfWeek(today).AddDate(0, 0, 7)
		return next, next.AddDate(0, 0, 7), nil
	}

	if m := nextNDaysPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > maxScheduleDays {
			return time.Time{}, time.Time{}, fmt.Errorf("day count must be between 1 and %d", maxScheduleDays)
		}
		return today, today.AddDate(0, 0, n), nil
	}

	if parts := rangeSeparator.Split(s, 2); len(parts) == 2 {
		from, err := time.ParseInLocation(dateLayout, parts[0], now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", parts[0])
		}
		to, err := time.ParseInLocation(dateLayout, parts[1], now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", parts[1])
		}
		if to.Before(from) {
			return time.Time{}, time.Time{}, fmt.Errorf("end date is before start date")
		}
		if to.Sub(from) > maxScheduleDays*24*time.Hour {
			return time.Time{}, time.Time{}, fmt.Errorf("range is longer than %d days", maxScheduleDays)
		}
		return from, to.AddDate(0, 0, 1), nil
	}

	day, err := time.ParseInLocation(dateLayout, s, now.Location())
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("unrecognized date range %q", expr)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// startOfWeek returns the Monday on or before day.
func startOfWeek(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
