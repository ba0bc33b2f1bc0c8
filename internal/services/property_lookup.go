package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"homebase-backend/internal/models"
)

const propertyCachePrefix = "property:"

// ErrPropertyNotFound is returned when the upstream has no record. Lookup
// errors never carry the address itself.
var ErrPropertyNotFound = errors.New("no property record found")

// PropertyLookupService fetches public property records over HTTP and caches
// them in Redis by normalized address.
type PropertyLookupService struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewPropertyLookupService(baseURL, apiKey string, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *PropertyLookupService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyLookupService{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 15 * time.Second},
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (s *PropertyLookupService) Lookup(ctx context.Context, address string) (*models.PropertyRecord, error) {
	key := propertyCacheKey(address)
	if key == propertyCachePrefix {
		return nil, fmt.Errorf("address is empty")
	}

	if rec := s.fromCache(ctx, key); rec != nil {
		return rec, nil
	}

	if s.baseURL == "" {
		return nil, fmt.Errorf("property lookup is not configured")
	}

	rec, err := s.fetch(ctx, address)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rec)
	return rec, nil
}

func (s *PropertyLookupService) fetch(ctx context.Context, address string) (*models.PropertyRecord, error) {
	endpoint := s.baseURL + "/properties?address=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build property request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("property lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPropertyNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("property lookup returned status %d", resp.StatusCode)
	}

	var rec models.PropertyRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rec); err != nil {
		return nil, fmt.Errorf("decode property record: %w", err)
	}
	if rec.Address == "" {
		rec.Address = address
	}
	return &rec, nil
}

func (s *PropertyLookupService) fromCache(ctx context.Context, key string) *models.PropertyRecord {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("property cache read failed", "error", err)
		}
		return nil
	}
	var rec models.PropertyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.Warn("property cache entry is corrupt", "error", err)
		return nil
	}
	return &rec
}

func (s *PropertyLookupService) store(ctx context.Context, key string, rec *models.PropertyRecord) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("property cache write failed", "error", err)
	}
}

// propertyCacheKey lowercases the address, drops punctuation and collapses
// whitespace so trivially different spellings share an entry.
func propertyCacheKey(address string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '#':
			return ' '
		}
		return r
	}, strings.ToLower(address))
	return propertyCachePrefix + strings.Join(strings.Fields(cleaned), " ")
}
