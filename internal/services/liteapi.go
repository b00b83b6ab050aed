package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/powderplan/backend/internal/config"
	"github.com/powderplan/backend/pkg/logger"
)

// UpstreamError carries a non-2xx answer from the travel API so the
// handler can pass the status through.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("liteapi: upstream status %d: %s", e.StatusCode, e.Message)
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// LiteAPIService proxies hotel metadata from the LiteAPI travel
// service. Successful responses are cached in-process per request URL
// for the configured TTL; hotel metadata changes rarely.
type LiteAPIService struct {
	cfg        config.LiteAPIConfig
	HTTPClient *http.Client

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewLiteAPIService(cfg config.LiteAPIConfig) *LiteAPIService {
	return &LiteAPIService{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
		cache:      make(map[string]cacheEntry),
	}
}

// StartCacheCleanup sweeps expired cache entries on the given interval.
func (s *LiteAPIService) StartCacheCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			s.sweep()
		}
	}()
}

func (s *LiteAPIService) SearchHotels(ctx context.Context, countryCode, cityName string, limit, offset int) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("offset", fmt.Sprintf("%d", offset))
	if countryCode != "" {
		params.Set("countryCode", countryCode)
	}
	if cityName != "" {
		params.Set("cityName", cityName)
	}
	return s.get(ctx, "/data/hotels?"+params.Encode())
}

func (s *LiteAPIService) HotelDetails(ctx context.Context, hotelID string) (json.RawMessage, error) {
	return s.get(ctx, "/data/hotel?hotelId="+url.QueryEscape(hotelID))
}

func (s *LiteAPIService) HotelReviews(ctx context.Context, hotelID string) (json.RawMessage, error) {
	return s.get(ctx, "/data/reviews?hotelId="+url.QueryEscape(hotelID))
}

func (s *LiteAPIService) Countries(ctx context.Context) (json.RawMessage, error) {
	return s.get(ctx, "/data/countries")
}

func (s *LiteAPIService) Cities(ctx context.Context, countryCode string) (json.RawMessage, error) {
	return s.get(ctx, "/data/cities?countryCode="+url.QueryEscape(countryCode))
}

func (s *LiteAPIService) Facilities(ctx context.Context) (json.RawMessage, error) {
	return s.get(ctx, "/data/facilities")
}

// HotelRates forwards a rate search. Rates are live prices, so the
// request goes upstream every time, bypassing the cache.
func (s *LiteAPIService) HotelRates(ctx context.Context, payload json.RawMessage) (json.RawMessage, error) {
	return s.post(ctx, "/hotels/rates", payload)
}

func (s *LiteAPIService) get(ctx context.Context, path string) (json.RawMessage, error) {
	requestURL := s.cfg.BaseURL + path

	if body, ok := s.cached(requestURL); ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.cfg.APIKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := upstreamMessage(body)
		logger.Warn("liteapi_upstream_error", map[string]interface{}{
			"path":   path,
			"status": resp.StatusCode,
		})
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: message}
	}

	s.store(requestURL, body)
	return body, nil
}

func (s *LiteAPIService) post(ctx context.Context, path string, payload json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.cfg.APIKey)

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := upstreamMessage(body)
		logger.Warn("liteapi_upstream_error", map[string]interface{}{
			"path":   path,
			"status": resp.StatusCode,
		})
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: message}
	}

	return body, nil
}

func (s *LiteAPIService) cached(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.cache[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.body, true
}

func (s *LiteAPIService) store(key string, body []byte) {
	if s.cfg.CacheTTL <= 0 {
		return
	}
	s.mu.Lock()
	s.cache[key] = cacheEntry{body: body, expiresAt: time.Now().Add(s.cfg.CacheTTL)}
	s.mu.Unlock()
}

func (s *LiteAPIService) sweep() {
	now := time.Now()
	s.mu.Lock()
	for key, entry := range s.cache {
		if now.After(entry.expiresAt) {
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()
}

func upstreamMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return "travel api request failed"
}
