package services

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/sirupsen/logrus"
)

const (
	defaultPreviewLimit = 3
	defaultSyncLimit    = 10
)

// ScrapeResult is the backend's answer to a scraper call. Data is passed through as sent.
type ScrapeResult struct {
	Message  string               `json:"message,omitempty"`
	Data     json.RawMessage      `json:"data,omitempty"`
	Preview  []models.IPOTableRow `json:"preview,omitempty"`
	Duration string               `json:"duration"`
}

// ScraperService triggers the backend scraper. Scraping itself runs on the backend;
// a sync changes records of every category, so all cached IPO lists are dropped.
type ScraperService struct {
	client *BackendClient
	ipos   *CachedIPOService
	now    func() time.Time
	logger *logrus.Entry
}

// NewScraperService creates a scraper service
func NewScraperService(client *BackendClient, ipos *CachedIPOService) *ScraperService {
	return &ScraperService{
		client: client,
		ipos:   ipos,
		now:    time.Now,
		logger: logrus.WithField("component", "ScraperService"),
	}
}

// Preview fetches what a sync would import without saving it. Records the
// normalizer understands are also returned as table rows.
func (s *ScraperService) Preview(ctx context.Context, limit int) (ScrapeResult, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	start := s.now()
	data, err := s.client.Do(ctx, BackendCall{Resource: ResourceScraper, Operation: OpPreview, Query: limitQuery(limit)})
	if err != nil {
		return ScrapeResult{}, err
	}

	result := scrapeResult(data, s.now().Sub(start))
	if list, err := models.DecodeList[models.RawIPO](data, listKeys...); err == nil && s.ipos != nil {
		normalizer := s.ipos.Service().Normalizer()
		for _, raw := range list.Data {
			if raw.Has("companyName") {
				result.Preview = append(result.Preview, normalizer.ToTableRow(raw, models.IPOTypeMainboard, s.now()))
			}
		}
	}
	return result, nil
}

// Sync imports up to limit scraped IPOs into the backend
func (s *ScraperService) Sync(ctx context.Context, limit int) (ScrapeResult, error) {
	if limit <= 0 {
		limit = defaultSyncLimit
	}
	return s.trigger(ctx, OpSync, limitQuery(limit))
}

// SyncGMP refreshes GMP values of stored IPOs from the scraped source
func (s *ScraperService) SyncGMP(ctx context.Context) (ScrapeResult, error) {
	return s.trigger(ctx, OpSyncGMP, nil)
}

func (s *ScraperService) trigger(ctx context.Context, op Operation, query url.Values) (ScrapeResult, error) {
	logger := s.logger.WithField("operation", op)
	logger.Info("Scraper run triggered")

	start := s.now()
	data, err := s.client.Do(ctx, BackendCall{Resource: ResourceScraper, Operation: op, Query: query})
	if err != nil {
		logger.WithError(err).Error("Scraper run failed")
		return ScrapeResult{}, err
	}
	if s.ipos != nil {
		s.ipos.InvalidateAllIPOCache()
	}

	result := scrapeResult(data, s.now().Sub(start))
	logger.WithField("duration", result.Duration).Info("Scraper run completed")
	return result, nil
}

func scrapeResult(data []byte, elapsed time.Duration) ScrapeResult {
	result := ScrapeResult{Message: models.EnvelopeMessage(data), Duration: elapsed.String()}
	if item, err := models.DecodeItem(data, "data", "result"); err == nil {
		result.Data = item
	} else if json.Valid(data) {
		result.Data = json.RawMessage(data)
	}
	return result
}

func limitQuery(limit int) url.Values {
	return url.Values{"limit": []string{strconv.Itoa(limit)}}
}
