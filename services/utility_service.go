package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/fenilmodi00/ipo-admin/shared"
)

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	spaceRuns        = regexp.MustCompile(`\s+`)
)

// UtilityService provides text normalization, slug and date parsing helpers
type UtilityService struct {
	serviceMetrics *shared.ServiceMetrics
}

// NewUtilityService creates a new utility service instance
func NewUtilityService() *UtilityService {
	return &UtilityService{
		serviceMetrics: shared.NewServiceMetrics("Utility_Service"),
	}
}

// NormalizeIPOName normalizes an IPO name for matching
// Lowercases, collapses whitespace and drops a trailing "ipo" word
func (s *UtilityService) NormalizeIPOName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = spaceRuns.ReplaceAllString(normalized, " ")
	normalized = strings.TrimSuffix(normalized, " ipo")
	return strings.TrimSpace(normalized)
}

// GenerateSlug creates the URL identifier of an IPO from its company name:
// lowercase, every run of non-alphanumerics becomes one hyphen, edges trimmed, "-ipo" appended.
func (s *UtilityService) GenerateSlug(companyName string) string {
	slug := strings.ToLower(companyName)
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return slug + "-ipo"
}

// IsAutoGeneratedSlug reports whether slug may be overwritten by GenerateSlug
func (s *UtilityService) IsAutoGeneratedSlug(slug string) bool {
	return slug == "" || strings.Contains(slug, "-ipo")
}

// ParseDate parses dates with multiple format support
// Supports ISO-8601 timestamps, "2006-01-02" and the human formats used on IPO pages
func (s *UtilityService) ParseDate(dateStr string) *time.Time {
	start := time.Now()
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" || s.IsNotAvailable(dateStr) {
		s.serviceMetrics.RecordRequest(false, time.Since(start))
		return nil
	}

	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"Mon, Jan 2, 2006",
		"Monday, January 2, 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"02-Jan-06",
		"2-Jan-06",
		"02-Jan-2006",
		"2 Jan 2006",
		"02/01/2006",
		"2/1/2006",
	}

	for _, format := range formats {
		t, err := time.Parse(format, dateStr)
		if err == nil {
			s.serviceMetrics.RecordRequest(true, time.Since(start))
			return &t
		}
	}

	s.serviceMetrics.RecordRequest(false, time.Since(start))
	return nil
}

// IsNotAvailable checks if a value indicates "not available"
// Detects placeholders like "TBA", "To Be Announced", "N/A", etc.
func (s *UtilityService) IsNotAvailable(text string) bool {
	text = strings.ToLower(strings.TrimSpace(text))

	notAvailableValues := []string{
		"tba",
		"to be announced",
		"tbd",
		"n/a",
		"na",
		"not available",
		"awaited",
		"--",
		"-",
		"",
		"nil",
		"null",
		"invalid date",
	}

	for _, na := range notAvailableValues {
		if text == na {
			return true
		}
	}

	return false
}

// GetMetricsSnapshot returns a snapshot of utility service metrics
func (s *UtilityService) GetMetricsSnapshot() map[string]interface{} {
	return s.serviceMetrics.GetSnapshot()
}
