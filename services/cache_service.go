package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-admin/models"
	"github.com/fenilmodi00/ipo-admin/shared"
	"github.com/sirupsen/logrus"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// IsExpired checks if the cache entry has expired
func (ce *CacheEntry) IsExpired() bool {
	return time.Now().After(ce.ExpiresAt)
}

// CacheService is an in-memory TTL cache for backend reads.
// Keys are namespaced by resource ("ipos:mainboard:...") so a mutation can drop
// everything a resource provides with DeletePrefix.
type CacheService struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
	metrics    *shared.Metrics
}

// NewCacheService creates a cache with a 5 minute TTL and room for 1000 entries
func NewCacheService() *CacheService {
	return NewCacheServiceWithConfig(5*time.Minute, 1000, nil)
}

// NewCacheServiceWithConfig creates a cache service with custom configuration.
// Expired entries are dropped on read and by CleanupExpired.
func NewCacheServiceWithConfig(defaultTTL time.Duration, maxSize int, metrics *shared.Metrics) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &CacheService{
		cache:      make(map[string]*CacheEntry),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		metrics:    metrics,
	}
}

// Get retrieves a value from cache
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mutex.RLock()
	entry, exists := cs.cache[key]
	cs.mutex.RUnlock()

	if !exists || entry.IsExpired() {
		cs.metrics.ObserveCacheLookup(false)
		return nil, false
	}
	cs.metrics.ObserveCacheLookup(true)
	return entry.Data, true
}

// Set stores a value in cache with default TTL
func (cs *CacheService) Set(key string, value interface{}) {
	cs.SetWithTTL(key, value, cs.defaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (cs *CacheService) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if _, exists := cs.cache[key]; !exists && len(cs.cache) >= cs.maxSize {
		cs.evictOldest()
	}

	cs.cache[key] = &CacheEntry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}
}

// evictOldest removes the entry closest to expiry
func (cs *CacheService) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range cs.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(cs.cache, oldestKey)
	}
}

// Delete removes a value from cache
func (cs *CacheService) Delete(key string) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	delete(cs.cache, key)
}

// DeletePrefix removes every key starting with prefix and returns how many went
func (cs *CacheService) DeletePrefix(prefix string) int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	removed := 0
	for key := range cs.cache {
		if strings.HasPrefix(key, prefix) {
			delete(cs.cache, key)
			removed++
		}
	}
	return removed
}

// Clear removes all values from cache
func (cs *CacheService) Clear() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache = make(map[string]*CacheEntry)
}

// Size returns the number of items in cache
func (cs *CacheService) Size() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	return len(cs.cache)
}

// CleanupExpired removes expired entries and returns how many were removed
func (cs *CacheService) CleanupExpired() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	removed := 0
	for key, entry := range cs.cache {
		if entry.IsExpired() {
			delete(cs.cache, key)
			removed++
		}
	}
	return removed
}

// ipoListPrefix is the cache namespace of one IPO category's list reads
func ipoListPrefix(category Resource) string {
	return fmt.Sprintf("ipos:%s:", category)
}

// invalidationTargets lists the categories whose cached lists a mutation of
// category makes stale. Mainboard records move into the listed view once
// listed, so mainboard writes also drop listed.
func invalidationTargets(category Resource) []Resource {
	if category == ResourceMainboard {
		return []Resource{ResourceMainboard, ResourceListed}
	}
	return []Resource{category}
}

// CachedIPOService wraps IPOService with caching of list reads.
// Form reads always go to the backend so an edit starts from fresh data.
type CachedIPOService struct {
	ipoService *IPOService
	cache      *CacheService
	logger     *logrus.Entry
}

// NewCachedIPOService creates a new cached IPO service
func NewCachedIPOService(ipoService *IPOService, cache *CacheService) *CachedIPOService {
	return &CachedIPOService{
		ipoService: ipoService,
		cache:      cache,
		logger:     logrus.WithField("component", "CachedIPOService"),
	}
}

// Service exposes the wrapped service
func (cis *CachedIPOService) Service() *IPOService {
	return cis.ipoService
}

// FetchRecords returns the raw records of a category, using cache when possible
func (cis *CachedIPOService) FetchRecords(ctx context.Context, category Resource, query TableQuery) (RecordPage, error) {
	cacheKey := ipoListPrefix(category) + query.backendQuery(category).Encode()

	if cached, found := cis.cache.Get(cacheKey); found {
		if page, ok := cached.(RecordPage); ok {
			return page, nil
		}
	}

	page, err := cis.ipoService.FetchRecords(ctx, category, query)
	if err != nil {
		return RecordPage{}, err
	}

	cis.cache.Set(cacheKey, page)
	return page, nil
}

// ListTable returns table rows of a category built from cached records
func (cis *CachedIPOService) ListTable(ctx context.Context, category Resource, query TableQuery) (TablePage, error) {
	page, err := cis.FetchRecords(ctx, category, query)
	if err != nil {
		return TablePage{}, err
	}
	return cis.ipoService.BuildTable(category, page, query, time.Now()), nil
}

// GetForm loads a record as a form view model
func (cis *CachedIPOService) GetForm(ctx context.Context, category Resource, id string) (models.IPOViewModel, error) {
	return cis.ipoService.GetForm(ctx, category, id)
}

// Create creates a record and invalidates the affected lists
func (cis *CachedIPOService) Create(ctx context.Context, category Resource, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error) {
	result, err := cis.ipoService.Create(ctx, category, vm, icon)
	if err == nil {
		cis.InvalidateCategory(category)
	}
	return result, err
}

// Update updates a record and invalidates the affected lists
func (cis *CachedIPOService) Update(ctx context.Context, category Resource, id string, vm models.IPOViewModel, icon *models.Attachment) (SubmitResult, error) {
	result, err := cis.ipoService.Update(ctx, category, id, vm, icon)
	if err == nil {
		cis.InvalidateCategory(category)
	}
	return result, err
}

// UpdateSection updates one section of a record and invalidates the affected lists
func (cis *CachedIPOService) UpdateSection(ctx context.Context, category Resource, id string, section FormSection, vm models.IPOViewModel) error {
	err := cis.ipoService.UpdateSection(ctx, category, id, section, vm)
	if err == nil {
		cis.InvalidateCategory(category)
	}
	return err
}

// Delete removes a record and invalidates the affected lists
func (cis *CachedIPOService) Delete(ctx context.Context, category Resource, id string) error {
	err := cis.ipoService.Delete(ctx, category, id)
	if err == nil {
		cis.InvalidateCategory(category)
	}
	return err
}

// BulkDelete removes several records. Lists are invalidated even on partial failure.
func (cis *CachedIPOService) BulkDelete(ctx context.Context, category Resource, ids []string) (BulkDeleteResult, error) {
	result, err := cis.ipoService.BulkDelete(ctx, category, ids)
	if err == nil || len(result.Deleted) > 0 {
		cis.InvalidateCategory(category)
	}
	return result, err
}

// InvalidateCategory drops cached lists made stale by a write to category
func (cis *CachedIPOService) InvalidateCategory(category Resource) {
	removed := 0
	for _, target := range invalidationTargets(category) {
		removed += cis.cache.DeletePrefix(ipoListPrefix(target))
	}
	cis.logger.WithFields(logrus.Fields{
		"category": category,
		"removed":  removed,
	}).Debug("Invalidated IPO list cache")
}

// InvalidateAllIPOCache drops every cached IPO list, e.g. after a scraper sync
func (cis *CachedIPOService) InvalidateAllIPOCache() {
	for _, category := range IPOCategories {
		cis.cache.DeletePrefix(ipoListPrefix(category))
	}
}

// GetCacheStats returns cache statistics
func (cis *CachedIPOService) GetCacheStats() map[string]interface{} {
	cis.cache.mutex.RLock()
	keys := make([]string, 0, len(cis.cache.cache))
	for key := range cis.cache.cache {
		keys = append(keys, key)
	}
	cis.cache.mutex.RUnlock()
	sort.Strings(keys)

	return map[string]interface{}{
		"size": len(keys),
		"type": "in-memory",
		"keys": keys,
	}
}

// WarmupCache pre-loads the first page of every category
func (cis *CachedIPOService) WarmupCache(ctx context.Context) error {
	for _, category := range IPOCategories {
		if _, err := cis.FetchRecords(ctx, category, TableQuery{}); err != nil {
			return fmt.Errorf("failed to warmup %s cache: %w", category, err)
		}
	}
	return nil
}
