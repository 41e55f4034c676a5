package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/sirupsen/logrus"
)

// CacheCleanupJob drops expired cache entries and drafts past their retention
type CacheCleanupJob struct {
	CacheService *services.CacheService
	DraftService *services.DraftService
}

func NewCacheCleanupJob(cacheService *services.CacheService, draftService *services.DraftService) *CacheCleanupJob {
	return &CacheCleanupJob{CacheService: cacheService, DraftService: draftService}
}

func (j *CacheCleanupJob) Run() {
	logrus.Info("Starting Cache Cleanup Job")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	entries := 0
	if j.CacheService != nil {
		entries = j.CacheService.CleanupExpired()
	}

	drafts := 0
	if j.DraftService != nil {
		removed, err := j.DraftService.CleanupExpired(ctx)
		if err != nil {
			logrus.WithError(err).Error("Cache Cleanup Job: failed to remove expired drafts")
		}
		drafts = removed
	}

	logrus.WithFields(logrus.Fields{
		"cache_entries": entries,
		"drafts":        drafts,
	}).Info("Cache Cleanup Job completed")
}
