package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/sirupsen/logrus"
)

// ScraperSyncJob asks the backend to scrape new IPOs and then refresh GMPs.
// The GMP refresh runs even when the IPO sync fails.
type ScraperSyncJob struct {
	ScraperService *services.ScraperService
	Limit          int
}

func NewScraperSyncJob(scraperService *services.ScraperService) *ScraperSyncJob {
	return &ScraperSyncJob{ScraperService: scraperService}
}

func (j *ScraperSyncJob) Run() {
	logrus.Info("Starting Scheduled Scraper Sync Job")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	successCount := 0
	result, err := j.ScraperService.Sync(ctx, j.Limit)
	if err != nil {
		logrus.WithError(err).Error("Scraper Sync Job: IPO sync failed")
	} else {
		successCount++
		logrus.WithFields(logrus.Fields{
			"message":  result.Message,
			"duration": result.Duration,
		}).Info("Scraper Sync Job: IPO sync finished")
	}

	result, err = j.ScraperService.SyncGMP(ctx)
	if err != nil {
		logrus.WithError(err).Error("Scraper Sync Job: GMP sync failed")
	} else {
		successCount++
		logrus.WithFields(logrus.Fields{
			"message":  result.Message,
			"duration": result.Duration,
		}).Info("Scraper Sync Job: GMP sync finished")
	}

	logrus.Infof("Scraper Sync Job completed: %d/2 syncs succeeded", successCount)
}
