package jobs

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-admin/services"
	"github.com/sirupsen/logrus"
)

// RegistrarRefreshJob reloads the registrar directory used for form autofill
type RegistrarRefreshJob struct {
	RegistrarService *services.RegistrarService
	Timeout          time.Duration
}

func NewRegistrarRefreshJob(registrarService *services.RegistrarService) *RegistrarRefreshJob {
	return &RegistrarRefreshJob{RegistrarService: registrarService, Timeout: time.Minute}
}

func (j *RegistrarRefreshJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()

	start := time.Now()
	registrars, err := j.RegistrarService.Refresh(ctx)
	if err != nil {
		// The previous directory stays in use until a refresh succeeds
		logrus.WithError(err).Warn("Registrar Refresh Job failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"registrars": len(registrars),
		"duration":   time.Since(start),
	}).Info("Registrar Refresh Job completed")
}
