package jobs

import (
	"fmt"
	"time"

	"github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

// Job is one unit of scheduled work
type Job interface {
	Run()
}

// Scheduler runs jobs on fixed intervals
type Scheduler struct {
	cron *cron.Cron
	jobs int
}

func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// Every schedules job to run each interval. A non-positive interval leaves the job off.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) error {
	if interval <= 0 {
		logrus.WithField("job", name).Info("Job disabled")
		return nil
	}
	spec := fmt.Sprintf("@every %s", interval)
	if err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.jobs++
	logrus.WithFields(logrus.Fields{"job": name, "interval": interval}).Info("Job scheduled")
	return nil
}

// Len returns how many jobs are scheduled
func (s *Scheduler) Len() int {
	return s.jobs
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
