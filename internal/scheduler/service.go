package scheduler

import (
	"fmt"
	"time"

	"github.com/azure/brand-mentions-bot/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Runner is the pipeline work the scheduler triggers
type Runner interface {
	RunMonitoring() error
	SendReport() error
}

// Poll and report specs may carry an optional leading seconds field, so both
// standard 5-field specs and 6-field specs parse
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Service handles scheduling of monitoring tasks
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, runner Runner) *Service {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		logrus.Warnf("Unknown time zone %q, using UTC", cfg.TimeZone)
		loc = time.UTC
	}

	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithParser(specParser), cron.WithLocation(loc)),
	}
}

// ReportCron returns the cron expression for a report schedule
func ReportCron(schedule string) string {
	switch schedule {
	case "daily":
		// Run daily at 9 AM
		return "0 0 9 * * *"
	default:
		// Run weekly on Monday at 9 AM
		return "0 0 9 * * MON"
	}
}

// Start registers the polling and report jobs and starts the scheduler
func (s *Service) Start() error {
	_, err := s.cron.AddFunc(s.config.PollSchedule, func() {
		logrus.Info("Starting scheduled monitoring run")
		if err := s.runner.RunMonitoring(); err != nil {
			logrus.Errorf("Scheduled monitoring run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", s.config.PollSchedule, err)
	}

	_, err = s.cron.AddFunc(ReportCron(s.config.ReportSchedule), func() {
		logrus.Infof("Sending %s report", s.config.ReportSchedule)
		if err := s.runner.SendReport(); err != nil {
			logrus.Errorf("Scheduled report failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started: polling %s, %s reports", s.config.PollSchedule, s.config.ReportSchedule)
	return nil
}

// Entries returns the number of registered jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
