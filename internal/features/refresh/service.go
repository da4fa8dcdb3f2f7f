// Package refresh reloads the report collection on a schedule so the
// gateway's view does not drift from the compute backend between user
// actions.
package refresh

import (
	"context"
	"fmt"

	"go-helpdesk/internal/config"
	"go-helpdesk/internal/features/report"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type RefreshService interface {
	InitializeScheduler(ctx context.Context) error
	StopScheduler() error
}

type RefreshServiceImpl struct {
	reports   report.ReportService
	log       *zap.Logger
	schedule  string
	scheduler *cron.Cron
}

func NewRefreshService(cfg *config.Config, reports report.ReportService, log *zap.Logger) RefreshService {
	return &RefreshServiceImpl{
		reports:  reports,
		log:      log,
		schedule: cfg.RefreshSchedule,
	}
}

func (s *RefreshServiceImpl) InitializeScheduler(ctx context.Context) error {
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.schedule, err)
	}

	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.schedule, func() {
		// The load-guard makes an overlapping tick a no-op
		if err := s.reports.Load(context.Background()); err != nil {
			s.log.Warn("scheduled report reload failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.Start()
	s.log.Info("report refresh scheduler started", zap.String("schedule", s.schedule))

	// Warm the collection on startup; failures stay in service state
	if err := s.reports.Load(ctx); err != nil {
		s.log.Warn("initial report load failed", zap.Error(err))
	}
	return nil
}

func (s *RefreshServiceImpl) StopScheduler() error {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	return nil
}
