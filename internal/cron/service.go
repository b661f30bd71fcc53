package cron

import (
	"context"
	"errors"
	"time"

	"github.com/simpify/spark-backend/pkg/logger"
	"github.com/simpify/spark-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per interval while holding Lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Lock == nil {
		return nil, errors.New("lock required")
	}
	s := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately and then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron.stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Service) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "cron.cycle_failed", err)
	}
}

// RunOnce runs one cycle. It reports false when another worker held the
// lock. A failing job does not stop later jobs.
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return false, err
	}
	if !acquired {
		s.logg.Info(ctx, "cron.cycle_skipped")
		return false, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron.lock_release_failed", err)
		}
	}()

	for _, job := range s.registry.Jobs() {
		s.runJob(ctx, job)
	}
	return true, nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	start := time.Now()
	report, err := job.Run(ctx)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(name, elapsed)

	ctx = s.logg.WithFields(ctx, map[string]any{
		"duration_ms": elapsed.Milliseconds(),
		"scanned":     report.Scanned,
		"affected":    report.Affected,
	})
	s.metrics.AddAffected(name, report.Affected)
	if err != nil {
		s.metrics.IncFailure(name)
		s.logg.Error(ctx, "cron.job_failed", err)
		return
	}
	s.metrics.IncSuccess(name)
	s.logg.Info(ctx, "cron.job_completed")
}
