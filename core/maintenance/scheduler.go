package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"warroom/config"
	"warroom/core/store"
	"warroom/core/utils"
)

// Scheduler prunes the request activity log on a cron schedule.
type Scheduler struct {
	cfg       config.SchedulerConfig
	retention time.Duration
	activity  store.ActivityStore
	logger    *utils.Logger
	now       func() time.Time

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(cfg config.SchedulerConfig, retention time.Duration, activity store.ActivityStore, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		retention: retention,
		activity:  activity,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Scheduler) StartWithContext(ctx context.Context) {
	if s == nil || s.activity == nil || !s.cfg.Enabled || s.retention <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	spec := s.cfg.ActivityRetention
	if spec == "" {
		spec = "@hourly"
	}
	if _, err := c.AddFunc(spec, func() { _, _ = s.RunOnce(runCtx) }); err != nil {
		cancel()
		s.logger.Errorf("activity retention schedule %q rejected: %v", spec, err)
		return
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.logger.Printf("activity retention scheduled (%s, keep %s)", spec, s.retention)
}

func (s *Scheduler) StopWithContext(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	c := s.cron
	cancel := s.cancel
	wasRunning := s.running
	s.cron = nil
	s.cancel = nil
	s.running = false
	s.mu.Unlock()
	if !wasRunning || c == nil {
		return nil
	}
	cancel()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce deletes activity rows older than the retention window.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	if s == nil || s.activity == nil || s.retention <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.retention)
	n, err := s.activity.DeleteActivityBefore(ctx, cutoff)
	if err != nil {
		s.logger.Errorf("activity retention: %v", err)
		return 0, err
	}
	if n > 0 {
		s.logger.Printf("activity retention removed %d entries older than %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
