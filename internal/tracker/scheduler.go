package tracker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"grantwatch/pkg/logger"
)

// Scheduler runs tracking passes on a 5-field cron expression or a
// descriptor such as "@hourly". A tick that arrives while a pass is still
// running is skipped.
type Scheduler struct {
	tracker *Tracker
	cron    *cron.Cron
	log     logger.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewScheduler(t *Tracker, spec string, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		tracker: t,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		log: log,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, func() { s.tracker.RunOnce(s.ctx) }); err != nil {
		s.cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logger.Time("next_run", s.cron.Entries()[0].Next))
}

// Stop cancels an in-flight pass and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}
