package remind

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler drives periodic reminder scans on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	checker *Checker
	log     zerolog.Logger
}

// NewScheduler wires the checker onto spec, a six-field cron expression
// with seconds (e.g. "*/20 * * * * *" for every twenty seconds).
func NewScheduler(spec string, checker *Checker, log zerolog.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithSeconds())
	s := &Scheduler{cron: c, checker: checker, log: log}

	_, err := c.AddFunc(spec, func() {
		if err := checker.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("reminder scan failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins scheduling in a background goroutine.
func (s *Scheduler) Start() {
	s.log.Info().Msg("reminder scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("reminder scheduler stopped")
}
