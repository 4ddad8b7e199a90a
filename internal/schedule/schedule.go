// Package schedule runs the due-campaign pass on a cron cadence. It is a
// thin periodic driver; all reminder semantics live in the campaign engine.
package schedule

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"optinbot/internal/campaign"
)

type Service struct {
	log    zerolog.Logger
	engine *campaign.Service
	spec   string

	mu      sync.Mutex
	c       *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
	runLock sync.Mutex // overlap guard: skip a tick while one is running
}

// New prepares a runner firing on the given cron spec (standard 5-field
// specs and @every intervals). An empty spec disables the service.
func New(spec string, engine *campaign.Service, log zerolog.Logger) *Service {
	return &Service{log: log, engine: engine, spec: spec}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.spec == "" {
		s.log.Info().Msg("due-reminder schedule disabled")
		return nil
	}
	if s.c != nil {
		return nil
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.tick); err != nil {
		s.cancel()
		s.runCtx, s.cancel = nil, nil
		return err
	}
	c.Start()
	s.c = c
	s.log.Info().Str("spec", s.spec).Msg("due-reminder schedule started")
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c, s.runCtx, s.cancel = nil, nil, nil
	s.mu.Unlock()
	if c == nil {
		return
	}

	if cancel != nil {
		cancel()
	}
	done := c.Stop()
	select {
	case <-done.Done():
		s.log.Info().Msg("due-reminder schedule stopped")
	case <-ctx.Done():
		// Stop continues in background; the in-flight tick will notice
		// its cancelled run context.
	}
}

func (s *Service) tick() {
	if !s.runLock.TryLock() {
		s.log.Warn().Msg("previous due-reminder run still in progress, skipping tick")
		return
	}
	defer s.runLock.Unlock()

	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).
				Msg("panic in due-reminder tick")
		}
	}()

	start := time.Now()
	res, err := s.engine.RunDueReminders(ctx, time.Time{})
	if err != nil {
		s.log.Error().Err(err).Msg("due-reminder run failed")
		return
	}
	if res.Due > 0 {
		s.log.Info().Int("due", res.Due).Int("successful", res.Successful).
			Int("failed", res.Failed).Dur("took", time.Since(start)).
			Bool("success", res.Success()).Msg("due-reminder tick finished")
	}
}
