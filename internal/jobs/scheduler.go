package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper drops expired ledger entries. Only the in-process ledger needs it;
// Redis expires keys on its own.
type Sweeper interface {
	Sweep() int
}

type Options struct {
	Ledger     Sweeper
	Queue      *redis.Client
	MailStream string
	MailMaxLen int64
}

type Scheduler struct {
	cron *cron.Cron
	opts Options
	log  zerolog.Logger
}

func NewScheduler(opts Options, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron: c,
		opts: opts,
		log:  log,
	}
}

func (s *Scheduler) Start() error {
	if s.opts.Ledger != nil {
		if _, err := s.cron.AddFunc("0 * * * * *", s.sweepLedger); err != nil {
			return err
		}
	}
	if s.opts.Queue != nil && s.opts.MailMaxLen > 0 {
		if _, err := s.cron.AddFunc("0 0 */1 * * *", s.trimMailStream); err != nil { // hourly
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the schedule; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) sweepLedger() {
	if removed := s.opts.Ledger.Sweep(); removed > 0 {
		s.log.Debug().Int("removed", removed).Msg("ledger swept")
	}
}

func (s *Scheduler) trimMailStream() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	trimmed, err := s.opts.Queue.XTrimMaxLenApprox(ctx, s.opts.MailStream, s.opts.MailMaxLen, 0).Result()
	if err != nil {
		s.log.Error().Err(err).Str("stream", s.opts.MailStream).Msg("trim mail stream failed")
		return
	}
	if trimmed > 0 {
		s.log.Info().Int64("trimmed", trimmed).Str("stream", s.opts.MailStream).Msg("mail stream trimmed")
	}
}
