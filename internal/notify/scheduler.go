package notify

import (
	"context"
	"time"

	"github.com/tastebook/tastebook-api/internal/logging"
)

// Sender delivers a digest message. Implemented by Telegram.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// MessageFunc builds the message for a given day.
type MessageFunc func(ctx context.Context, now time.Time) (string, error)

// Scheduler fires the daily digest at a fixed local wall-clock time.
type Scheduler struct {
	sendAt  string // "15:04"
	message MessageFunc
	sender  Sender
	logger  *logging.Logger
	now     func() time.Time
}

func NewScheduler(sendAt string, message MessageFunc, sender Sender, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		sendAt:  sendAt,
		message: message,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
	}
}

// Run blocks until the context is cancelled, sending one digest per day at
// the configured time. A failed send is logged and retried the next day;
// there is no intra-day retry.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait := time.Until(s.nextRun())
		s.logger.Info("daily digest scheduled", "in", wait.Round(time.Second).String())

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("digest scheduler stopped")
			return
		case <-timer.C:
		}

		s.sendOnce(ctx)
	}
}

func (s *Scheduler) sendOnce(ctx context.Context) {
	sendCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	now := s.now()
	text, err := s.message(sendCtx, now)
	if err != nil {
		s.logger.Error("failed to build daily digest", "error", err.Error())
		return
	}

	if err := s.sender.Send(sendCtx, text); err != nil {
		s.logger.Error("failed to send daily digest", "error", err.Error())
		return
	}

	s.logger.Info("daily digest sent")
}

// nextRun returns the next occurrence of the configured wall-clock time,
// today if it is still ahead, otherwise tomorrow.
func (s *Scheduler) nextRun() time.Time {
	now := s.now()
	at, _ := time.Parse("15:04", s.sendAt) // validated at config load

	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
