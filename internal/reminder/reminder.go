// Package reminder sends "time to plant" messages for plantings due today
package reminder

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/abelzeko/garden-bot/internal/calendar"
	"github.com/abelzeko/garden-bot/internal/usecases"
)

// Notifier delivers a text message to a chat
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Source lists the reminders due on a day
type Source interface {
	DuePlantings(day calendar.Date) ([]usecases.Reminder, error)
}

// Runner collects due plantings and notifies their owners with bounded concurrency
type Runner struct {
	source      Source
	notifier    Notifier
	logger      *zap.Logger
	concurrency int
	location    *time.Location
	now         func() time.Time
}

// NewRunner creates a reminder runner. loc decides which calendar day "today" is.
func NewRunner(source Source, notifier Notifier, logger *zap.Logger, concurrency int, loc *time.Location) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		source:      source,
		notifier:    notifier,
		logger:      logger,
		concurrency: concurrency,
		location:    loc,
		now:         time.Now,
	}
}

// RunOnce sends every reminder due today and reports how many were delivered.
// A failed delivery does not stop the others.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	day := calendar.DateOf(r.now().In(r.location))
	due, err := r.source.DuePlantings(day)
	if err != nil {
		return 0, fmt.Errorf("failed to collect due plantings for %s: %w", day, err)
	}

	var sent, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for _, rem := range due {
		g.Go(func() error {
			if err := r.notifier.Notify(ctx, rem.ChatID, rem.Message); err != nil {
				failed.Add(1)
				r.logger.Warn("Failed to send planting reminder",
					zap.String("user_id", rem.UserID),
					zap.String("plant_id", rem.Entry.ID),
					zap.Error(err))
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	r.logger.Info("Planting reminders sent",
		zap.String("date", day.String()),
		zap.Int64("sent", sent.Load()),
		zap.Int64("failed", failed.Load()))

	if n := failed.Load(); n > 0 {
		return int(sent.Load()), fmt.Errorf("%d of %d reminders failed", n, len(due))
	}
	return int(sent.Load()), nil
}

// Schedule registers the runner on c using a standard cron spec
func (r *Runner) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Scheduled reminder run failed", zap.Error(err))
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to set up cron job %q: %w", spec, err)
	}
	return id, nil
}
