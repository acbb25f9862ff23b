// Package scheduler runs the periodic fissure notification cycle.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"warframe_bot/internal/bot"
	"warframe_bot/internal/filter"
	"warframe_bot/internal/metrics"
	"warframe_bot/internal/model"
	"warframe_bot/internal/storage"
)

// DefaultSchedule is the cycle cadence in cron descriptor syntax.
const DefaultSchedule = "@every 5m"

// ledgerFallback bounds ledger rows for fissures without an expiry.
const ledgerFallback = 24 * time.Hour

// Sender is the interface for sending Telegram messages.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// Snapshotter provides the current world state. *feed.Cache implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (*model.Snapshot, error)
}

// Scheduler periodically matches fissures against every subscriber's filter
// and sends notifications.
type Scheduler struct {
	store    storage.Storage
	feed     Snapshotter
	sender   Sender
	log      *slog.Logger
	schedule string
	limiter  *rate.Limiter
	dedup    bool
	now      func() time.Time
}

// New creates a Scheduler with the default schedule and a 20 msg/s send rate.
func New(store storage.Storage, feed Snapshotter, sender Sender, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		feed:     feed,
		sender:   sender,
		log:      log,
		schedule: DefaultSchedule,
		limiter:  rate.NewLimiter(rate.Limit(20), 1),
		now:      time.Now,
	}
}

// SetSchedule overrides the cron schedule, e.g. "@every 1m" or "*/5 * * * *".
func (s *Scheduler) SetSchedule(spec string) {
	s.schedule = spec
}

// SetSendRate limits outbound messages to perSecond. Zero or less disables the limit.
func (s *Scheduler) SetSendRate(perSecond float64) {
	if perSecond <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 1)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
}

// SetDedup enables skipping fissures a chat was already notified about.
func (s *Scheduler) SetDedup(on bool) {
	s.dedup = on
}

// Run runs one cycle immediately and then on the configured schedule,
// blocking until ctx is cancelled. A cycle still running at shutdown is
// allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	cronLog := cron.PrintfLogger(slog.NewLogLogger(s.log.Handler(), slog.LevelWarn))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(s.schedule, func() { s.notifyAll(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", s.schedule, err)
	}

	s.notifyAll(ctx)

	c.Start()
	s.log.Info("scheduler started", "schedule", s.schedule, "dedup", s.dedup)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Scheduler) notifyAll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := s.now()
	defer func() {
		metrics.NotifyCycleDuration.Observe(time.Since(start).Seconds())
	}()

	snap, err := s.feed.Snapshot(ctx)
	if err != nil {
		s.log.Warn("notify cycle skipped: no world state", "error", err)
		metrics.NotifyCycles.WithLabelValues("no_data").Inc()
		return
	}

	subs, err := s.store.ListSubscribers(ctx)
	if err != nil {
		s.log.Error("list subscribers", "error", err)
		metrics.NotifyCycles.WithLabelValues("store_error").Inc()
		return
	}

	if s.dedup {
		if n, err := s.store.PruneNotified(ctx, s.now()); err != nil {
			s.log.Error("prune notified fissures", "error", err)
		} else if n > 0 {
			s.log.Debug("pruned notified fissures", "count", n)
		}
	}

	// Subscribers are processed to completion once the cycle has started.
	work := context.WithoutCancel(ctx)
	total := 0
	for _, sub := range subs {
		sent, err := s.notifySubscriber(work, sub, snap.Fissures)
		total += sent
		if err != nil {
			metrics.SubscriberErrors.Inc()
			s.log.Error("notify subscriber", "chat_id", sub.ChatID, "error", err)
		}
	}

	metrics.NotifyCycles.WithLabelValues("ok").Inc()
	if total > 0 {
		s.log.Info("sent notifications", "subscribers", len(subs), "count", total)
	}
}

func (s *Scheduler) notifySubscriber(ctx context.Context, sub model.Subscriber, fissures []model.Fissure) (sent int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if !sub.HasTopic(model.TopicFissures) {
		return 0, nil
	}
	if sub.FilterReset {
		s.log.Warn("using open filter for unreadable stored filter", "chat_id", sub.ChatID)
	}
	loc := s.location(sub)

	for _, f := range filter.Select(fissures, sub.Filter) {
		if s.dedup {
			seen, err := s.store.IsNotified(ctx, sub.ChatID, f.Key())
			if err != nil {
				s.log.Error("check notified", "chat_id", sub.ChatID, "fissure", f.Key(), "error", err)
				continue
			}
			if seen {
				continue
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return sent, fmt.Errorf("rate limit: %w", err)
		}
		if err := s.sender.SendMessage(sub.ChatID, bot.FormatFissureNotification(f, loc)); err != nil {
			metrics.NotificationsFailed.Inc()
			s.log.Warn("send notification", "chat_id", sub.ChatID, "fissure", f.Key(), "error", err)
			continue
		}
		metrics.NotificationsSent.Inc()
		sent++

		if s.dedup {
			expires := f.ExpiresAt()
			if expires.IsZero() {
				expires = s.now().Add(ledgerFallback)
			}
			if err := s.store.MarkNotified(ctx, sub.ChatID, f.Key(), expires); err != nil {
				s.log.Error("mark notified", "chat_id", sub.ChatID, "fissure", f.Key(), "error", err)
			}
		}
	}
	return sent, nil
}

func (s *Scheduler) location(sub model.Subscriber) *time.Location {
	loc, err := model.LoadLocation(sub.Timezone)
	if err == nil {
		return loc
	}
	s.log.Warn("invalid subscriber timezone, using default", "chat_id", sub.ChatID, "timezone", sub.Timezone)
	if loc, err := time.LoadLocation(model.DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}
