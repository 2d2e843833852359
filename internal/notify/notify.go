// Package notify implements the deadline notification contract. Scheduling
// is fire-and-forget: Schedule never returns an error and never blocks the
// caller on delivery. Failures are logged and counted only.
//
// Two implementations are provided:
//
//   - Dispatcher records intents in the notification_intents table and a
//     cron job delivers the due ones to a Sink.
//   - LogScheduler hands every request straight to a Sink; it is used when
//     no database is wired (CLI, tests).
package notify

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-trademark-backend/internal/observability"
)

// Scheduler accepts deadline reminders.
type Scheduler interface {
	Schedule(ctx context.Context, title string, at time.Time)
}

// Notification is the payload handed to a Sink.
type Notification struct {
	ID     string    `json:"id"`
	Title  string    `json:"title"`
	SendAt time.Time `json:"send_at"`
}

// Sink receives due notifications.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error { return f(ctx, n) }

// LogSink writes notifications to a zerolog logger.
type LogSink struct {
	Logger *zerolog.Logger
}

// Deliver implements Sink.
func (s LogSink) Deliver(_ context.Context, n Notification) error {
	l := s.Logger
	if l == nil {
		l = &log.Logger
	}
	l.Info().
		Str("notification_id", n.ID).
		Str("title", n.Title).
		Time("send_at", n.SendAt).
		Msg("deadline reminder")
	return nil
}

// LogScheduler forwards every request to Sink immediately.
type LogScheduler struct {
	Sink Sink
}

// Schedule implements Scheduler.
func (s LogScheduler) Schedule(ctx context.Context, title string, at time.Time) {
	sink := s.Sink
	if sink == nil {
		sink = LogSink{}
	}
	if err := sink.Deliver(ctx, Notification{Title: title, SendAt: at}); err != nil {
		observability.NotificationsScheduled.WithLabelValues("failed").Inc()
		zerolog.Ctx(ctx).Warn().Err(err).Str("title", title).Msg("notification sink failed")
		return
	}
	observability.NotificationsScheduled.WithLabelValues("ok").Inc()
}
