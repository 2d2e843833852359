package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-trademark-backend/internal/domain"
	"github.com/tbourn/go-trademark-backend/internal/observability"
)

// DefaultSpec is the delivery cadence used when none is configured.
const DefaultSpec = "@every 1m"

// deliverBatch caps how many intents a single run hands to the sink.
const deliverBatch = 100

// Dispatcher persists notification intents and delivers them when due.
type Dispatcher struct {
	db   *gorm.DB
	sink Sink
	spec string
	now  func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// NewDispatcher validates spec and returns a stopped dispatcher.
func NewDispatcher(db *gorm.DB, sink Sink, spec string) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("notify: nil db")
	}
	if sink == nil {
		sink = LogSink{}
	}
	if strings.TrimSpace(spec) == "" {
		spec = DefaultSpec
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("notify: invalid schedule %q: %w", spec, err)
	}
	return &Dispatcher{db: db, sink: sink, spec: spec, now: time.Now}, nil
}

// Schedule implements Scheduler by recording a pending intent.
func (d *Dispatcher) Schedule(ctx context.Context, title string, at time.Time) {
	now := d.now().UTC()
	rec := domain.NotificationIntent{
		ID:        uuid.NewString(),
		Title:     title,
		SendAt:    at.UTC(),
		Status:    domain.NotificationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := d.db.WithContext(ctx).Create(&rec).Error; err != nil {
		observability.NotificationsScheduled.WithLabelValues("failed").Inc()
		log.Ctx(ctx).Warn().Err(err).Str("title", title).Msg("schedule notification failed")
		return
	}
	observability.NotificationsScheduled.WithLabelValues("ok").Inc()
}

// DeliverDue hands every pending intent whose SendAt has passed to the sink
// and marks it delivered. Intents the sink rejects stay pending for the next
// run. It returns the number delivered.
func (d *Dispatcher) DeliverDue(ctx context.Context) (int, error) {
	var due []domain.NotificationIntent
	err := d.db.WithContext(ctx).
		Where("status = ? AND send_at <= ?", domain.NotificationPending, d.now().UTC()).
		Order("send_at ASC").
		Limit(deliverBatch).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, in := range due {
		n := Notification{ID: in.ID, Title: in.Title, SendAt: in.SendAt}
		if err := d.sink.Deliver(ctx, n); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("notification_id", in.ID).Msg("deliver notification failed")
			continue
		}
		at := d.now().UTC()
		err := d.db.WithContext(ctx).Model(&domain.NotificationIntent{}).
			Where("id = ? AND status = ?", in.ID, domain.NotificationPending).
			Updates(map[string]any{"status": domain.NotificationDelivered, "delivered_at": at, "updated_at": at}).Error
		if err != nil {
			return delivered, err
		}
		delivered++
		observability.NotificationsDelivered.Inc()
	}
	return delivered, nil
}

// Pending lists intents not yet delivered, soonest first.
func (d *Dispatcher) Pending(ctx context.Context) ([]domain.NotificationIntent, error) {
	var out []domain.NotificationIntent
	err := d.db.WithContext(ctx).
		Where("status = ?", domain.NotificationPending).
		Order("send_at ASC").
		Find(&out).Error
	return out, err
}

// Start runs DeliverDue on the configured schedule until Stop.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(d.spec, func() {
		n, err := d.DeliverDue(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("notification delivery run failed")
			return
		}
		if n > 0 {
			log.Info().Int("delivered", n).Msg("notifications delivered")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	d.cron = c
	log.Info().Str("schedule", d.spec).Msg("notification dispatcher started")
	return nil
}

// Stop halts the schedule and waits for a running delivery, bounded by ctx.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	c := d.cron
	d.cron = nil
	d.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
}
