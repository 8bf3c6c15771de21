package reminders

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/bloodlab-platform/internal/notify"
	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/internal/records"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

var tracer = otel.Tracer("bloodlab.internal.reminders")

// DispatchReport summarizes one sweep.
type DispatchReport struct {
	Due          int `json:"due"`
	Delivered    int `json:"delivered"`
	Failed       int `json:"failed"`
	NotLoggedIn  int `json:"notLoggedIn"`
	UserNotFound int `json:"userNotFound"`
	Deferred     int `json:"deferred"`
}

// DispatcherConfig bounds the sink calls of a sweep.
type DispatcherConfig struct {
	SinkTimeout time.Duration
	Concurrency int
}

// Dispatcher delivers due events through the notification sink. Every event
// it handles is closed, delivered or not; nothing is retried.
type Dispatcher struct {
	store    *records.Store
	events   EventStore
	sessions Sessions
	sink     notify.Sink
	cfg      DispatcherConfig
	metrics  *metrics.ReminderMetrics
	logger   *logging.Logger
}

func NewDispatcher(store *records.Store, events EventStore, sessions Sessions, sink notify.Sink, cfg DispatcherConfig, m *metrics.ReminderMetrics, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = 15 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{store: store, events: events, sessions: sessions, sink: sink, cfg: cfg, metrics: m, logger: logger}
}

type pending struct {
	event    Event
	user     records.User
	delivery Delivery
	outcome  string
}

// Sweep closes every event due at now. Events whose user or session cannot be
// checked because of a store error stay unsent for the next sweep.
func (d *Dispatcher) Sweep(ctx context.Context, now time.Time) (DispatchReport, error) {
	ctx, span := tracer.Start(ctx, "reminders.dispatch")
	defer span.End()

	var report DispatchReport
	due, err := d.events.ListDue(ctx, now)
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	report.Due = len(due)
	span.SetAttributes(attribute.Int("bloodlab.due", len(due)))
	if len(due) == 0 {
		return report, nil
	}

	var closed []*pending
	var sends []*pending
	for _, ev := range due {
		p := &pending{event: ev}
		active, err := d.sessions.HasActiveSession(ctx, ev.UserID)
		if err != nil {
			d.logger.Warn("session check failed, deferring reminder", "dedup_key", ev.DedupKey, "error", err)
			report.Deferred++
			continue
		}
		if !active {
			p.delivery = Delivery{SentAt: now, Error: ErrMsgNotLoggedIn}
			p.outcome = "not_logged_in"
			report.NotLoggedIn++
			closed = append(closed, p)
			continue
		}
		user, err := d.store.Users.Get(ctx, ev.UserID)
		if errors.Is(err, records.ErrNotFound) {
			p.delivery = Delivery{SentAt: now, Error: ErrMsgNoUser}
			p.outcome = "user_not_found"
			report.UserNotFound++
			closed = append(closed, p)
			continue
		}
		if err != nil {
			d.logger.Warn("user lookup failed, deferring reminder", "dedup_key", ev.DedupKey, "error", err)
			report.Deferred++
			continue
		}
		p.user = user
		sends = append(sends, p)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Concurrency)
	for _, p := range sends {
		g.Go(func() error {
			d.send(gctx, p, now)
			return nil
		})
	}
	_ = g.Wait()

	for _, p := range sends {
		if p.outcome == "delivered" {
			report.Delivered++
		} else {
			report.Failed++
		}
	}

	// Store writes are applied one at a time after all sends return.
	for _, p := range append(closed, sends...) {
		if err := d.events.MarkSent(ctx, p.event.ID, p.delivery); err != nil {
			d.logger.Error("failed to close reminder", "dedup_key", p.event.DedupKey, "error", err)
			continue
		}
		d.metrics.ObserveDispatched(string(p.event.Kind), p.outcome)
	}
	return report, nil
}

func (d *Dispatcher) send(ctx context.Context, p *pending, now time.Time) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SinkTimeout)
	defer cancel()

	res := notify.Result{Error: "notifications not configured"}
	if d.sink != nil {
		res = d.sink.Send(sendCtx, p.user, p.event.Kind, notify.TemplateData{
			TestName: p.event.TestName,
			TestDate: p.event.TestDate,
		})
	}
	if res.Success {
		p.delivery = Delivery{SentAt: now, SID: res.MessageID}
		p.outcome = "delivered"
		d.logger.Info("reminder sent", "dedup_key", p.event.DedupKey, "user_id", p.user.ID, "sid", res.MessageID)
		return
	}
	msg := res.Error
	if msg == "" {
		msg = "Failed to send"
	}
	p.delivery = Delivery{SentAt: now, Error: msg}
	p.outcome = "failed"
	d.logger.Warn("reminder not delivered", "dedup_key", p.event.DedupKey, "user_id", p.user.ID, "error", msg)
}
