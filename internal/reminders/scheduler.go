package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/bloodlab-platform/internal/observability/metrics"
	"github.com/wolfman30/bloodlab-platform/pkg/logging"
)

// ErrDuplicateKey is returned by Create when the dedup key is already used.
var ErrDuplicateKey = errors.New("reminders: dedup key already exists")

// Scheduler runs the generation and dispatch passes one at a time so the two
// never interleave writes to the event store.
type Scheduler struct {
	mu         sync.Mutex
	generator  *Generator
	dispatcher *Dispatcher
	metrics    *metrics.ReminderMetrics
	logger     *logging.Logger
	now        func() time.Time
}

func NewScheduler(generator *Generator, dispatcher *Dispatcher, m *metrics.ReminderMetrics, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Scheduler{generator: generator, dispatcher: dispatcher, metrics: m, logger: logger, now: time.Now}
}

// Generate runs one generation pass.
func (s *Scheduler) Generate(ctx context.Context) (GenerateReport, error) {
	ctx, span := tracer.Start(ctx, "reminders.generate")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	report, err := s.generator.Run(ctx, s.now())
	s.metrics.ObservePass("generate", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		s.logger.Error("reminder generation failed", "error", err)
		return report, err
	}
	s.logger.Info("reminder generation complete", "users", report.Users, "created", report.Created, "skipped", report.Skipped)
	return report, nil
}

// Dispatch runs one dispatch sweep.
func (s *Scheduler) Dispatch(ctx context.Context) (DispatchReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := time.Now()
	report, err := s.dispatcher.Sweep(ctx, s.now())
	s.metrics.ObservePass("dispatch", time.Since(start).Seconds())
	if err != nil {
		s.logger.Error("reminder dispatch failed", "error", err)
		return report, err
	}
	if report.Due > 0 {
		s.logger.Info("reminder dispatch complete", "due", report.Due, "delivered", report.Delivered, "failed", report.Failed, "not_logged_in", report.NotLoggedIn)
	}
	return report, nil
}

// Create stores a manually scheduled event. Without a dedup key the event
// gets "manual:<id>".
func (s *Scheduler) Create(ctx context.Context, ev Event) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev.Sent, ev.SentAt, ev.SID, ev.Error = false, nil, "", ""
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.DedupKey == "" {
		ev.DedupKey = "manual:" + ev.ID
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if ev.ScheduledAt.IsZero() {
		ev.ScheduledAt = ev.CreatedAt
	}
	inserted, err := s.generator.events.Insert(ctx, ev)
	if err != nil {
		return Event{}, err
	}
	if !inserted {
		return Event{}, ErrDuplicateKey
	}
	return ev, nil
}

// List returns every event, newest first.
func (s *Scheduler) List(ctx context.Context) ([]Event, error) {
	return s.generator.events.List(ctx)
}
