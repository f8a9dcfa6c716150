package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/housemgr/internal/config"
	"github.com/teemow/housemgr/internal/handler"
	"github.com/teemow/housemgr/internal/instrumentation"
	"github.com/teemow/housemgr/internal/logging"
)

// ErrNotConfigured is returned by Run and RunOnce before Configure.
var ErrNotConfigured = errors.New("manager is not configured")

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// EmailHandler is the part of handler.EmailHandler the manager drives.
type EmailHandler interface {
	Configure(ctx context.Context) error
	Config() *config.Config
	ReadEmail(ctx context.Context) (*handler.ReadSummary, error)
	SendMessage(ctx context.Context, sender, to, subject, html, plain, attachmentFile string) (string, error)
}

// PassObserver is notified after every read pass.
type PassObserver interface {
	PassCompleted(started time.Time, processed int, err error)
}

// Manager runs read passes for one configuration file.
type Manager struct {
	configFile string

	handler   EmailHandler
	handlerOp []handler.Option
	observers []PassObserver
	logger    *slog.Logger
	metrics   *instrumentation.Metrics

	cfg      *config.Config
	schedule cron.Schedule

	// IDs of messages left unread that a report has already listed.
	mu       sync.Mutex
	reported map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *instrumentation.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithHandler uses h instead of a handler built from the configuration file.
func WithHandler(h EmailHandler) Option {
	return func(m *Manager) { m.handler = h }
}

// WithHandlerOptions passes extra options to the handler the manager builds.
func WithHandlerOptions(opts ...handler.Option) Option {
	return func(m *Manager) { m.handlerOp = append(m.handlerOp, opts...) }
}

// WithObserver registers o to be told about every pass.
func WithObserver(o PassObserver) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// New returns a manager for the configuration file at configFile.
func New(configFile string, opts ...Option) *Manager {
	m := &Manager{
		configFile: configFile,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.handler == nil {
		hopts := []handler.Option{
			handler.WithLogger(m.logger),
			handler.WithMetrics(m.metrics),
		}
		m.handler = handler.New(configFile, append(hopts, m.handlerOp...)...)
	}
	return m
}

// Configure configures the handler and validates the [Manager] section.
func (m *Manager) Configure(ctx context.Context) error {
	if err := m.handler.Configure(ctx); err != nil {
		return err
	}
	cfg := m.handler.Config()

	var schedule cron.Schedule
	if expr := cfg.Manager.Schedule; expr != "" {
		s, err := scheduleParser.Parse(expr)
		if err != nil {
			return fmt.Errorf("%w: [%s] %s %q: %v", config.ErrInvalid, config.SectionManager, config.KeySchedule, expr, err)
		}
		schedule = s
	}

	m.cfg = cfg
	m.schedule = schedule
	return nil
}

// Run performs a single pass when no schedule is configured. Otherwise it
// runs passes on the schedule until ctx is cancelled and waits for a
// running pass to finish before returning.
func (m *Manager) Run(ctx context.Context) error {
	if m.cfg == nil {
		return ErrNotConfigured
	}
	if m.schedule == nil {
		_, err := m.RunOnce(ctx)
		return err
	}

	cronLogger := logging.NewCronAdapter(m.logger)
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	id := c.Schedule(m.schedule, cron.FuncJob(func() {
		// Errors are logged and reported to observers by RunOnce.
		_, _ = m.RunOnce(ctx)
	}))

	c.Start()
	m.logger.Info("scheduler started",
		"schedule", m.cfg.Manager.Schedule,
		"next_run", c.Entry(id).Next)

	<-ctx.Done()
	m.logger.Info("stopping scheduler")
	<-c.Stop().Done()
	return nil
}

// RunOnce reads all unread mail and, when messages were handled and [Manager]
// report_to is set, sends a report about them. Messages left unread that an
// earlier report already listed are not reported again while they stay
// unread. A panic during the pass is returned as an error.
func (m *Manager) RunOnce(ctx context.Context) (summary *handler.ReadSummary, err error) {
	if m.cfg == nil {
		return nil, ErrNotConfigured
	}
	ctx, span := instrumentation.StartSpan(ctx, "housemgr.pass")
	logger := logging.WithOperation(m.logger, "pass")
	if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
		logger = logger.With("trace_id", traceID)
	}
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pass panicked: %v", r)
			logger.Error("pass panicked", "panic", r, "stack", string(debug.Stack()))
		}

		processed := 0
		if summary != nil {
			processed = summary.Processed()
		}
		span.SetAttributes(attribute.Int(instrumentation.SpanAttrCount, processed))
		instrumentation.EndSpan(span, err)

		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
			logger.Error("pass failed", logging.Count(processed), logging.Err(err))
		} else {
			logger.Info("pass finished", logging.Count(processed), "duration", time.Since(started).Round(time.Millisecond))
		}
		m.metrics.RecordPass(ctx, status, time.Since(started))
		for _, o := range m.observers {
			o.PassCompleted(started, processed, err)
		}
	}()

	summary, err = m.handler.ReadEmail(ctx)
	if err != nil || m.cfg.Manager.ReportTo == "" {
		return summary, err
	}

	fresh, unread := m.unreported(summary)
	if len(fresh) > 0 {
		err = m.sendReport(ctx, &handler.ReadSummary{Messages: fresh}, started)
		instrumentation.AddSpanEvent(span, "report")
		if err != nil {
			return summary, err
		}
	} else if summary.Processed() > 0 {
		logger.Debug("all unread messages already reported", logging.Count(summary.Processed()))
	}

	m.mu.Lock()
	m.reported = unread
	m.mu.Unlock()
	return summary, nil
}

// unreported returns the messages of summary no earlier report listed, and
// the IDs of the messages the pass left unread.
func (m *Manager) unreported(summary *handler.ReadSummary) ([]handler.MessageSummary, map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var fresh []handler.MessageSummary
	unread := make(map[string]struct{})
	for _, ms := range summary.Messages {
		if !ms.MarkedRead {
			unread[ms.ID] = struct{}{}
			if _, ok := m.reported[ms.ID]; ok {
				continue
			}
		}
		fresh = append(fresh, ms)
	}
	return fresh, unread
}

func (m *Manager) sendReport(ctx context.Context, summary *handler.ReadSummary, started time.Time) error {
	html, plain, err := renderReport(summary, started)
	if err != nil {
		return err
	}
	_, err = m.handler.SendMessage(ctx, m.cfg.Mail.Sender, m.cfg.Manager.ReportTo, m.cfg.Manager.ReportSubject, html, plain, "")
	if err != nil {
		return fmt.Errorf("failed to send report: %w", err)
	}
	return nil
}
