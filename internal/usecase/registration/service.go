// Package registration validates request batches and runs them at once or
// hands them to the scheduler.
package registration

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"time"

	"golang.org/x/net/http/httpguts"

	"jobrelay/internal/adapter/scheduler"
	"jobrelay/internal/domain/job"
	"jobrelay/internal/platform/clock"
	"jobrelay/internal/shared"
)

// Scheduler arms and cancels timed jobs.
type Scheduler interface {
	Schedule(ctx context.Context, spec scheduler.Spec) (time.Time, error)
	Cancel(jobID string) bool
	Jobs() []scheduler.JobInfo
}

// LogReader is the read side of the log store.
type LogReader interface {
	GetByJob(jobID string) []job.Entry
	GetAll() []job.Entry
}

// History reads archived entries.
type History interface {
	Recent(ctx context.Context, jobID string, limit int) ([]job.ArchivedEntry, error)
}

// MaxRetryIntervalSeconds is the largest interval that fits a time.Duration.
const MaxRetryIntervalSeconds = math.MaxInt64 / int64(time.Second)

// Registration is one submitted batch with its scheduling parameters.
type Registration struct {
	Requests      []job.Request
	ScheduledTime string
	// RetryInterval is in seconds; nil or 0 disables repeats.
	RetryInterval *int
	// RetryCount bounds repeats; nil means unbounded.
	RetryCount *int
}

// Result summarizes a registration.
type Result struct {
	Success       bool          `json:"success"`
	Message       string        `json:"message"`
	Data          []job.Outcome `json:"data,omitempty"`
	Scheduled     bool          `json:"scheduled"`
	RequestID     string        `json:"requestId"`
	ScheduledTime string        `json:"scheduledTime,omitempty"`
	RetryInterval *int          `json:"retryInterval,omitempty"`
	RetryCount    *int          `json:"retryCount,omitempty"`
	NextRun       *time.Time    `json:"nextRun,omitempty"`
}

// Config holds Service dependencies. History is optional.
type Config struct {
	Runner    *BatchRunner
	Scheduler Scheduler
	Logs      LogReader
	History   History
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Service is the registration use case.
type Service struct {
	runner  *BatchRunner
	sched   Scheduler
	logs    LogReader
	history History
	clock   clock.Clock
	log     *slog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		runner:  cfg.Runner,
		sched:   cfg.Scheduler,
		logs:    cfg.Logs,
		history: cfg.History,
		clock:   clk,
		log:     logger.With("component", "registration"),
	}
}

// Register validates reg and either runs it now or schedules it.
func (s *Service) Register(ctx context.Context, reg Registration) (Result, error) {
	if err := validate(reg); err != nil {
		return Result{}, err
	}
	reqs := job.CloneAll(reg.Requests)

	if reg.ScheduledTime == "" {
		return s.runNow(ctx, reqs), nil
	}

	at, err := job.ParseTimeOfDay(reg.ScheduledTime)
	if err != nil {
		return Result{}, invalid("scheduledTime", "%v", err)
	}
	var interval time.Duration
	if reg.RetryInterval != nil {
		interval = time.Duration(*reg.RetryInterval) * time.Second
	}

	id := newID(scheduledPrefix, s.clock.Now())
	next, err := s.sched.Schedule(ctx, scheduler.Spec{
		ID:            id,
		Requests:      reqs,
		At:            at,
		RetryInterval: interval,
		RetryLimit:    reg.RetryCount,
	})
	if err != nil {
		return Result{}, shared.Wrap(err, "schedule")
	}
	s.log.Info("batch scheduled", "job_id", id, "requests", len(reqs), "next_run", next)

	return Result{
		Success:       true,
		Message:       scheduledMessage(len(reqs), at, reg.RetryInterval, reg.RetryCount),
		Scheduled:     true,
		RequestID:     id,
		ScheduledTime: reg.ScheduledTime,
		RetryInterval: reg.RetryInterval,
		RetryCount:    reg.RetryCount,
		NextRun:       &next,
	}, nil
}

// runNow attempts the whole batch even if the caller goes away; the client
// timeout still bounds each request.
func (s *Service) runNow(ctx context.Context, reqs []job.Request) Result {
	id := newID(immediatePrefix, s.clock.Now())
	outs := s.runner.Run(context.WithoutCancel(ctx), id, reqs)
	ok := job.Succeeded(outs)
	s.log.Info("batch dispatched", "job_id", id, "ok", ok, "total", len(reqs))
	return Result{
		Success:   true,
		Message:   fmt.Sprintf("Registered %d/%d request(s) successfully", ok, len(reqs)),
		Data:      outs,
		Scheduled: false,
		RequestID: id,
	}
}

func scheduledMessage(n int, at job.TimeOfDay, interval, count *int) string {
	msg := fmt.Sprintf("Scheduled %d request(s) at %s", n, at)
	if interval != nil && *interval > 0 && (count == nil || *count > 0) {
		msg += fmt.Sprintf(" and will retry every %d seconds", *interval)
		if count != nil {
			msg += fmt.Sprintf(" (up to %d times)", *count)
		}
	}
	return msg
}

// Cancel stops a live scheduled job.
func (s *Service) Cancel(jobID string) error {
	if jobID == "" {
		return invalid("requestId", "is required")
	}
	if !s.sched.Cancel(jobID) {
		return shared.Wrapf(shared.ErrNotFound, "job %s", jobID)
	}
	return nil
}

// Logs returns one job's entries in insertion order, or every entry newest
// first when jobID is empty.
func (s *Service) Logs(jobID string) []job.Entry {
	if jobID != "" {
		return s.logs.GetByJob(jobID)
	}
	return s.logs.GetAll()
}

// Jobs lists live scheduled jobs.
func (s *Service) Jobs() []scheduler.JobInfo {
	return s.sched.Jobs()
}

// History reads archived entries, newest first.
func (s *Service) History(ctx context.Context, jobID string, limit int) ([]job.ArchivedEntry, error) {
	if s.history == nil {
		return nil, shared.Wrap(shared.ErrUnavailable, "history archive disabled")
	}
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	return s.history.Recent(ctx, jobID, limit)
}

func validate(reg Registration) error {
	if len(reg.Requests) == 0 {
		return invalid("requests", "at least one request is required")
	}
	for i, r := range reg.Requests {
		field := fmt.Sprintf("requests[%d]", i)
		if r.URL == "" {
			return invalid(field+".url", "is required")
		}
		u, err := url.Parse(r.URL)
		if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return invalid(field+".url", "%q is not an absolute http(s) url", r.URL)
		}
		if r.Headers == nil {
			return invalid(field+".headers", "is required")
		}
		for k, v := range r.Headers {
			if !httpguts.ValidHeaderFieldName(k) {
				return invalid(field+".headers", "invalid header name %q", k)
			}
			if !httpguts.ValidHeaderFieldValue(v) {
				return invalid(field+".headers", "invalid value for header %q", k)
			}
		}
		if r.Cookies != "" && !httpguts.ValidHeaderFieldValue(r.Cookies) {
			return invalid(field+".cookies", "invalid cookie value")
		}
	}
	if reg.RetryInterval != nil && *reg.RetryInterval < 0 {
		return invalid("retryInterval", "must not be negative")
	}
	if reg.RetryInterval != nil && int64(*reg.RetryInterval) > MaxRetryIntervalSeconds {
		return invalid("retryInterval", "must not exceed %d seconds", MaxRetryIntervalSeconds)
	}
	if reg.RetryCount != nil && *reg.RetryCount < 0 {
		return invalid("retryCount", "must not be negative")
	}
	return nil
}
