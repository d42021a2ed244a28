package registration

import (
	"context"
	"log/slog"

	"jobrelay/internal/domain/job"
)

// Dispatcher sends a single request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req job.Request) (job.Response, error)
}

// Appender records log entries.
type Appender interface {
	Append(jobID string, p job.Payload) job.Entry
}

// BatchRunner dispatches a batch sequentially in submission order and logs
// one entry per request. A failed request never stops the batch.
type BatchRunner struct {
	dispatcher Dispatcher
	log        Appender
	logger     *slog.Logger
}

// NewBatchRunner creates a BatchRunner.
func NewBatchRunner(d Dispatcher, log Appender, logger *slog.Logger) *BatchRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchRunner{dispatcher: d, log: log, logger: logger.With("component", "batch")}
}

// Run executes reqs and returns one outcome per request.
func (r *BatchRunner) Run(ctx context.Context, jobID string, reqs []job.Request) []job.Outcome {
	outs := make([]job.Outcome, 0, len(reqs))
	for _, req := range reqs {
		resp, err := r.dispatcher.Dispatch(ctx, req)
		r.log.Append(jobID, job.DispatchPayload(req, resp, err))
		if err != nil {
			r.logger.Warn("dispatch failed", "job_id", jobID, "title", req.DisplayTitle(), "error", err)
			outs = append(outs, job.Outcome{Success: false, Error: err.Error()})
			continue
		}
		outs = append(outs, job.Outcome{Success: true, Data: resp})
	}
	return outs
}
