// Package scheduler arms time-of-day jobs and repeats them on a fixed interval.
//
// Features:
//   - Next fire time computed with a github.com/robfig/cron/v3 daily schedule
//     in the configured location; a time that is not strictly in the future
//     lands on the next day
//   - One live timer per job id; scheduling an existing id replaces it
//   - Optional repeats bounded by a retry limit, with a terminal log entry
//     once the limit is reached
//   - Cancellation by id that stops future firings but not in-flight requests
//   - Injectable clock so timing can be driven by a fake in tests
//   - Parent context support, idempotent Start/Stop and StopContext
//   - Panic recovery and optional hooks for observability
//
// Basic usage:
//
//	s := New(Config{Logger: logger, Runner: runner, Log: store})
//	s.Start()
//	defer s.Stop()
//
//	next, err := s.Schedule(ctx, Spec{
//		ID:            "job-1",
//		Requests:      reqs,
//		At:            job.TimeOfDay{Hour: 9},
//		RetryInterval: 30 * time.Second,
//		RetryLimit:    &limit,
//	})
//
//	s.Cancel("job-1")
//
// Lifecycle of a job id:
//
//	Armed -> (first firing) -> Repeating -> (limit reached or cancel) -> Terminated
//	Armed -> (first firing, no repeats) -> Terminated
package scheduler
