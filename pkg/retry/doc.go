// Package retry runs an operation again with exponential backoff and jitter
// until it succeeds, fails permanently or runs out of attempts or time.
//
// Callers pick a preset and a predicate for which errors are worth another try:
//
//	err := retry.DoWithRetryable(ctx, retry.StorageConfig(), func(ctx context.Context) error {
//	    return store.insert(ctx, entry)
//	}, retry.Any(retry.DefaultRetryable, shared.IsTransient))
//
// Config.Now and Config.After can be replaced to drive the backoff without
// real sleeps in tests.
package retry
