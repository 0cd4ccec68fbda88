// Package opts centralizes per-stage activity options: the timeouts decided
// for each stage and the shared backoff shape (1s initial, 2.0 coefficient,
// 30s cap). Validation and policy error classes are never retried.
package opts

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/draftline-ai/orchestrator/internal/faults"
)

func retryPolicy(maxAttempts int) *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:        time.Second,
		BackoffCoefficient:     2.0,
		MaximumInterval:        30 * time.Second,
		MaximumAttempts:        int32(maxAttempts),
		NonRetryableErrorTypes: faults.NonRetryableClasses(),
	}
}

func with(ctx workflow.Context, timeout time.Duration, attempts int) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy:         retryPolicy(attempts),
	})
}

// WithConfigOptions covers the funnel config snapshot.
func WithConfigOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 5*time.Second, 3)
}

// WithLookupOptions covers the knowledge lookup, which never errors; the
// second attempt only guards against worker loss.
func WithLookupOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 15*time.Second, 2)
}

// WithSearchOptions covers the broad-search stage.
func WithSearchOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 60*time.Second, 3)
}

// WithCrawlOptions covers one candidate crawl. attempts is the per-candidate
// retry budget from funnel config.
func WithCrawlOptions(ctx workflow.Context, attempts int) workflow.Context {
	if attempts < 1 {
		attempts = 1
	}
	return with(ctx, 90*time.Second, attempts)
}

// WithEscalateOptions covers the deep-search escalation.
func WithEscalateOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 60*time.Second, 2)
}

// WithGenerateOptions covers draft generation.
func WithGenerateOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 180*time.Second, 3)
}

// WithMediaOptions covers media asset generation.
func WithMediaOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 120*time.Second, 2)
}

// WithPolicyOptions covers the publish gate.
func WithPolicyOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 10*time.Second, 2)
}

// WithPersistOptions covers the transactional result write.
func WithPersistOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 30*time.Second, 3)
}

// WithDepositOptions covers the fire-and-forget knowledge deposit.
func WithDepositOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 120*time.Second, 2)
}

// WithSnapshotOptions covers terminal snapshot archiving, single attempt.
func WithSnapshotOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 15*time.Second, 1)
}

// WithProgressOptions covers event emission, single attempt.
func WithProgressOptions(ctx workflow.Context) workflow.Context {
	return with(ctx, 5*time.Second, 1)
}
