package deploy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"epideploy/internal/api"
)

const (
	// MinPollInterval and MaxPollInterval bound the --poll-interval flag.
	MinPollInterval = 5 * time.Second
	MaxPollInterval = 300 * time.Second

	// consecutive transport failures tolerated before the watch gives up
	maxConsecutiveFailures = 3
)

// ClampInterval converts a seconds flag into a poll interval within the
// supported bounds.
func ClampInterval(seconds int) time.Duration {
	interval := time.Duration(seconds) * time.Second
	if interval < MinPollInterval {
		return MinPollInterval
	}
	if interval > MaxPollInterval {
		return MaxPollInterval
	}
	return interval
}

// WatchOptions tunes one watch session.
type WatchOptions struct {
	// Interval between polls. Commands pass it through ClampInterval;
	// zero falls back to MinPollInterval.
	Interval time.Duration
	// ContinueOnErrors keeps polling after the deployment reports errors
	// instead of terminating the session.
	ContinueOnErrors bool
}

// Outcome is the reason a watch session ended without error.
type Outcome string

const (
	OutcomeSucceeded            Outcome = "Succeeded"
	OutcomeFailed               Outcome = "Failed"
	OutcomeAwaitingVerification Outcome = "AwaitingVerification"
)

// WatchResult is the final observation of a watch session.
type WatchResult struct {
	Deployment api.Deployment
	Outcome    Outcome
}

// pollSession is the per-watch state. It exists only for the lifetime of
// one Watch call.
type pollSession struct {
	lastStatus            string
	lastProgress          int
	lastErrorCount        int
	lastWarningCount      int
	consecutiveFailures   int
	errorsShown           bool
	continuingNoticeShown bool
}

// Watch polls the deployment until it reaches Succeeded, Failed, or
// AwaitingVerification, the error budget is exhausted, or ctx is
// cancelled. Cancellation is part of the contract: both the top of each
// iteration and the inter-poll sleep observe ctx.
func (o *Orchestrator) Watch(ctx context.Context, projectID, deploymentID string, opts WatchOptions) (WatchResult, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = MinPollInterval
	}

	session := &pollSession{}

	for {
		if err := ctx.Err(); err != nil {
			return WatchResult{}, err
		}

		deployment, err := o.api.GetDeployment(ctx, projectID, deploymentID)
		if err != nil {
			if api.IsNotFound(err) {
				// The id is assumed valid for the life of the watch, so a
				// 404 is not a transient condition worth retrying.
				return WatchResult{}, fmt.Errorf("%w: %s", ErrDeploymentNotFound, deploymentID)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return WatchResult{}, err
			}
			session.consecutiveFailures++
			if session.consecutiveFailures >= maxConsecutiveFailures {
				return WatchResult{}, fmt.Errorf("%w: %v", ErrPollingExhausted, err)
			}
			o.reporter.Notice("Poll failed (%d/%d), retrying: %v",
				session.consecutiveFailures, maxConsecutiveFailures, err)
			if err := sleep(ctx, interval); err != nil {
				return WatchResult{}, err
			}
			continue
		}
		session.consecutiveFailures = 0

		if done, result, err := o.observe(session, deployment, opts); done {
			return result, err
		}

		if err := sleep(ctx, interval); err != nil {
			return WatchResult{}, err
		}
	}
}

// observe folds one deployment snapshot into the session, emitting events
// for anything new, and decides whether the session is over.
func (o *Orchestrator) observe(session *pollSession, deployment api.Deployment, opts WatchOptions) (bool, WatchResult, error) {
	if !strings.EqualFold(deployment.Status, session.lastStatus) {
		o.reporter.StatusChanged(session.lastStatus, deployment.Status)
		session.lastStatus = deployment.Status
	}

	// Strict increase only: the remote is eventually consistent and may
	// hand back a stale, lower percentage.
	if deployment.PercentComplete > session.lastProgress {
		o.reporter.Progress(deployment.PercentComplete)
		session.lastProgress = deployment.PercentComplete
	}

	if len(deployment.Errors) > session.lastErrorCount {
		if !session.errorsShown {
			for _, message := range deployment.Errors {
				o.reporter.DeploymentError(renderErrorMessage(message))
			}
			session.errorsShown = true
		}
		session.lastErrorCount = len(deployment.Errors)

		if !opts.ContinueOnErrors {
			return true, WatchResult{Deployment: deployment}, fmt.Errorf(
				"%w: re-run with --continue-on-errors to keep watching", ErrDeploymentErrors)
		}
		if !session.continuingNoticeShown {
			o.reporter.Notice("Continuing to poll despite deployment errors (--continue-on-errors)")
			session.continuingNoticeShown = true
		}
	}

	if len(deployment.Warnings) > session.lastWarningCount {
		o.reporter.DeploymentWarnings(len(deployment.Warnings) - session.lastWarningCount)
		session.lastWarningCount = len(deployment.Warnings)
	}

	switch {
	case deployment.StatusIs(api.StatusSucceeded):
		return true, WatchResult{Deployment: deployment, Outcome: OutcomeSucceeded}, nil
	case deployment.StatusIs(api.StatusFailed):
		o.reporter.Notice("Inspect the output with 'epideploy deployment logs' or retry after 'epideploy deployment reset'")
		return true, WatchResult{Deployment: deployment, Outcome: OutcomeFailed}, ErrDeploymentFailed
	case deployment.StatusIs(api.StatusAwaitingVerification):
		o.reporter.Notice("Deployment is awaiting verification; run 'epideploy deployment complete' to go live")
		return true, WatchResult{Deployment: deployment, Outcome: OutcomeAwaitingVerification}, nil
	}

	return false, WatchResult{}, nil
}

// renderErrorMessage substitutes a placeholder for empty messages and flags
// ones that look cut off by the remote side.
func renderErrorMessage(message string) string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "(no error message provided)"
	}
	if strings.HasSuffix(trimmed, ":") && len(trimmed) < 20 {
		return trimmed + " (message may be incomplete)"
	}
	return trimmed
}

// sleep waits for the poll interval or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
