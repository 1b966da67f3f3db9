package lib

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Outcome is what the orchestrator reports after driving an operation
// through the recovery policy.
type Outcome int

const (
	// OutcomeSucceeded: the operation succeeded without recovery.
	OutcomeSucceeded Outcome = iota
	// OutcomeRetrySucceeded: the operation failed with mfa_required,
	// step-up succeeded, and the re-invocation succeeded.
	OutcomeRetrySucceeded
	// OutcomeRetryExhausted: mfa_required kept recurring past the
	// step-up ceiling.
	OutcomeRetryExhausted
	// OutcomeNonRecoverable: the failure was terminal; no recovery was
	// applicable (or step-up itself failed).
	OutcomeNonRecoverable
)

// DefaultMaxStepUps bounds how many step-up rounds one logical operation
// may trigger. A server that keeps answering mfa_required after an
// upgrade would otherwise loop forever.
const DefaultMaxStepUps = 2

// StepUpAuthenticator upgrades the session's authentication strength for
// the given audience/scope and persists the upgraded credential before
// returning.
type StepUpAuthenticator interface {
	Upgrade(ctx context.Context, aud ScopedAudience) error
}

// Operation is one attempt of a remote call. The orchestrator may invoke
// it (or the caller's retry callback) again after a successful step-up.
type Operation func(ctx context.Context) error

// FlowError is the terminal, user-visible failure of an orchestrated
// operation. Message carries human-readable text; callers re-invoke the
// whole operation from the top to retry.
type FlowError struct {
	Kind    ErrorKind
	Outcome Outcome
	Err     error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *FlowError) Message() string {
	return e.Kind.Message()
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Orchestrator is the recovery policy every screen-level flow submits
// remote calls through: classify the failure, step up on mfa_required
// only, re-invoke a bounded number of times, and surface everything else
// as a terminal FlowError.
type Orchestrator struct {
	StepUp StepUpAuthenticator

	// MaxStepUps caps step-up rounds per Run; 0 means DefaultMaxStepUps.
	MaxStepUps int

	// OnRefresh, if set, runs after any success so dependent views can
	// reload derived state.
	OnRefresh func()
}

// Run drives op, re-invoking op itself after a successful step-up.
func (o *Orchestrator) Run(ctx context.Context, aud ScopedAudience, op Operation) (Outcome, error) {
	return o.RunWithRetry(ctx, aud, op, op)
}

// RunWithRetry drives op, but re-invokes the caller-supplied retry
// callback after a successful step-up. Enrollment confirm flows use this
// to restart from start instead of resuming a challenge bound to the
// pre-upgrade token.
func (o *Orchestrator) RunWithRetry(ctx context.Context, aud ScopedAudience, op, retry Operation) (Outcome, error) {
	maxStepUps := o.MaxStepUps
	if maxStepUps <= 0 {
		maxStepUps = DefaultMaxStepUps
	}

	current := op
	for attempt := 0; ; attempt++ {
		err := current(ctx)
		if err == nil {
			o.notifyRefresh()
			if attempt == 0 {
				return OutcomeSucceeded, nil
			}
			return OutcomeRetrySucceeded, nil
		}

		kind := Classify(err)
		log.Debugf("operation failed (attempt %d): %s", attempt, kind)

		if kind != KindMFARequired {
			return OutcomeNonRecoverable, &FlowError{Kind: kind, Outcome: OutcomeNonRecoverable, Err: err}
		}

		if attempt >= maxStepUps {
			log.Warnf("mfa_required recurred after %d step-up(s); giving up", attempt)
			return OutcomeRetryExhausted, &FlowError{Kind: KindMFARequired, Outcome: OutcomeRetryExhausted, Err: err}
		}

		if upErr := o.StepUp.Upgrade(ctx, aud); upErr != nil {
			upKind := Classify(upErr)
			// cancellation terminates the chain right here; no retry
			return OutcomeNonRecoverable, &FlowError{Kind: upKind, Outcome: OutcomeNonRecoverable, Err: upErr}
		}

		current = retry
	}
}

func (o *Orchestrator) notifyRefresh() {
	if o.OnRefresh != nil {
		o.OnRefresh()
	}
}
