package provisioning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/avendale/tutorhive/internal/metrics"
	"github.com/avendale/tutorhive/internal/traces"
)

// Step is one unit of the onboarding saga: a forward action and the
// compensation that undoes it. Compensate may be nil when the action leaves
// nothing behind on failure.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// CompensationFailure records one compensation that did not complete.
type CompensationFailure struct {
	Step string
	Err  error
}

// PartialFailureError is returned when a saga step failed AND rolling back
// one or more completed steps also failed, leaving orphaned records that
// need operator attention. It unwraps to the original step error.
type PartialFailureError struct {
	FailedStep string
	Err        error
	Orphans    []CompensationFailure
}

func (e *PartialFailureError) Error() string {
	var names []string
	for _, o := range e.Orphans {
		names = append(names, o.Step)
	}
	return fmt.Sprintf("provisioning: step %s failed and rollback left orphans in [%s]: %v",
		e.FailedStep, strings.Join(names, ", "), e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// runSaga executes steps in order. When a step fails, the compensations of
// every completed step run in reverse order, best-effort: a failing
// compensation is logged and counted, and the remaining compensations still
// run. The step's own error is returned when rollback completed cleanly;
// a PartialFailureError when it did not.
func runSaga(ctx context.Context, logger *slog.Logger, steps []Step) error {
	for i, step := range steps {
		stepCtx, span := traces.StartSpan(ctx, "saga."+step.Name, traces.SagaStep(step.Name))
		err := step.Run(stepCtx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "step failed")
		}
		span.End()
		if err == nil {
			continue
		}

		logger.Error("saga step failed, rolling back",
			"step", step.Name, "completed", i, "error", err)

		var orphans []CompensationFailure
		for j := i - 1; j >= 0; j-- {
			comp := steps[j]
			if comp.Compensate == nil {
				continue
			}
			if cerr := comp.Compensate(ctx); cerr != nil {
				logger.Error("saga compensation failed",
					"step", comp.Name, "error", cerr)
				metrics.CompensationFailuresTotal.WithLabelValues(comp.Name).Inc()
				orphans = append(orphans, CompensationFailure{Step: comp.Name, Err: cerr})
			}
		}

		if len(orphans) > 0 {
			return &PartialFailureError{FailedStep: step.Name, Err: err, Orphans: orphans}
		}
		return fmt.Errorf("provisioning: step %s: %w", step.Name, err)
	}
	return nil
}
