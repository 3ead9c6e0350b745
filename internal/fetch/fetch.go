// Package fetch runs one source's fetch capability under a timeout,
// measuring duration and classifying the outcome. Failures are
// returned as data, never as errors, so one bad source cannot abort a
// refresh cycle.
package fetch

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/citypulse/eventcache/internal/listing"
	"github.com/citypulse/eventcache/internal/registry"
)

// Result is the outcome of one timed fetch attempt.
type Result struct {
	Label    string
	Events   []listing.Event
	Outcome  listing.Outcome
	Err      string
	Duration time.Duration
}

// Run invokes the descriptor's source with the given timeout. Every
// returned event is stamped with the descriptor's canonical weight and
// label, overriding anything the source set.
func Run(ctx context.Context, d registry.Descriptor, timeout time.Duration) Result {
	fetchCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	events, err := d.Source.Fetch(fetchCtx)
	elapsed := time.Since(start)

	if err != nil {
		return Result{
			Label:    d.Label,
			Events:   []listing.Event{},
			Outcome:  classify(err),
			Err:      err.Error(),
			Duration: elapsed,
		}
	}

	for i := range events {
		events[i].Source = d.Label
		events[i].Weight = d.Weight
	}

	outcome := listing.OutcomeOK
	if len(events) == 0 {
		outcome = listing.OutcomeEmpty
	}
	return Result{
		Label:    d.Label,
		Events:   events,
		Outcome:  outcome,
		Duration: elapsed,
	}
}

func classify(err error) listing.Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return listing.OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return listing.OutcomeTimeout
	}
	return listing.OutcomeError
}
