package umbra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/satwatch-io/satwatch/pkg/models"
)

// FeasibilityStatus is the state of one feasibility request. The provider
// reports SUBMITTED/COMPLETED/FAILED/CANCELLED; POLLING and TIMEOUT are
// local states of the poll loop.
type FeasibilityStatus string

const (
	StatusSubmitted FeasibilityStatus = "SUBMITTED"
	StatusPolling   FeasibilityStatus = "POLLING"
	StatusCompleted FeasibilityStatus = "COMPLETED"
	StatusFailed    FeasibilityStatus = "FAILED"
	StatusCancelled FeasibilityStatus = "CANCELLED"
	StatusTimeout   FeasibilityStatus = "TIMEOUT"
)

// Terminal reports whether the status ends the poll loop.
func (s FeasibilityStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// ErrFeasibilityTimeout signals that the poll loop exhausted its attempts
// without the provider reaching a terminal status. Distinct from
// FeasibilityError so callers can tell "provider said no" from "we gave up".
var ErrFeasibilityTimeout = errors.New("feasibility polling timed out")

// FeasibilityError is the provider reporting FAILED or CANCELLED. It
// carries the last status document the provider returned.
type FeasibilityError struct {
	ID      string
	Status  FeasibilityStatus
	Payload json.RawMessage
}

func (e *FeasibilityError) Error() string {
	return fmt.Sprintf("feasibility %s terminated with status %s: %s", e.ID, e.Status, e.Payload)
}

// PollResult is one decoded status check response.
type PollResult struct {
	Status        FeasibilityStatus
	Opportunities []models.Opportunity
	Payload       json.RawMessage
}

// Poller drives a submitted feasibility request to a terminal state by
// checking its status on a fixed interval for a bounded number of attempts.
// Sleep is injectable so tests can simulate elapsed time.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       func(ctx context.Context, d time.Duration) error
}

// Await polls until COMPLETED, a provider-terminal failure, or attempt
// exhaustion. No partial results are returned before COMPLETED; on success
// the opportunity list is never nil.
func (p *Poller) Await(ctx context.Context, id string, check func(ctx context.Context) (PollResult, error)) ([]models.Opportunity, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var last PollResult

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		res, err := check(ctx)
		if err != nil {
			return nil, err
		}
		last = res

		switch res.Status {
		case StatusCompleted:
			if res.Opportunities == nil {
				return []models.Opportunity{}, nil
			}
			return res.Opportunities, nil
		case StatusFailed, StatusCancelled:
			return nil, &FeasibilityError{ID: id, Status: res.Status, Payload: res.Payload}
		}

		if err := sleep(ctx, p.Interval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: feasibility %s still %s after %d attempts",
		ErrFeasibilityTimeout, id, last.Status, p.MaxAttempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
