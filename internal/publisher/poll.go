package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Poller bounds the wait for asynchronous processing on the destination
// side: at most MaxAttempts status checks, Interval apart.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
}

// Until calls check until it reports done or returns an error. Errors end
// the wait immediately. Running out of attempts is a *ProcessingError.
func (p Poller) Until(ctx context.Context, what string, check func(ctx context.Context) (bool, error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	policy := retrypolicy.NewBuilder[bool]().
		HandleIf(func(done bool, err error) bool { return err == nil && !done }).
		WithDelay(p.Interval).
		WithMaxRetries(attempts - 1).
		ReturnLastFailure().
		Build()

	done, err := failsafe.With(policy).WithContext(ctx).Get(func() (bool, error) {
		return check(ctx)
	})
	if err != nil {
		return err
	}
	if !done {
		return &ProcessingError{
			Status: "timeout",
			Detail: fmt.Sprintf("%s not ready after %d checks", what, attempts),
		}
	}
	return nil
}
