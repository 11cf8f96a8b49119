package scheduler

import "time"

// BaseRetryDelay is the delay before the first retry. Each subsequent retry
// doubles it: 5m, 10m, 20m, ...
const BaseRetryDelay = 5 * time.Minute

// RetryDecision says whether a failed publish should be re-armed and after
// how long.
type RetryDecision struct {
	Retry bool
	Delay time.Duration
}

// Decide applies the backoff policy for a schedule that has already failed
// retryCount times. The delay grows exponentially and is deliberately
// uncapped; maxRetries bounds the total wait.
func Decide(retryCount, maxRetries int) RetryDecision {
	if retryCount >= maxRetries {
		return RetryDecision{}
	}
	return RetryDecision{
		Retry: true,
		Delay: BaseRetryDelay * (1 << retryCount),
	}
}
