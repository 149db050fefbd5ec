// Package hwwait bounds busy-wait loops on hardware registers.
//
// Every poll loop in this module carries both an iteration-count ceiling
// and a wall-clock ceiling, so no register wait can block forever even if
// the hardware wedges.
package hwwait

import (
	"errors"
	"time"
)

// ErrDeadline is returned when a predicate did not become true within
// either bound.
var ErrDeadline = errors.New("hwwait: deadline exceeded")

// Until polls pred until it returns true, sleeping backoff between
// attempts. It gives up after maxIters attempts or once maxWait wall
// clock time has elapsed, whichever comes first.
func Until(pred func() bool, maxIters int, maxWait, backoff time.Duration) error {
	deadline := time.Now().Add(maxWait)
	for i := 0; i < maxIters; i++ {
		if pred() {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrDeadline
		}
		if backoff > 0 {
			time.Sleep(backoff)
		}
	}
	return ErrDeadline
}
