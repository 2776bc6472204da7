package engine

import (
	"errors"
	"fmt"
)

// ErrProbeUnavailable marks a failed point read. Callers degrade the
// affected position to "not claimable" instead of failing the batch.
var ErrProbeUnavailable = errors.New("position probe unavailable")

// RevertError is a write call rejected by the settlement engine. It is
// surfaced verbatim and never retried: re-sending a reverted
// state-changing call can duplicate side effects.
type RevertError struct {
	Op     string
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("engine reverted %s", e.Op)
	}
	return fmt.Sprintf("engine reverted %s: %s", e.Op, e.Reason)
}

// IsRevert reports whether err is a settlement-engine revert.
func IsRevert(err error) bool {
	var revert *RevertError
	return errors.As(err, &revert)
}
