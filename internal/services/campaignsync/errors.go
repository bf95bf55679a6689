package campaignsync

import (
	"errors"
	"fmt"

	"github.com/onegreenvn/campaign-monitor/internal/models"
)

var (
	// ErrRejected wraps every reason a control request is refused locally.
	// A rejected request changes nothing and issues no remote call.
	ErrRejected = errors.New("control request rejected")

	ErrControlBusy          = fmt.Errorf("%w: another control action is in flight", ErrRejected)
	ErrInvalidTransition    = fmt.Errorf("%w: transition not allowed from current status", ErrRejected)
	ErrNoConnectedInstances = fmt.Errorf("%w: no connected instances", ErrRejected)

	ErrSessionClosed     = errors.New("campaign session closed")
	ErrRefreshSuperseded = errors.New("campaign refresh superseded by a newer one")
)

// CommandError is a failed or timed-out remote control command. The optimistic
// transition has already been reverted when it is returned.
type CommandError struct {
	Action  models.ControlAction
	Message string
	Timeout bool
	Err     error
}

func (e *CommandError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s command timed out", e.Action)
	case e.Err != nil:
		return fmt.Sprintf("%s command failed: %v", e.Action, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s command refused: %s", e.Action, e.Message)
	default:
		return fmt.Sprintf("%s command refused by platform", e.Action)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Retryable is always true: command failures never leave the store in a state
// that blocks another attempt.
func (e *CommandError) Retryable() bool {
	return true
}
