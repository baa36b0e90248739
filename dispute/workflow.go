package dispute

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("dispute: unauthenticated")
	ErrUnauthorized    = errors.New("dispute: unauthorized")
	ErrNotFound        = errors.New("dispute: not found")
	ErrInvalidAction   = errors.New("dispute: invalid action")
	ErrInvalidFilter   = errors.New("dispute: invalid filter")

	// ErrInvalidTransition is the parent of every rejected status change.
	ErrInvalidTransition = errors.New("dispute: invalid status transition")
	ErrAlreadyEscalated  = fmt.Errorf("%w: already escalated", ErrInvalidTransition)
	ErrDisputeResolved   = fmt.Errorf("%w: dispute is resolved", ErrInvalidTransition)
	ErrDisputeClosed     = fmt.Errorf("%w: dispute is closed", ErrInvalidTransition)
)

// Action is a moderation command applied to a dispute.
type Action string

const (
	ActionEscalate Action = "escalate"
)

// ParseAction accepts only actions the workflow implements, matched exactly.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionEscalate:
		return ActionEscalate, nil
	default:
		return "", ErrInvalidAction
	}
}

// CanEscalate checks the escalate edge: any status except escalated and the
// terminal ones may move to escalated. Order matters for the error reported.
func CanEscalate(current Status) error {
	switch current {
	case StatusEscalated:
		return ErrAlreadyEscalated
	case StatusResolved:
		return ErrDisputeResolved
	case StatusClosed:
		return ErrDisputeClosed
	case StatusOpen, StatusInProgress:
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, current)
	}
}
