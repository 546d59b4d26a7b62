// Package errs defines the failure kinds surfaced by the SDK and a staged
// error wrapper that records which workflow stage and which item failed.
package errs

import (
	"errors"
	"fmt"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrCreationFailed    = errors.New("creation failed")
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrNoFlagsFound      = errors.New("no status flags found")
	ErrEntityFailed      = errors.New("entity failed")
	ErrTimedOut          = errors.New("timed out")
	ErrTransferFailed    = errors.New("transfer failed")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

// Stage names the workflow step a failure belongs to.
type Stage string

const (
	StageAuth           Stage = "auth"
	StageValidation     Stage = "validation"
	StageClassification Stage = "classification"
	StageCreation       Stage = "creation"
	StageTransfer       Stage = "transfer"
	StagePolling        Stage = "polling"
	StageRetrieval      Stage = "retrieval"
)

// Error tags an underlying failure with its stage and, when known, the item
// (asset name, input title, entity ID) it concerns.
type Error struct {
	Stage Stage
	Item  string
	Err   error
}

func (e *Error) Error() string {
	if e.Item == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Item, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// At wraps err with stage and item. A nil err stays nil. If err already
// carries a stage, it is returned unchanged so the innermost stage wins.
func At(stage Stage, item string, err error) error {
	if err == nil {
		return nil
	}
	var staged *Error
	if errors.As(err, &staged) {
		return err
	}
	return &Error{Stage: stage, Item: item, Err: err}
}

// StageOf reports the stage recorded on err, if any.
func StageOf(err error) (Stage, bool) {
	var staged *Error
	if errors.As(err, &staged) {
		return staged.Stage, true
	}
	return "", false
}

// ItemOf reports the item recorded on err, if any.
func ItemOf(err error) (string, bool) {
	var staged *Error
	if errors.As(err, &staged) && staged.Item != "" {
		return staged.Item, true
	}
	return "", false
}

// Invalid returns an ErrInvalidArgument wrapped with a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
