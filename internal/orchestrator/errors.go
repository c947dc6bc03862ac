package orchestrator

import "errors"

var (
	// ErrClassification indicates the intent classification call failed or
	// returned output that could not be decoded.
	ErrClassification = errors.New("intent classification failed")
	// ErrSynthesis indicates the final synthesis call failed.
	ErrSynthesis = errors.New("synthesis failed")
	// ErrEmptyMessage indicates a request without message text.
	ErrEmptyMessage = errors.New("message is empty")
)
