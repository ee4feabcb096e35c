package domain

import "errors"

var (
	ErrSessionExists          = errors.New("session already exists")
	ErrSessionNotFound        = errors.New("session not found")
	ErrRequirementNotFound    = errors.New("requirement not found")
	ErrNoRequirements         = errors.New("no requirements available for session")
	ErrInvalidAction          = errors.New("invalid action")
	ErrInvalidStage           = errors.New("action not valid in current stage")
	ErrInvalidReviewFormat    = errors.New("invalid review format, use 'score:X; feedback:your feedback'")
	ErrCapabilityUnavailable  = errors.New("capability unavailable")
	ErrCapabilityTimeout      = errors.New("capability invocation timed out")
	ErrMalformedResponse      = errors.New("malformed capability response")
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)
