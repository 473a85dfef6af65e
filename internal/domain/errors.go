package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Learner record errors
var (
	ErrLearnerNotFound      = errors.New("learner not found")
	ErrLearnerAlreadyExists = errors.New("learner already exists")
)

// Nudge engine errors
var (
	ErrInvalidAction    = errors.New("invalid interaction action")
	ErrInvalidRiskLevel = errors.New("invalid risk level")
	ErrInvalidTrigger   = errors.New("invalid nudge trigger")
	ErrTemplateMissing  = errors.New("no nudge template for trigger")
	ErrForceDisabled    = errors.New("forced nudge generation disabled outside development")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
