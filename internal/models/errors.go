package models

import "errors"

// Not-found errors. The operation aborts with no state change.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrBlockNotFound     = errors.New("block not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrGuideNotFound     = errors.New("guide not found")
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrBadgeNotFound     = errors.New("badge not found")
)

// Request errors.
var (
	ErrNotGradable        = errors.New("block is not a gradable question")
	ErrUnknownReference   = errors.New("submission references an unknown answer or pair")
	ErrNegativeExperience = errors.New("experience points must not be negative")
	ErrManualOnly         = errors.New("badge can only be granted manually")
	ErrNotManual          = errors.New("badge is not an active manual badge")
	ErrAlreadyStarted     = errors.New("user challenge already exists")
)

// ErrInvariantViolation signals corrupted reference data, e.g. a block whose
// module cannot be resolved.
var ErrInvariantViolation = errors.New("invariant violation")
