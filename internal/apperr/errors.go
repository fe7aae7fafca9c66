// Package apperr holds the sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyExists     = errors.New("already exists")
	ErrFieldNotEditable  = errors.New("field not editable")
	ErrInvalidAsset      = errors.New("invalid asset")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrFeedBusy          = errors.New("change feed already has a subscriber")
	ErrReentrantMutation = errors.New("catalog mutation during change delivery")
	ErrProjectLocked     = errors.New("project is locked by another process")
	ErrClosed            = errors.New("closed")
	ErrNoProject         = errors.New("no project store configured")
)
