package types

import "errors"

// Domain errors surfaced by the engine. State-conflict errors double as the
// retry-safety contract: a client resending a confirm/rate/pin after a timeout
// gets the matching Already* error instead of a duplicated effect.
var (
	ErrNotFound              = errors.New("resource not found")
	ErrForbidden             = errors.New("not a participant")
	ErrInvalidTarget         = errors.New("cannot trade with yourself")
	ErrItemUnavailable       = errors.New("item not available for trade")
	ErrAlreadyConfirmed      = errors.New("side already confirmed")
	ErrTradeAlreadyCompleted = errors.New("trade already completed")
	ErrTradeNotCompleted     = errors.New("trade not completed yet")
	ErrAlreadyRated          = errors.New("already rated")
	ErrInvalidRating         = errors.New("rating must be between 1 and 5")
	ErrAlreadyPinned         = errors.New("item already pinned")
	ErrSelfPin               = errors.New("cannot pin your own item")
	ErrNotPinned             = errors.New("item not pinned")
)
