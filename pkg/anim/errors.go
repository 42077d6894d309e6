package anim

import "errors"

// Sentinel errors for construction and lookup failures. Callers test with
// errors.Is; messages wrap these with context. Misses that are expected
// during evaluation (an animation state naming an animation this skeleton
// does not carry) are skipped silently instead.
var (
	ErrDuplicateItem     = errors.New("duplicate item")
	ErrItemNotFound      = errors.New("item not found")
	ErrInvalidParameters = errors.New("invalid parameters")
)
