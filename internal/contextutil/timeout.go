package contextutil

import (
	"context"
	"time"
)

// WithTimeout applies fallback as a deadline unless the caller already set
// one; a caller-supplied deadline always wins. fallback<=0 leaves the parent
// untouched, and a nil parent is treated as context.Background().
func WithTimeout(parent context.Context, fallback time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if fallback <= 0 {
		return parent, func() {}
	}
	if _, ok := parent.Deadline(); ok {
		return parent, func() {}
	}
	return context.WithTimeout(parent, fallback)
}
