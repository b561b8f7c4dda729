package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSelfRating       = errors.New("users cannot rate themselves")
	ErrInvalidScore     = errors.New("score must be a whole number from 1 to 5")
	ErrUserNotFound     = errors.New("user not found")
	ErrStoreUnavailable = errors.New("rating store unavailable")
)

// RateLimitedError is returned when a rater tries to rate the same user
// again inside the cooldown window. Remaining is how long they still have
// to wait.
type RateLimitedError struct {
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: wait %s before rating this user again", e.Remaining.Round(time.Second))
}
