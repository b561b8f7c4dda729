package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Rating scale bounds. A score outside this range is rejected before it
// touches the store.
const (
	MinScore = 1
	MaxScore = 5
)

// UserAggregate is the materialized running state for one rated user.
// It is a fold over the user's rating events, updated incrementally.
type UserAggregate struct {
	UserID            string
	SumRating         int64
	NumRatings        int64
	NumSessionRatings int64
}

// Average returns the user's average rating, or defaultRating when the
// user has never been rated.
func (a UserAggregate) Average(defaultRating float64) float64 {
	if a.NumRatings == 0 {
		return defaultRating
	}
	return float64(a.SumRating) / float64(a.NumRatings)
}

// RatingEvent is one accepted rating, append-only once written.
// The event log is the audit trail and the source of rate-limit windows.
type RatingEvent struct {
	ID      uuid.UUID
	RateeID string
	RaterID string
	Score   int
	Time    time.Time
}

// LeaderboardEntry is one row of the ranking, highest average first.
type LeaderboardEntry struct {
	UserID     string
	Average    float64
	NumRatings int64
}

// RatingStore abstracts durable aggregate + event persistence.
//
// RecordRating appends the event and applies the aggregate increments as one
// atomic unit: a crash can never leave the count bumped without the event, or
// vice versa. Transient failures (serialization conflicts) are retried inside
// the store; callers see either a committed result or a definitive error.
type RatingStore interface {
	EnsureUser(ctx context.Context, userID string) error
	RecordRating(ctx context.Context, raterID, rateeID string, score int, at time.Time) (UserAggregate, error)
	GetAggregate(ctx context.Context, userID string) (UserAggregate, error)
	MostRecentRating(ctx context.Context, raterID, rateeID string) (time.Time, bool, error)
	ListTopAggregates(ctx context.Context, limit int) ([]UserAggregate, error)
	ListRatings(ctx context.Context, rateeID string, limit int) ([]RatingEvent, error)

	// ResetSessionCount zeroes num_session_ratings for the user, but only if
	// it is still at least minSessionRatings. Returns true when a row was
	// reset, so concurrent removal triggers collapse to a single signal.
	ResetSessionCount(ctx context.Context, userID string, minSessionRatings int64) (bool, error)
}

// RemovalNotifier performs the platform-level removal of a member.
// The engine only decides and signals; the call is fire-and-forget with
// respect to rating state.
type RemovalNotifier interface {
	RemoveMember(ctx context.Context, userID, reason string) error
}

// Engine is the rating business-rules surface consumed by the command
// dispatcher and the HTTP server.
type Engine interface {
	SubmitRating(ctx context.Context, raterID, rateeID string, score int) (RatingOutcome, error)
	GetRating(ctx context.Context, userID string) (float64, error)
	GetLeaderboard(ctx context.Context) ([]LeaderboardEntry, error)
	ListReceivedRatings(ctx context.Context, userID string, limit int) ([]RatingEvent, error)
}
