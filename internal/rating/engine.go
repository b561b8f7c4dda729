// Package rating implements the rating business rules: validation,
// cumulative aggregation, per-pair rate limiting, and the low-score
// removal threshold.
package rating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ucfjimg/mmb/internal/domain"
	"github.com/ucfjimg/mmb/internal/metrics"
)

const removalNotifyTimeout = 10 * time.Second

// Config holds the tunable rating rules.
type Config struct {
	// RatingTimeout is the cooldown a rater must wait before rating the
	// same user again.
	RatingTimeout time.Duration
	// MinRatingToKick: a score and resulting average both below this value
	// make the ratee removal-eligible.
	MinRatingToKick float64
	// MinRatingsToKick is the session rating count required before a
	// removal can trigger.
	MinRatingsToKick int64
	// DefaultRating is reported for users who have never been rated.
	DefaultRating float64
	// LeaderboardSize caps the number of leaderboard rows.
	LeaderboardSize int
}

// Engine evaluates ratings against the store. It is safe for concurrent use;
// per-user contention is resolved by the store's atomic increments, not by
// locking here.
type Engine struct {
	store      domain.RatingStore
	notifier   domain.RemovalNotifier
	clock      clockwork.Clock
	cfg        Config
	boardGroup singleflight.Group
	notifyWg   sync.WaitGroup
}

// NewEngine creates the engine. The store handle is injected here and owns
// its own lifecycle; the engine never opens or closes connections.
func NewEngine(store domain.RatingStore, notifier domain.RemovalNotifier, clock clockwork.Clock, cfg Config) *Engine {
	return &Engine{
		store:    store,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
	}
}

func storeFailure(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

// SubmitRating validates and applies one rating. Validation is checked in
// order: self-rating, score bounds, then the per-pair cooldown. On success
// the returned outcome is either Rated or Removed; validation failures come
// back as typed errors and mutate nothing.
func (e *Engine) SubmitRating(ctx context.Context, raterID, rateeID string, score int) (domain.RatingOutcome, error) {
	if raterID == rateeID {
		metrics.RatingsRejectedTotal.WithLabelValues("self_rating").Inc()
		return nil, domain.ErrSelfRating
	}

	if score < domain.MinScore || score > domain.MaxScore {
		metrics.RatingsRejectedTotal.WithLabelValues("invalid_score").Inc()
		return nil, domain.ErrInvalidScore
	}

	now := e.clock.Now()

	last, exists, err := e.store.MostRecentRating(ctx, raterID, rateeID)
	if err != nil {
		return nil, storeFailure(err)
	}
	if exists {
		if elapsed := now.Sub(last); elapsed <= e.cfg.RatingTimeout {
			metrics.RatingsRejectedTotal.WithLabelValues("rate_limited").Inc()
			return nil, &domain.RateLimitedError{Remaining: e.cfg.RatingTimeout - elapsed}
		}
	}

	agg, err := e.store.RecordRating(ctx, raterID, rateeID, score, now)
	if err != nil {
		return nil, storeFailure(err)
	}

	newAverage := agg.Average(e.cfg.DefaultRating)

	if float64(score) < e.cfg.MinRatingToKick &&
		newAverage < e.cfg.MinRatingToKick &&
		agg.NumSessionRatings >= e.cfg.MinRatingsToKick {

		// The session reset is committed before the removal is signaled, and
		// it is conditional on the counter still meeting the threshold, so
		// concurrent low ratings collapse to a single removal.
		reset, err := e.store.ResetSessionCount(ctx, rateeID, e.cfg.MinRatingsToKick)
		if err != nil {
			return nil, storeFailure(err)
		}

		if reset {
			metrics.RatingsAcceptedTotal.WithLabelValues("removed").Inc()
			metrics.RemovalsTriggeredTotal.Inc()
			e.signalRemoval(rateeID, newAverage, agg.NumRatings)
			return domain.Removed{
				RateeID:    rateeID,
				Score:      score,
				Average:    newAverage,
				NumRatings: agg.NumRatings,
			}, nil
		}
	}

	metrics.RatingsAcceptedTotal.WithLabelValues("rated").Inc()
	return domain.Rated{
		RaterID:    raterID,
		RateeID:    rateeID,
		Score:      score,
		NewAverage: newAverage,
	}, nil
}

// signalRemoval notifies the platform collaborator in the background. The
// rating state is already consistent; a failed delivery is logged and
// counted but never rolls anything back.
func (e *Engine) signalRemoval(rateeID string, average float64, numRatings int64) {
	reason := fmt.Sprintf("average rating %.2f after %d ratings", average, numRatings)

	e.notifyWg.Add(1)
	go func() {
		defer e.notifyWg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), removalNotifyTimeout)
		defer cancel()

		if err := e.notifier.RemoveMember(ctx, rateeID, reason); err != nil {
			metrics.RemovalNotifyErrorsTotal.Inc()
			slog.Error("Failed to deliver removal signal", "user_id", rateeID, "error", err)
			return
		}
		slog.Info("Removal signal delivered", "user_id", rateeID, "reason", reason)
	}()
}

// GetRating returns the user's average rating, or the configured default
// when the user has never been rated.
func (e *Engine) GetRating(ctx context.Context, userID string) (float64, error) {
	agg, err := e.store.GetAggregate(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return e.cfg.DefaultRating, nil
	}
	if err != nil {
		return 0, storeFailure(err)
	}
	return agg.Average(e.cfg.DefaultRating), nil
}

// GetLeaderboard returns rated users ordered by average rating descending.
// Concurrent calls collapse into one store query.
func (e *Engine) GetLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	result, err, _ := e.boardGroup.Do("leaderboard", func() (any, error) {
		aggs, err := e.store.ListTopAggregates(ctx, e.cfg.LeaderboardSize)
		if err != nil {
			return nil, storeFailure(err)
		}

		entries := make([]domain.LeaderboardEntry, 0, len(aggs))
		for _, agg := range aggs {
			entries = append(entries, domain.LeaderboardEntry{
				UserID:     agg.UserID,
				Average:    agg.Average(e.cfg.DefaultRating),
				NumRatings: agg.NumRatings,
			})
		}
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.LeaderboardEntry), nil
}

// ListReceivedRatings returns the newest-first audit trail for a user.
func (e *Engine) ListReceivedRatings(ctx context.Context, userID string, limit int) ([]domain.RatingEvent, error) {
	events, err := e.store.ListRatings(ctx, userID, limit)
	if err != nil {
		return nil, storeFailure(err)
	}
	return events, nil
}

// Stop waits for in-flight removal notifications to finish.
func (e *Engine) Stop() {
	e.notifyWg.Wait()
}
