package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ucfjimg/mmb/internal/domain"
	"github.com/ucfjimg/mmb/internal/metrics"
	"github.com/ucfjimg/mmb/internal/platform/retry"
)

// aggregateColumns must match the Scan order in scanAggregate.
const aggregateColumns = `userid, sumrating, numratings, numsessionratings`

// RatingRepo implements domain.RatingStore backed by PostgreSQL.
type RatingRepo struct {
	pool *pgxpool.Pool
}

// NewRatingRepo creates a RatingRepo from the shared connection pool.
func NewRatingRepo(pool *pgxpool.Pool) *RatingRepo {
	return &RatingRepo{pool: pool}
}

// writeRetryPolicy governs transparent retries of serialization conflicts.
// The engine never sees a retried attempt, only the committed result or a
// definitive failure.
var writeRetryPolicy = retry.Policy{
	MaxAttempts:    3,
	InitialBackoff: 10 * time.Millisecond,
	OnRetry: func(attempt int, err error, backoff time.Duration) {
		metrics.StoreRetriesTotal.Inc()
		slog.Debug("retrying store transaction", "attempt", attempt, "backoff", backoff, "error", err)
	},
}

func classifyWriteError(err error) retry.Action {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure and deadlock_detected are safe to retry
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return retry.Retry
		}
	}
	return retry.Stop
}

func observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StoreOpsTotal.WithLabelValues(op, status).Inc()
	metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func scanAggregate(row pgx.Row) (domain.UserAggregate, error) {
	var agg domain.UserAggregate
	err := row.Scan(&agg.UserID, &agg.SumRating, &agg.NumRatings, &agg.NumSessionRatings)
	return agg, err
}

// EnsureUser creates the zero-state aggregate row if it does not exist yet.
func (r *RatingRepo) EnsureUser(ctx context.Context, userID string) (err error) {
	start := time.Now()
	defer func() { observe("ensure_user", start, err) }()

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (userid, sumrating, numratings, numsessionratings)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (userid) DO NOTHING
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

// RecordRating appends the rating event and applies the aggregate increments
// in one transaction. The aggregate update is a single atomic increment
// statement, so concurrent ratings of the same user never lose updates.
func (r *RatingRepo) RecordRating(ctx context.Context, raterID, rateeID string, score int, at time.Time) (domain.UserAggregate, error) {
	op := func() (domain.UserAggregate, error) {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return domain.UserAggregate{}, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

		if _, err := tx.Exec(ctx, `
			INSERT INTO ratings (userid, rater, rating, time)
			VALUES ($1, $2, $3, $4)
		`, rateeID, raterID, score, at); err != nil {
			return domain.UserAggregate{}, fmt.Errorf("failed to record rating event: %w", err)
		}

		agg, err := scanAggregate(tx.QueryRow(ctx, `
			INSERT INTO users (userid, sumrating, numratings, numsessionratings)
			VALUES ($1, $2, 1, 1)
			ON CONFLICT (userid) DO UPDATE SET
				sumrating = users.sumrating + $2,
				numratings = users.numratings + 1,
				numsessionratings = users.numsessionratings + 1
			RETURNING `+aggregateColumns+`
		`, rateeID, score))
		if err != nil {
			return domain.UserAggregate{}, fmt.Errorf("failed to update aggregate: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return domain.UserAggregate{}, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return agg, nil
	}

	start := time.Now()
	agg, err := retry.Do(ctx, writeRetryPolicy, classifyWriteError, op)
	observe("record_rating", start, err)

	var permErr *retry.PermanentError
	if errors.As(err, &permErr) {
		err = permErr.Err
	}
	return agg, err
}

// GetAggregate returns the user's aggregate row, or domain.ErrUserNotFound
// if the user has never been rated.
func (r *RatingRepo) GetAggregate(ctx context.Context, userID string) (domain.UserAggregate, error) {
	start := time.Now()
	var err error
	defer func() { observe("get_aggregate", start, err) }()

	agg, err := scanAggregate(r.pool.QueryRow(ctx,
		`SELECT `+aggregateColumns+` FROM users WHERE userid = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.UserAggregate{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.UserAggregate{}, fmt.Errorf("failed to get aggregate: %w", err)
	}
	return agg, nil
}

// MostRecentRating returns the time of the latest accepted rating for the
// (rater, ratee) pair. The second return is false when no rating exists.
func (r *RatingRepo) MostRecentRating(ctx context.Context, raterID, rateeID string) (time.Time, bool, error) {
	start := time.Now()
	var err error
	defer func() { observe("most_recent_rating", start, err) }()

	var at time.Time
	err = r.pool.QueryRow(ctx, `
		SELECT time FROM ratings
		WHERE rater = $1 AND userid = $2
		ORDER BY time DESC
		LIMIT 1
	`, raterID, rateeID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		err = nil
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get most recent rating: %w", err)
	}
	return at, true, nil
}

// ListTopAggregates returns rated users ordered by average rating descending.
// Ties break by rating count descending, then user id ascending, so the
// ordering is fully deterministic. Zero-count users are excluded.
func (r *RatingRepo) ListTopAggregates(ctx context.Context, limit int) ([]domain.UserAggregate, error) {
	start := time.Now()
	var err error
	defer func() { observe("list_top_aggregates", start, err) }()

	rows, err := r.pool.Query(ctx, `
		SELECT `+aggregateColumns+` FROM users
		WHERE numratings > 0
		ORDER BY sumrating::float8 / numratings DESC, numratings DESC, userid ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []domain.UserAggregate
	for rows.Next() {
		agg, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan aggregate: %w", err)
		}
		aggs = append(aggs, agg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read aggregates: %w", err)
	}
	return aggs, nil
}

// ListRatings returns the newest-first audit trail of ratings received by a user.
func (r *RatingRepo) ListRatings(ctx context.Context, rateeID string, limit int) ([]domain.RatingEvent, error) {
	start := time.Now()
	var err error
	defer func() { observe("list_ratings", start, err) }()

	rows, err := r.pool.Query(ctx, `
		SELECT id, userid, rater, rating, time FROM ratings
		WHERE userid = $1
		ORDER BY time DESC
		LIMIT $2
	`, rateeID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	defer rows.Close()

	var events []domain.RatingEvent
	for rows.Next() {
		var ev domain.RatingEvent
		if err := rows.Scan(&ev.ID, &ev.RateeID, &ev.RaterID, &ev.Score, &ev.Time); err != nil {
			return nil, fmt.Errorf("failed to scan rating event: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rating events: %w", err)
	}
	return events, nil
}

// ResetSessionCount zeroes the session counter, but only while it still
// meets the removal threshold. The boolean result tells the caller whether
// this call was the one that performed the reset.
func (r *RatingRepo) ResetSessionCount(ctx context.Context, userID string, minSessionRatings int64) (bool, error) {
	start := time.Now()
	var err error
	defer func() { observe("reset_session_count", start, err) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET numsessionratings = 0
		WHERE userid = $1 AND numsessionratings >= $2
	`, userID, minSessionRatings)
	if err != nil {
		return false, fmt.Errorf("failed to reset session count: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
