package database

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucfjimg/mmb/internal/domain"
)

func TestEnsureUser_CreatesZeroAggregate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureUser(ctx, "alice"))

	agg, err := repo.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", agg.UserID)
	assert.Zero(t, agg.SumRating)
	assert.Zero(t, agg.NumRatings)
	assert.Zero(t, agg.NumSessionRatings)
}

func TestEnsureUser_Idempotent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	_, err := repo.RecordRating(ctx, "bob", "alice", 4, time.Now().UTC())
	require.NoError(t, err)

	// A second ensure must not clobber existing counters.
	require.NoError(t, repo.EnsureUser(ctx, "alice"))

	agg, err := repo.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 4, agg.SumRating)
	assert.EqualValues(t, 1, agg.NumRatings)
}

func TestRecordRating_CreatesUserOnFirstRating(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	agg, err := repo.RecordRating(ctx, "bob", "alice", 5, time.Now().UTC())
	require.NoError(t, err)

	assert.Equal(t, "alice", agg.UserID)
	assert.EqualValues(t, 5, agg.SumRating)
	assert.EqualValues(t, 1, agg.NumRatings)
	assert.EqualValues(t, 1, agg.NumSessionRatings)
}

func TestRecordRating_IncrementsAggregate(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	_, err := repo.RecordRating(ctx, "bob", "alice", 5, now)
	require.NoError(t, err)
	agg, err := repo.RecordRating(ctx, "carol", "alice", 2, now.Add(time.Second))
	require.NoError(t, err)

	assert.EqualValues(t, 7, agg.SumRating)
	assert.EqualValues(t, 2, agg.NumRatings)
	assert.EqualValues(t, 2, agg.NumSessionRatings)
}

func TestRecordRating_AppendsEvent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Microsecond)
	_, err := repo.RecordRating(ctx, "bob", "alice", 3, at)
	require.NoError(t, err)

	events, err := repo.ListRatings(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "alice", events[0].RateeID)
	assert.Equal(t, "bob", events[0].RaterID)
	assert.Equal(t, 3, events[0].Score)
	assert.True(t, events[0].Time.Equal(at))
	assert.NotZero(t, events[0].ID)
}

func TestRecordRating_ConcurrentWritersLoseNothing(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	const raters = 20
	var wg sync.WaitGroup
	errs := make(chan error, raters)
	for i := 0; i < raters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.RecordRating(ctx, fmt.Sprintf("rater-%d", i), "alice", 4, time.Now().UTC())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	agg, err := repo.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, raters, agg.NumRatings)
	assert.EqualValues(t, raters*4, agg.SumRating)

	// Event log and aggregate must agree.
	events, err := repo.ListRatings(ctx, "alice", raters+1)
	require.NoError(t, err)
	assert.Len(t, events, raters)
}

func TestGetAggregate_UnknownUser(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetAggregate(context.Background(), "nobody")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMostRecentRating_NoHistory(t *testing.T) {
	repo := setupTestRepo(t)

	_, found, err := repo.MostRecentRating(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMostRecentRating_ReturnsLatestForPair(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)
	_, err := repo.RecordRating(ctx, "bob", "alice", 3, base)
	require.NoError(t, err)
	_, err = repo.RecordRating(ctx, "bob", "alice", 4, base.Add(30*time.Minute))
	require.NoError(t, err)
	// Different pair, must not influence the lookup.
	_, err = repo.RecordRating(ctx, "carol", "alice", 5, base.Add(45*time.Minute))
	require.NoError(t, err)

	at, found, err := repo.MostRecentRating(ctx, "bob", "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, at.Equal(base.Add(30*time.Minute)))
}

func TestListTopAggregates_OrdersByAverage(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rateNTimes(t, repo, "low", 2, 3)
	rateNTimes(t, repo, "high", 5, 2)
	rateNTimes(t, repo, "mid", 4, 4)

	aggs, err := repo.ListTopAggregates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "high", aggs[0].UserID)
	assert.Equal(t, "mid", aggs[1].UserID)
	assert.Equal(t, "low", aggs[2].UserID)
}

func TestListTopAggregates_TieBreaksByCountThenID(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	// Same 4.0 average, different counts.
	rateNTimes(t, repo, "few", 4, 1)
	rateNTimes(t, repo, "many", 4, 3)
	// Same average and count as "few": falls back to id order.
	rateNTimes(t, repo, "also-few", 4, 1)

	aggs, err := repo.ListTopAggregates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, aggs, 3)
	assert.Equal(t, "many", aggs[0].UserID)
	assert.Equal(t, "also-few", aggs[1].UserID)
	assert.Equal(t, "few", aggs[2].UserID)
}

func TestListTopAggregates_ExcludesUnratedAndHonorsLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.EnsureUser(ctx, "unrated"))
	rateNTimes(t, repo, "a", 5, 1)
	rateNTimes(t, repo, "b", 4, 1)
	rateNTimes(t, repo, "c", 3, 1)

	aggs, err := repo.ListTopAggregates(ctx, 2)
	require.NoError(t, err)
	require.Len(t, aggs, 2)
	assert.Equal(t, "a", aggs[0].UserID)
	assert.Equal(t, "b", aggs[1].UserID)
}

func TestListRatings_NewestFirst(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, score := range []int{1, 2, 3} {
		_, err := repo.RecordRating(ctx, fmt.Sprintf("rater-%d", i), "alice", score, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}

	events, err := repo.ListRatings(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 3, events[0].Score)
	assert.Equal(t, 2, events[1].Score)
}

func TestResetSessionCount_AboveThreshold(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rateNTimes(t, repo, "alice", 1, 5)

	reset, err := repo.ResetSessionCount(ctx, "alice", 5)
	require.NoError(t, err)
	assert.True(t, reset)

	agg, err := repo.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, agg.NumSessionRatings)
	assert.EqualValues(t, 5, agg.NumRatings, "lifetime count survives the reset")
}

func TestResetSessionCount_BelowThreshold(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rateNTimes(t, repo, "alice", 1, 3)

	reset, err := repo.ResetSessionCount(ctx, "alice", 5)
	require.NoError(t, err)
	assert.False(t, reset)

	agg, err := repo.GetAggregate(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 3, agg.NumSessionRatings)
}

func TestResetSessionCount_SecondCallerLoses(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	rateNTimes(t, repo, "alice", 1, 5)

	first, err := repo.ResetSessionCount(ctx, "alice", 5)
	require.NoError(t, err)
	second, err := repo.ResetSessionCount(ctx, "alice", 5)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}
