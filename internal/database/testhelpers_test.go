package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// setupTestRepo returns a RatingRepo against the shared test database and
// registers cleanup to truncate tables.
func setupTestRepo(t *testing.T) *RatingRepo {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	t.Cleanup(func() {
		ctx := context.Background()
		_, err := testPool.Exec(ctx, "TRUNCATE users, ratings")
		if err != nil {
			t.Logf("Failed to truncate tables: %v", err)
		}
	})

	return NewRatingRepo(testPool)
}

// rateNTimes records n ratings for ratee from distinct raters, one minute
// apart, and returns the time of the last one.
func rateNTimes(t *testing.T, repo *RatingRepo, ratee string, score, n int) time.Time {
	t.Helper()
	ctx := context.Background()

	at := time.Now().UTC().Add(-time.Duration(n) * time.Minute)
	for i := 0; i < n; i++ {
		at = at.Add(time.Minute)
		rater := "rater-" + string(rune('a'+i))
		_, err := repo.RecordRating(ctx, rater, ratee, score, at)
		require.NoError(t, err)
	}
	return at
}
