package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mmb")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.RatingTimeout)
	assert.InDelta(t, 1.5, cfg.MinRatingToKick, 0.001)
	assert.EqualValues(t, 10, cfg.MinRatingsToKick)
	assert.InDelta(t, 3.0, cfg.DefaultRating, 0.001)
	assert.Equal(t, 5, cfg.LeaderboardSize)
	assert.Empty(t, cfg.RemovalWebhookURL)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/mmb")
	t.Setenv("RATING_TIMEOUT_SECONDS", "120")
	t.Setenv("MIN_RATING_TO_KICK", "2.0")
	t.Setenv("MIN_NUMRATINGS_TO_KICK", "3")
	t.Setenv("DEFAULT_RATING", "0")
	t.Setenv("LEADERBOARD_SIZE", "10")
	t.Setenv("REMOVAL_WEBHOOK_URL", "https://gateway.example/kick")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.RatingTimeout)
	assert.InDelta(t, 2.0, cfg.MinRatingToKick, 0.001)
	assert.EqualValues(t, 3, cfg.MinRatingsToKick)
	assert.Zero(t, cfg.DefaultRating)
	assert.Equal(t, 10, cfg.LeaderboardSize)
	assert.Equal(t, "https://gateway.example/kick", cfg.RemovalWebhookURL)
}

func TestLoad_InvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"timeout not a number", "RATING_TIMEOUT_SECONDS", "soon"},
		{"negative timeout", "RATING_TIMEOUT_SECONDS", "-1"},
		{"threshold not a number", "MIN_RATING_TO_KICK", "low"},
		{"zero kick count", "MIN_NUMRATINGS_TO_KICK", "0"},
		{"zero board size", "LEADERBOARD_SIZE", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/mmb")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
