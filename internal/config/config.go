package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the rating rules. All of them can be overridden via
// environment variables of the same name.
const (
	DefaultRatingTimeout    = 3600 * time.Second
	DefaultMinRatingToKick  = 1.5
	DefaultMinRatingsToKick = 10
	DefaultUnratedRating    = 3.0
	DefaultLeaderboardSize  = 5
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	LogLevel    string
	LogFormat   string

	// Rating engine rules.
	RatingTimeout    time.Duration // cooldown between ratings of the same (rater, ratee) pair
	MinRatingToKick  float64       // score and average below this are removal-eligible
	MinRatingsToKick int64         // session ratings required before removal can trigger
	DefaultRating    float64       // average reported for never-rated users
	LeaderboardSize  int

	// RemovalWebhookURL is where member-removal signals are POSTed.
	// Empty means removals are only logged.
	RemovalWebhookURL string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "text"),
		RemovalWebhookURL: getEnv("REMOVAL_WEBHOOK_URL", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	timeoutSecs, err := getEnvInt("RATING_TIMEOUT_SECONDS", int64(DefaultRatingTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if timeoutSecs < 0 {
		return nil, fmt.Errorf("RATING_TIMEOUT_SECONDS must not be negative")
	}
	cfg.RatingTimeout = time.Duration(timeoutSecs) * time.Second

	cfg.MinRatingToKick, err = getEnvFloat("MIN_RATING_TO_KICK", DefaultMinRatingToKick)
	if err != nil {
		return nil, err
	}

	cfg.MinRatingsToKick, err = getEnvInt("MIN_NUMRATINGS_TO_KICK", DefaultMinRatingsToKick)
	if err != nil {
		return nil, err
	}
	if cfg.MinRatingsToKick < 1 {
		return nil, fmt.Errorf("MIN_NUMRATINGS_TO_KICK must be at least 1")
	}

	cfg.DefaultRating, err = getEnvFloat("DEFAULT_RATING", DefaultUnratedRating)
	if err != nil {
		return nil, err
	}

	boardSize, err := getEnvInt("LEADERBOARD_SIZE", DefaultLeaderboardSize)
	if err != nil {
		return nil, err
	}
	if boardSize < 1 {
		return nil, fmt.Errorf("LEADERBOARD_SIZE must be at least 1")
	}
	cfg.LeaderboardSize = int(boardSize)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}
