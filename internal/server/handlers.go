package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ucfjimg/mmb/internal/command"
	"github.com/ucfjimg/mmb/internal/domain"
	apperrors "github.com/ucfjimg/mmb/internal/errors"
)

const (
	defaultAuditLimit = 25
	maxAuditLimit     = 100

	readinessTimeout = 2 * time.Second
)

type submitRatingRequest struct {
	RaterID string  `json:"rater_id"`
	RateeID string  `json:"ratee_id"`
	Score   float64 `json:"score"`
}

type ratedResponse struct {
	Status     string  `json:"status"`
	RaterID    string  `json:"rater_id"`
	RateeID    string  `json:"ratee_id"`
	Score      int     `json:"score"`
	NewAverage float64 `json:"new_average"`
}

type removedResponse struct {
	Status     string  `json:"status"`
	RateeID    string  `json:"ratee_id"`
	Score      int     `json:"score"`
	Average    float64 `json:"average"`
	NumRatings int64   `json:"num_ratings"`
}

func (s *Server) handleSubmitRating(c echo.Context) error {
	var req submitRatingRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.RaterID == "" || req.RateeID == "" {
		return apperrors.ValidationError("rater_id and ratee_id are required")
	}
	if req.Score != math.Trunc(req.Score) {
		return apperrors.ValidationError("score must be a whole number from 1 to 5")
	}

	outcome, err := s.engine.SubmitRating(c.Request().Context(), req.RaterID, req.RateeID, int(req.Score))
	if err != nil {
		return mapEngineError(err)
	}
	return renderOutcome(c, outcome)
}

func renderOutcome(c echo.Context, outcome domain.RatingOutcome) error {
	switch o := outcome.(type) {
	case domain.Rated:
		return c.JSON(200, ratedResponse{
			Status:     "rated",
			RaterID:    o.RaterID,
			RateeID:    o.RateeID,
			Score:      o.Score,
			NewAverage: o.NewAverage,
		})
	case domain.Removed:
		return c.JSON(200, removedResponse{
			Status:     "removed",
			RateeID:    o.RateeID,
			Score:      o.Score,
			Average:    o.Average,
			NumRatings: o.NumRatings,
		})
	default:
		return apperrors.InternalError(fmt.Sprintf("unexpected outcome %T", outcome), nil)
	}
}

type commandRequest struct {
	Command  string `json:"command"`
	AuthorID string `json:"author_id"`
	TargetID string `json:"target_id"`
	Score    int    `json:"score"`
}

// handleCommand is the chat gateway entry point. The gateway parses message
// text into a command word plus arguments and posts them here; unknown
// commands are dropped without a reply.
func (s *Server) handleCommand(c echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.AuthorID == "" {
		return apperrors.ValidationError("author_id is required")
	}

	result, err := s.dispatcher.Dispatch(c.Request().Context(), command.Command{
		Kind:     command.ParseKind(req.Command),
		AuthorID: req.AuthorID,
		TargetID: req.TargetID,
		Score:    req.Score,
	})
	if err != nil {
		return mapEngineError(err)
	}

	switch r := result.(type) {
	case command.SubmitResult:
		return renderOutcome(c, r.Outcome)
	case command.RatingResult:
		return c.JSON(200, map[string]any{
			"user_id": r.UserID,
			"average": r.Average,
		})
	case command.BoardResult:
		return c.JSON(200, map[string]any{"entries": leaderboardRows(r.Entries)})
	case command.Pong:
		return c.JSON(200, map[string]string{"status": "pong"})
	case nil:
		return c.NoContent(204)
	default:
		return apperrors.InternalError(fmt.Sprintf("unexpected command result %T", result), nil)
	}
}

func (s *Server) handleGetRating(c echo.Context) error {
	userID := c.Param("id")

	average, err := s.engine.GetRating(c.Request().Context(), userID)
	if err != nil {
		return mapEngineError(err)
	}

	return c.JSON(200, map[string]any{
		"user_id": userID,
		"average": average,
	})
}

func (s *Server) handleListRatings(c echo.Context) error {
	userID := c.Param("id")

	limit := defaultAuditLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return apperrors.ValidationError("limit must be a positive integer").WithField("limit", raw)
		}
		limit = min(n, maxAuditLimit)
	}

	events, err := s.engine.ListReceivedRatings(c.Request().Context(), userID, limit)
	if err != nil {
		return mapEngineError(err)
	}

	type eventRow struct {
		ID      string    `json:"id"`
		RaterID string    `json:"rater_id"`
		Score   int       `json:"score"`
		Time    time.Time `json:"time"`
	}
	rows := make([]eventRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, eventRow{
			ID:      ev.ID.String(),
			RaterID: ev.RaterID,
			Score:   ev.Score,
			Time:    ev.Time,
		})
	}

	return c.JSON(200, map[string]any{
		"user_id": userID,
		"ratings": rows,
	})
}

type boardRow struct {
	UserID     string  `json:"user_id"`
	Average    float64 `json:"average"`
	NumRatings int64   `json:"num_ratings"`
}

func leaderboardRows(entries []domain.LeaderboardEntry) []boardRow {
	rows := make([]boardRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, boardRow{
			UserID:     entry.UserID,
			Average:    entry.Average,
			NumRatings: entry.NumRatings,
		})
	}
	return rows
}

func (s *Server) handleLeaderboard(c echo.Context) error {
	entries, err := s.engine.GetLeaderboard(c.Request().Context())
	if err != nil {
		return mapEngineError(err)
	}
	return c.JSON(200, map[string]any{"entries": leaderboardRows(entries)})
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(200, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	if s.pool == nil {
		return c.JSON(503, map[string]string{"status": "unavailable"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		return c.JSON(503, map[string]string{"status": "unavailable", "error": "database unreachable"})
	}
	return c.JSON(200, map[string]string{"status": "ok"})
}

// mapEngineError translates engine errors into structured HTTP errors.
func mapEngineError(err error) error {
	var limited *domain.RateLimitedError
	switch {
	case errors.Is(err, domain.ErrSelfRating):
		return apperrors.ValidationError("you cannot rate yourself")
	case errors.Is(err, domain.ErrInvalidScore):
		return apperrors.ValidationError("score must be a whole number from 1 to 5")
	case errors.As(err, &limited):
		secs := int64(math.Ceil(limited.Remaining.Seconds()))
		return apperrors.RateLimitedError("you need to wait before rating this user again").
			WithField("retry_after_seconds", secs).
			WithField("wait", humanWait(limited.Remaining))
	case errors.Is(err, domain.ErrUserNotFound):
		return apperrors.NotFoundError("user not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.ExternalError("rating store unavailable", err)
	default:
		return apperrors.InternalError("failed to process rating command", err)
	}
}

// humanWait renders a countdown the way the bot reports it in chat:
// whole minutes once the wait reaches two minutes, otherwise seconds.
func humanWait(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs >= 120 {
		return fmt.Sprintf("%d minutes", secs/60)
	}
	return fmt.Sprintf("%d seconds", secs)
}
