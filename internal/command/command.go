// Package command defines the closed set of chat commands and dispatches
// them into the rating engine. The command router (the chat gateway glue)
// produces Command values; this package never sees raw message text.
package command

import (
	"context"

	"github.com/ucfjimg/mmb/internal/domain"
)

// Kind enumerates the commands the bot understands.
type Kind int

const (
	KindUnknown Kind = iota
	KindRate         // rate another member 1-5
	KindMe           // look up your own rating
	KindTea          // look up someone else's rating
	KindBoard        // top-rated members
	KindPing         // liveness check
)

// Command is a parsed chat command. AuthorID is always the message author;
// TargetID and Score are only meaningful for the kinds that use them.
type Command struct {
	Kind     Kind
	AuthorID string
	TargetID string
	Score    int
}

// Result is the closed set of presentation-neutral command results. The
// presentation layer type-switches over these; no user-facing text is
// produced here.
type Result interface {
	commandResult()
}

// SubmitResult carries the outcome of a rate command.
type SubmitResult struct {
	Outcome domain.RatingOutcome
}

// RatingResult carries a user's average rating for me/tea commands.
type RatingResult struct {
	UserID  string
	Average float64
}

// BoardResult carries the leaderboard rows.
type BoardResult struct {
	Entries []domain.LeaderboardEntry
}

// Pong is the reply to a ping.
type Pong struct{}

func (SubmitResult) commandResult() {}
func (RatingResult) commandResult() {}
func (BoardResult) commandResult()  {}
func (Pong) commandResult()         {}

// ParseKind maps the gateway's command word to a Kind. Unrecognized words
// map to KindUnknown.
func ParseKind(word string) Kind {
	switch word {
	case "rate":
		return KindRate
	case "me":
		return KindMe
	case "tea":
		return KindTea
	case "board":
		return KindBoard
	case "ping":
		return KindPing
	default:
		return KindUnknown
	}
}

// Dispatcher routes commands to the engine.
type Dispatcher struct {
	engine domain.Engine
}

func NewDispatcher(engine domain.Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// Dispatch executes one command. An unknown kind is silently ignored
// (nil result, nil error), matching the bot's historical behavior of
// dropping unrecognized commands.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	switch cmd.Kind {
	case KindRate:
		outcome, err := d.engine.SubmitRating(ctx, cmd.AuthorID, cmd.TargetID, cmd.Score)
		if err != nil {
			return nil, err
		}
		return SubmitResult{Outcome: outcome}, nil

	case KindMe:
		avg, err := d.engine.GetRating(ctx, cmd.AuthorID)
		if err != nil {
			return nil, err
		}
		return RatingResult{UserID: cmd.AuthorID, Average: avg}, nil

	case KindTea:
		avg, err := d.engine.GetRating(ctx, cmd.TargetID)
		if err != nil {
			return nil, err
		}
		return RatingResult{UserID: cmd.TargetID, Average: avg}, nil

	case KindBoard:
		entries, err := d.engine.GetLeaderboard(ctx)
		if err != nil {
			return nil, err
		}
		return BoardResult{Entries: entries}, nil

	case KindPing:
		return Pong{}, nil

	case KindUnknown:
		return nil, nil

	default:
		return nil, nil
	}
}
