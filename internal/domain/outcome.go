package domain

// RatingOutcome is the closed set of successful results of a rating
// submission. Consumers type-switch over Rated and Removed; validation
// failures are returned as errors, not outcomes.
type RatingOutcome interface {
	ratingOutcome()
}

// Rated is the normal outcome: the score was recorded and the ratee's
// average updated.
type Rated struct {
	RaterID    string
	RateeID    string
	Score      int
	NewAverage float64
}

// Removed signals that the rating pushed the ratee over the removal
// threshold. The session counter has already been reset by the time the
// caller sees this value.
type Removed struct {
	RateeID    string
	Score      int
	Average    float64
	NumRatings int64
}

func (Rated) ratingOutcome()   {}
func (Removed) ratingOutcome() {}
