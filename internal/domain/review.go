package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Review is a parsed quality review payload
type Review struct {
	Feedback string
	Score    int
}

// ParseReview parses the literal review payload form
// "score:<1-10>; feedback:<free text>". A missing or out-of-range score
// fails with ErrInvalidReviewFormat.
func ParseReview(payload string) (Review, error) {
	var review Review
	scoreSeen := false

	for _, part := range strings.Split(payload, ";") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "score:"):
			raw := strings.TrimSpace(strings.TrimPrefix(part, "score:"))
			score, err := strconv.Atoi(raw)
			if err != nil {
				return Review{}, fmt.Errorf("%w: score %q is not an integer", ErrInvalidReviewFormat, raw)
			}
			review.Score = score
			scoreSeen = true
		case strings.HasPrefix(part, "feedback:"):
			review.Feedback = strings.TrimSpace(strings.TrimPrefix(part, "feedback:"))
		}
	}

	if !scoreSeen {
		return Review{}, fmt.Errorf("%w: missing score", ErrInvalidReviewFormat)
	}
	if review.Score < 1 || review.Score > 10 {
		return Review{}, fmt.Errorf("%w: score %d out of range 1-10", ErrInvalidReviewFormat, review.Score)
	}
	return review, nil
}
