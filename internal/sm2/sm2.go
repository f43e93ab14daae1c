// Package sm2 implements the SM-2 spaced repetition scheduling function.
//
// Schedule is pure: identical inputs always produce identical outputs. The
// current time is an explicit parameter, consulted only to anchor the next
// review date to midnight, so the scheduler is testable without a wall clock.
package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/retain-srs/retain/internal/domain"
)

// Quality bounds and the pass/fail threshold. A review with quality below
// PassingQuality is a failure and resets the repetition streak.
const (
	MinQuality     = 0
	MaxQuality     = 5
	PassingQuality = 3
)

// ValidQuality reports whether q is a legal quality rating.
func ValidQuality(q int) bool {
	return q >= MinQuality && q <= MaxQuality
}

// Result is the retention state produced by a single review.
type Result struct {
	EaseFactor     float64
	IntervalDays   int
	Repetitions    int
	NextReviewDate time.Time
	WasCorrect     bool
}

// Schedule applies one review with the given quality to the prior retention
// state and returns the next state. now anchors the due date; only its
// calendar day matters.
//
// On failure (quality < 3) the ease drops by 0.2, the streak and interval
// reset, and the card is due again today. On success the ease moves by the
// SM-2 adjustment, the streak extends, and the interval follows the
// 1 day / 6 days / interval x ease ladder.
func Schedule(quality int, prior domain.RetentionState, now time.Time) (Result, error) {
	if !ValidQuality(quality) {
		return Result{}, fmt.Errorf("%w: %d", ErrInvalidQuality, quality)
	}

	today := domain.StartOfDay(now)

	if quality < PassingQuality {
		return Result{
			EaseFactor:     clampEase(prior.EaseFactor - 0.2),
			IntervalDays:   0,
			Repetitions:    0,
			NextReviewDate: today,
			WasCorrect:     false,
		}, nil
	}

	miss := float64(MaxQuality - quality)
	ease := clampEase(prior.EaseFactor + (0.1 - miss*(0.08+miss*0.02)))
	reps := prior.Repetitions + 1

	var interval int
	switch reps {
	case 1:
		interval = 1
	case 2:
		interval = 6
	default:
		interval = roundHalfUp(float64(prior.IntervalDays) * ease)
	}

	return Result{
		EaseFactor:     ease,
		IntervalDays:   interval,
		Repetitions:    reps,
		NextReviewDate: today.AddDate(0, 0, interval),
		WasCorrect:     true,
	}, nil
}

func clampEase(ease float64) float64 {
	return math.Max(domain.MinEaseFactor, ease)
}

// roundHalfUp rounds to the nearest integer, with .5 rounding up. math.Round
// would agree for positive inputs; the explicit form pins the policy.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
