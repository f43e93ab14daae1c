package domain

import "fmt"

// Tier buckets a card for dashboard reporting. It is derived from the
// retention state and never persisted.
type Tier int

const (
	TierNew Tier = iota
	TierLearning
	TierMastered
)

// Mastery thresholds: a card counts as mastered once it has survived the
// 1-day and 6-day ramp plus two multiplicative extensions (four consecutive
// successes) and its next gap is at least three weeks.
const (
	MasteredMinRepetitions = 4
	MasteredMinInterval    = 21
)

var tierNames = [...]string{TierNew: "new", TierLearning: "learning", TierMastered: "mastered"}

func (t Tier) String() string {
	if t >= TierNew && t <= TierMastered {
		return tierNames[t]
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// TierOf classifies a retention state: never reviewed → new, past the
// mastery thresholds → mastered, everything else → learning.
func TierOf(rs RetentionState) Tier {
	switch {
	case rs.TotalReviews == 0:
		return TierNew
	case rs.Repetitions >= MasteredMinRepetitions && rs.IntervalDays >= MasteredMinInterval:
		return TierMastered
	default:
		return TierLearning
	}
}
