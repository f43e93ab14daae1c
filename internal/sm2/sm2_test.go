package sm2

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/retain-srs/retain/internal/domain"
)

var testNow = time.Date(2026, time.March, 14, 15, 42, 7, 0, time.UTC)

func mustSchedule(t *testing.T, quality int, prior domain.RetentionState) Result {
	t.Helper()
	res, err := Schedule(quality, prior, testNow)
	if err != nil {
		t.Fatalf("Schedule(%d): %v", quality, err)
	}
	return res
}

func TestScheduleRejectsInvalidQuality(t *testing.T) {
	prior := domain.RetentionState{EaseFactor: 2.5, IntervalDays: 3, Repetitions: 2}
	for _, q := range []int{-1, 6, 42, math.MinInt32} {
		res, err := Schedule(q, prior, testNow)
		if !errors.Is(err, ErrInvalidQuality) {
			t.Errorf("Schedule(%d): expected ErrInvalidQuality, got %v", q, err)
		}
		if res != (Result{}) {
			t.Errorf("Schedule(%d): expected zero result on error, got %+v", q, res)
		}
	}
}

func TestScheduleEaseNeverBelowFloor(t *testing.T) {
	for q := MinQuality; q <= MaxQuality; q++ {
		prior := domain.RetentionState{EaseFactor: domain.MinEaseFactor, IntervalDays: 10, Repetitions: 3}
		res := mustSchedule(t, q, prior)
		if res.EaseFactor < domain.MinEaseFactor {
			t.Errorf("quality %d: ease %.4f fell below %.1f", q, res.EaseFactor, domain.MinEaseFactor)
		}
	}
}

func TestScheduleFailureResetsState(t *testing.T) {
	priors := []domain.RetentionState{
		{EaseFactor: 2.5},
		{EaseFactor: 2.0, IntervalDays: 30, Repetitions: 5},
		{EaseFactor: 1.3, IntervalDays: 180, Repetitions: 12},
	}
	for _, prior := range priors {
		for q := MinQuality; q < PassingQuality; q++ {
			res := mustSchedule(t, q, prior)
			if res.IntervalDays != 0 || res.Repetitions != 0 || res.WasCorrect {
				t.Errorf("quality %d prior %+v: expected reset, got %+v", q, prior, res)
			}
			if !res.NextReviewDate.Equal(domain.StartOfDay(testNow)) {
				t.Errorf("quality %d: failed card should be due today, got %v", q, res.NextReviewDate)
			}
		}
	}
}

func TestScheduleIntervalLadder(t *testing.T) {
	tests := []struct {
		name         string
		prior        domain.RetentionState
		quality      int
		wantReps     int
		wantInterval int
	}{
		{"first success", domain.RetentionState{EaseFactor: 2.5}, 4, 1, 1},
		{"second success", domain.RetentionState{EaseFactor: 2.5, IntervalDays: 1, Repetitions: 1}, 4, 2, 6},
		{"third success multiplies", domain.RetentionState{EaseFactor: 2.5, IntervalDays: 6, Repetitions: 2}, 4, 3, 15},
		{"failure recovery restarts ladder", domain.RetentionState{EaseFactor: 1.8}, 5, 1, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := mustSchedule(t, tc.quality, tc.prior)
			if res.Repetitions != tc.wantReps {
				t.Errorf("repetitions = %d, want %d", res.Repetitions, tc.wantReps)
			}
			if res.IntervalDays != tc.wantInterval {
				t.Errorf("interval = %d, want %d", res.IntervalDays, tc.wantInterval)
			}
			if !res.WasCorrect {
				t.Error("expected wasCorrect=true")
			}
			wantDue := domain.StartOfDay(testNow).AddDate(0, 0, tc.wantInterval)
			if !res.NextReviewDate.Equal(wantDue) {
				t.Errorf("next review = %v, want %v", res.NextReviewDate, wantDue)
			}
		})
	}
}

// The interval product rounds half-up: 5 x 2.5 = 12.5 becomes 13, where
// half-even would give 12.
func TestScheduleRoundsHalfUp(t *testing.T) {
	prior := domain.RetentionState{EaseFactor: 2.5, IntervalDays: 5, Repetitions: 2}
	res := mustSchedule(t, 4, prior) // quality 4 leaves ease at 2.5
	if res.EaseFactor != 2.5 {
		t.Fatalf("ease = %v, want 2.5", res.EaseFactor)
	}
	if res.IntervalDays != 13 {
		t.Errorf("interval = %d, want 13 (12.5 rounded half-up)", res.IntervalDays)
	}
}

func TestScheduleFreshCardQualityFour(t *testing.T) {
	prior := domain.RetentionState{EaseFactor: 2.5}
	res := mustSchedule(t, 4, prior)
	want := Result{
		EaseFactor:     2.5,
		IntervalDays:   1,
		Repetitions:    1,
		NextReviewDate: domain.StartOfDay(testNow).AddDate(0, 0, 1),
		WasCorrect:     true,
	}
	if res != want {
		t.Errorf("got %+v, want %+v", res, want)
	}
}

func TestScheduleMatureCardFails(t *testing.T) {
	prior := domain.RetentionState{EaseFactor: 2.0, IntervalDays: 30, Repetitions: 5}
	res := mustSchedule(t, 2, prior)
	if math.Abs(res.EaseFactor-1.8) > 1e-9 {
		t.Errorf("ease = %v, want 1.8", res.EaseFactor)
	}
	if res.IntervalDays != 0 || res.Repetitions != 0 || res.WasCorrect {
		t.Errorf("expected full reset, got %+v", res)
	}
}

// Three perfect reviews from a fresh card walk the 1, 6, round(6 x ease)
// ladder while ease climbs 2.5 -> 2.6 -> 2.7 -> 2.8.
func TestScheduleThreePerfectReviews(t *testing.T) {
	state := domain.RetentionState{EaseFactor: 2.5}
	wantIntervals := []int{1, 6, 17} // round(6 x 2.8) = 17

	for i, want := range wantIntervals {
		res := mustSchedule(t, 5, state)
		if res.IntervalDays != want {
			t.Fatalf("review %d: interval = %d, want %d", i+1, res.IntervalDays, want)
		}
		state.EaseFactor = res.EaseFactor
		state.IntervalDays = res.IntervalDays
		state.Repetitions = res.Repetitions
	}
	if math.Abs(state.EaseFactor-2.8) > 1e-9 {
		t.Errorf("final ease = %v, want 2.8", state.EaseFactor)
	}
}

func TestScheduleIsDeterministic(t *testing.T) {
	prior := domain.RetentionState{EaseFactor: 2.31, IntervalDays: 9, Repetitions: 4}
	for q := MinQuality; q <= MaxQuality; q++ {
		a, errA := Schedule(q, prior, testNow)
		b, errB := Schedule(q, prior, testNow)
		if a != b || (errA == nil) != (errB == nil) {
			t.Errorf("quality %d: repeated calls diverged: %+v vs %+v", q, a, b)
		}
	}
}

func TestScheduleAnchorsToMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2026, time.June, 1, 23, 59, 59, 0, loc)
	res, err := Schedule(3, domain.RetentionState{EaseFactor: 2.5}, now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, time.June, 2, 0, 0, 0, 0, loc)
	if !res.NextReviewDate.Equal(want) {
		t.Errorf("next review = %v, want midnight-anchored %v", res.NextReviewDate, want)
	}
}
