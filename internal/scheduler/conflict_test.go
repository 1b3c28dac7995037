package scheduler

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, time.December, 15, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"back to back", Interval{at(10, 0), at(11, 0)}, Interval{at(11, 0), at(12, 0)}, false},
		{"back to back reversed", Interval{at(11, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"exact duplicate", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"partial overlap", Interval{at(10, 0), at(11, 0)}, Interval{at(10, 30), at(11, 30)}, true},
		{"containment", Interval{at(9, 0), at(12, 0)}, Interval{at(10, 0), at(11, 0)}, true},
		{"disjoint", Interval{at(8, 0), at(9, 0)}, Interval{at(10, 0), at(11, 0)}, false},
		{"one minute overlap", Interval{at(10, 0), at(11, 1)}, Interval{at(11, 0), at(12, 0)}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.a.Overlaps(tc.b))
			assert.Equal(t, tc.want, tc.b.Overlaps(tc.a), "overlap must be symmetric")
		})
	}
}

func TestIntervalValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Interval{at(10, 0), at(10, 1)}.Validate())
	require.ErrorIs(t, Interval{at(10, 0), at(10, 0)}.Validate(), ErrInvalidInterval)
	require.ErrorIs(t, Interval{at(11, 0), at(10, 0)}.Validate(), ErrInvalidInterval)
	require.ErrorIs(t, Interval{End: at(10, 0)}.Validate(), ErrInvalidInterval)
}

func TestDetectConflicts(t *testing.T) {
	t.Parallel()

	existing := []Reservation{
		{ID: "a", RoomID: "room-1", Interval: Interval{at(10, 0), at(11, 0)}},
		{ID: "b", RoomID: "room-2", Interval: Interval{at(10, 0), at(11, 0)}},
		{ID: "c", RoomID: "room-1", Interval: Interval{at(13, 0), at(14, 0)}},
	}

	t.Run("room overlap produces conflict", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Reservation{RoomID: "room-1", Interval: Interval{at(10, 30), at(13, 30)}})
		assert.Equal(t, []Conflict{{WithID: "a", RoomID: "room-1"}, {WithID: "c", RoomID: "room-1"}}, got)
	})

	t.Run("other rooms are ignored", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Reservation{RoomID: "room-3", Interval: Interval{at(10, 0), at(11, 0)}})
		assert.Empty(t, got)
	})

	t.Run("reservation does not conflict with its prior state", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Reservation{ID: "a", RoomID: "room-1", Interval: Interval{at(10, 15), at(11, 15)}})
		assert.Empty(t, got)
	})

	t.Run("non-overlapping reservation yields no conflicts", func(t *testing.T) {
		t.Parallel()
		got := DetectConflicts(existing, Reservation{RoomID: "room-1", Interval: Interval{at(11, 0), at(13, 0)}})
		assert.Empty(t, got)
	})
}

func TestDetectConflicts_RandomizedAcceptedSetNeverOverlaps(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	rooms := []string{"room-1", "room-2", "room-3"}

	var accepted []Reservation
	for i := 0; i < 2000; i++ {
		start := base.Add(time.Duration(rng.IntN(48*4)) * 15 * time.Minute)
		end := start.Add(time.Duration(1+rng.IntN(12)) * 15 * time.Minute)
		candidate := Reservation{
			ID:       fmt.Sprintf("r-%d", i),
			RoomID:   rooms[rng.IntN(len(rooms))],
			Interval: Interval{Start: start, End: end},
		}
		if len(DetectConflicts(accepted, candidate)) == 0 {
			accepted = append(accepted, candidate)
		}
	}

	require.NotEmpty(t, accepted)
	for i := range accepted {
		for j := i + 1; j < len(accepted); j++ {
			if accepted[i].RoomID != accepted[j].RoomID {
				continue
			}
			require.Falsef(t, accepted[i].Overlaps(accepted[j].Interval),
				"accepted reservations %s and %s overlap", accepted[i].ID, accepted[j].ID)
		}
	}
}

func TestDaysSpanned(t *testing.T) {
	t.Parallel()

	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	t.Run("single day", func(t *testing.T) {
		t.Parallel()
		days := DaysSpanned(Interval{at(10, 0), at(11, 0)}, time.UTC)
		assert.Equal(t, []time.Time{base}, days)
	})

	t.Run("ending at midnight stays on one day", func(t *testing.T) {
		t.Parallel()
		days := DaysSpanned(Interval{at(23, 0), at(24, 0)}, time.UTC)
		assert.Equal(t, []time.Time{base}, days)
	})

	t.Run("crossing midnight in another zone", func(t *testing.T) {
		t.Parallel()
		// 14:00-16:00 UTC is 23:00-01:00 in Seoul.
		days := DaysSpanned(Interval{at(14, 0), at(16, 0)}, seoul)
		require.Len(t, days, 2)
		assert.Equal(t, 15, days[0].Day())
		assert.Equal(t, 16, days[1].Day())
	})

	t.Run("invalid interval", func(t *testing.T) {
		t.Parallel()
		assert.Nil(t, DaysSpanned(Interval{at(11, 0), at(10, 0)}, time.UTC))
	})
}
