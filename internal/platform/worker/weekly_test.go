package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestShouldRunWeekly(t *testing.T) {
	// Monday at 11:30 UTC
	mondayEleven := time.Date(2025, 5, 12, 11, 30, 0, 0, time.UTC)

	tests := []struct {
		name        string
		now         time.Time
		day         time.Weekday
		hour        int
		lastRun     time.Time
		gracePeriod time.Duration
		want        bool
	}{
		{
			name:        "monday 11, never run",
			now:         mondayEleven,
			day:         time.Monday,
			hour:        11,
			lastRun:     time.Time{},
			gracePeriod: defaultWeeklyGracePeriod,
			want:        true,
		},
		{
			name:        "monday 11, run 7 days ago",
			now:         mondayEleven,
			day:         time.Monday,
			hour:        11,
			lastRun:     mondayEleven.Add(-7 * 24 * time.Hour),
			gracePeriod: defaultWeeklyGracePeriod,
			want:        true,
		},
		{
			name:        "monday 11, run 3 days ago (within grace)",
			now:         mondayEleven,
			day:         time.Monday,
			hour:        11,
			lastRun:     mondayEleven.Add(-3 * 24 * time.Hour),
			gracePeriod: defaultWeeklyGracePeriod,
			want:        false,
		},
		{
			name:        "wrong day",
			now:         mondayEleven.Add(24 * time.Hour), // Tuesday
			day:         time.Monday,
			hour:        11,
			lastRun:     time.Time{},
			gracePeriod: defaultWeeklyGracePeriod,
			want:        false,
		},
		{
			name:        "wrong hour",
			now:         time.Date(2025, 5, 12, 15, 0, 0, 0, time.UTC),
			day:         time.Monday,
			hour:        11,
			lastRun:     time.Time{},
			gracePeriod: defaultWeeklyGracePeriod,
			want:        false,
		},
		{
			name:        "zero grace period defaults",
			now:         mondayEleven,
			day:         time.Monday,
			hour:        11,
			lastRun:     mondayEleven.Add(-2 * 24 * time.Hour),
			gracePeriod: 0,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldRunWeekly(tt.now, tt.day, tt.hour, tt.lastRun, tt.gracePeriod)
			if got != tt.want {
				t.Errorf("ShouldRunWeekly() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWeeklySchedulerRunsDueTaskOnce(t *testing.T) {
	logger := zerolog.Nop()
	ws := NewWeeklyScheduler(&logger)

	now := time.Date(2025, 5, 12, 11, 5, 0, 0, time.UTC) // Monday 11:05
	ws.now = func() time.Time { return now }

	runs := 0
	ws.AddTask(&WeeklyTask{
		Name: "batch",
		Day:  time.Monday,
		Hour: 11,
		Run: func(ctx context.Context, logger *zerolog.Logger) error {
			runs++
			return nil
		},
	})

	ws.CheckAndRun(context.Background())
	ws.CheckAndRun(context.Background())

	if runs != 1 {
		t.Errorf("task ran %d times, want 1", runs)
	}

	// A week later it is due again.
	now = now.Add(7 * 24 * time.Hour)
	ws.CheckAndRun(context.Background())

	if runs != 2 {
		t.Errorf("task ran %d times after a week, want 2", runs)
	}
}

func TestWeeklySchedulerFailedRunRetries(t *testing.T) {
	logger := zerolog.Nop()
	ws := NewWeeklyScheduler(&logger)

	now := time.Date(2025, 5, 12, 11, 5, 0, 0, time.UTC)
	ws.now = func() time.Time { return now }

	runs := 0
	ws.AddTask(&WeeklyTask{
		Name: "flaky",
		Day:  time.Monday,
		Hour: 11,
		Run: func(ctx context.Context, logger *zerolog.Logger) error {
			runs++
			return context.DeadlineExceeded
		},
	})

	// lastRun is only stamped on success, so a failed task stays due.
	ws.CheckAndRun(context.Background())
	ws.CheckAndRun(context.Background())

	if runs != 2 {
		t.Errorf("failed task ran %d times, want 2", runs)
	}
}
