package timer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJitterBounds(t *testing.T) {
	j := tickerJitter{MaxJitter: 20 * time.Millisecond}
	for i := 0; i < 1000; i++ {
		d := j.Jitter(100 * time.Millisecond)
		require.GreaterOrEqual(t, d, 80*time.Millisecond)
		require.Less(t, d, 120*time.Millisecond)
	}

	require.Equal(t, time.Second, tickerJitter{}.Jitter(time.Second))

	// Oversized jitter is clamped below the period
	big := tickerJitter{MaxJitter: time.Hour}
	for i := 0; i < 1000; i++ {
		require.Positive(t, big.Jitter(10*time.Millisecond))
	}
}

func TestRunWithTickerStopsOnError(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	err := RunWithTicker(context.Background(), &Interval{Duration: 5 * time.Millisecond}, func(ctx context.Context) error {
		if calls.Add(1) == 3 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, int32(3), calls.Load())
}

func TestRunWithTickerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := RunWithTicker(ctx, &Interval{Duration: time.Hour}, func(ctx context.Context) error {
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
