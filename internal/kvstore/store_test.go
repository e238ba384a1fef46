package kvstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAdvanceWindowStartsFreshKeyAtOne(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	value, windowEnd := advanceWindow(0, now, now, 5*time.Minute)

	require.EqualValues(t, 1, value)
	require.Equal(t, now.Add(5*time.Minute), windowEnd)
}

func TestAdvanceWindowKeepsExpiryWhileLive(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	windowEnd := now.Add(3 * time.Minute)

	for i, current := range []int64{1, 2, 3, 4} {
		value, end := advanceWindow(current, windowEnd, now, 5*time.Minute)

		require.EqualValues(t, current+1, value, "increment %d", i)
		require.Equal(t, windowEnd, end, "a live window must keep its original expiry")
	}
}

func TestAdvanceWindowRestartsAfterExpiry(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	value, windowEnd := advanceWindow(4, now.Add(-time.Second), now, 5*time.Minute)

	require.EqualValues(t, 1, value, "a lapsed window restarts the counter")
	require.Equal(t, now.Add(5*time.Minute), windowEnd)
}

func TestAdvanceWindowTreatsExactExpiryAsLapsed(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	value, windowEnd := advanceWindow(3, now, now, 5*time.Minute)

	require.EqualValues(t, 1, value)
	require.Equal(t, now.Add(5*time.Minute), windowEnd)
}
