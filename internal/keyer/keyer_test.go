package keyer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cwlink/cwlink/internal/cw"
)

type emission struct {
	Down bool
	Dur  time.Duration
}

// drive ticks the keyer every step from t0 until it has produced at least
// wantEvents emissions or maxTicks is exhausted, reporting paddle state via
// paddleAt(elapsed).
func drive(t *testing.T, k *Keyer, step time.Duration, maxTicks int, paddleAt func(elapsed time.Duration) (dit, dah bool)) {
	t.Helper()
	now := time.Unix(0, 0)
	t0 := now
	for i := 0; i < maxTicks; i++ {
		dit, dah := paddleAt(now.Sub(t0))
		k.Tick(now, dit, dah)
		now = now.Add(step)
	}
}

// Property 7 (spec.md §8): Mode-B squeeze, both paddles held from t=0 at
// 25 WPM (dit=48ms, dah=144ms), alternates indefinitely.
func TestModeBSqueezeAlternatesIndefinitely(t *testing.T) {
	var got []emission
	k := New(25, cw.ModeIambicB, false, func(down bool, dur time.Duration) {
		got = append(got, emission{down, dur})
	})

	drive(t, k, time.Millisecond, 2000, func(elapsed time.Duration) (bool, bool) {
		return true, true // both paddles held throughout
	})

	require.GreaterOrEqual(t, len(got), 7)
	want := []emission{
		{true, 48 * time.Millisecond},
		{false, 48 * time.Millisecond},
		{true, 144 * time.Millisecond},
		{false, 48 * time.Millisecond},
		{true, 48 * time.Millisecond},
		{false, 48 * time.Millisecond},
		{true, 144 * time.Millisecond},
	}
	require.Equal(t, want, got[:len(want)])
}

// Property 8 (spec.md §8): Mode-A release mid-dit falls to IDLE rather
// than continuing to dah.
func TestModeAReleaseMidDitFallsToIdle(t *testing.T) {
	var got []emission
	k := New(25, cw.ModeIambicA, false, func(down bool, dur time.Duration) {
		got = append(got, emission{down, dur})
	})

	releaseAt := 10 * time.Millisecond
	drive(t, k, time.Millisecond, 300, func(elapsed time.Duration) (bool, bool) {
		if elapsed < releaseAt {
			return true, true
		}
		return false, false
	})

	want := []emission{
		{true, 48 * time.Millisecond},
		{false, 48 * time.Millisecond},
	}
	require.Equal(t, want, got)
	require.Equal(t, StateIdle, k.State())
}

func TestIdleWithNoPaddlesReturnsZeroDeadline(t *testing.T) {
	k := New(25, cw.ModeIambicB, false, func(bool, time.Duration) {})
	wake := k.Tick(time.Unix(0, 0), false, false)
	require.True(t, wake.IsZero())
}

func TestDahPaddleAloneProducesDah(t *testing.T) {
	var got []emission
	k := New(25, cw.ModeIambicA, false, func(down bool, dur time.Duration) {
		got = append(got, emission{down, dur})
	})
	releaseAt := 5 * time.Millisecond
	drive(t, k, time.Millisecond, 300, func(elapsed time.Duration) (bool, bool) {
		if elapsed < releaseAt {
			return false, true
		}
		return false, false
	})
	require.Equal(t, []emission{
		{true, 144 * time.Millisecond},
		{false, 48 * time.Millisecond},
	}, got)
}

func TestPaddleSwap(t *testing.T) {
	var got []emission
	k := New(25, cw.ModeIambicA, true, func(down bool, dur time.Duration) {
		got = append(got, emission{down, dur})
	})
	// Physical dit paddle pressed, but swap means it behaves as dah.
	drive(t, k, time.Millisecond, 5, func(elapsed time.Duration) (bool, bool) {
		return true, false
	})
	require.NotEmpty(t, got)
	require.Equal(t, 144*time.Millisecond, got[0].Dur)
}
