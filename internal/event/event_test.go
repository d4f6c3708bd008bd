package event

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEOT(t *testing.T) {
	e := NewEOT(7)
	require.True(t, e.IsEOT)
	require.Equal(t, uint8(7), e.Sequence)
	require.Equal(t, uint16(0), e.DurationMs)
}

func TestWithTimestamp(t *testing.T) {
	e := NewDown(1, 48).WithTimestamp(144)
	require.True(t, e.HasTimestamp)
	require.Equal(t, uint32(144), e.TimestampMs)
	require.True(t, e.KeyDown)
}

func TestEpochStartAndElapsed(t *testing.T) {
	var ep Epoch
	require.False(t, ep.Started())
	first := ep.Start(1_000_000_000)
	require.Equal(t, uint32(0), first)
	require.True(t, ep.Started())
	require.Equal(t, uint32(48), ep.ElapsedMs(1_000_000_000+48*1e6))
}

func TestEpochResetStartsFresh(t *testing.T) {
	var ep Epoch
	ep.Start(0)
	ep.Reset()
	require.False(t, ep.Started())
	require.Equal(t, uint32(0), ep.ElapsedMs(999))
}
