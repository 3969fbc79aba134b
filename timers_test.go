package eventengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniyakcom/eventengine/core"
)

func TestNextFireTime_AlignsToSecond(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 0, 250_000_000, time.UTC)
	next := nextFireTime(now, time.Second)
	assert.Equal(t, time.Date(2026, 8, 3, 10, 0, 1, 0, time.UTC), next)
}

func TestNextFireTime_AlignsToMinute(t *testing.T) {
	now := time.Date(2026, 8, 3, 10, 0, 30, 0, time.UTC)
	next := nextFireTime(now, time.Minute)
	assert.Equal(t, time.Date(2026, 8, 3, 10, 1, 0, 0, time.UTC), next)
}

func TestGetTimer_WellKnownTopics(t *testing.T) {
	engine := newTestEngine(t, 8)

	second, err := engine.Timers().GetTimer(1.0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, secondTopicLiteral, second.Literal)

	minute, err := engine.Timers().GetTimer(60.0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, minuteTopicLiteral, minute.Literal)
}

func TestGetTimer_OtherInterval(t *testing.T) {
	engine := newTestEngine(t, 8)
	topic, err := engine.Timers().GetTimer(5.0, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "EventEngine.Internal.Timer.5", topic.Literal)
}

func TestGetTimer_RepeatedCallReturnsSameTopic(t *testing.T) {
	engine := newTestEngine(t, 8)
	first, err := engine.Timers().GetTimer(1.0, time.Time{})
	require.NoError(t, err)
	second, err := engine.Timers().GetTimer(1.0, time.Now())
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestTimer_SecondAlignedDeliversWhileRunning(t *testing.T) {
	engine := newTestEngine(t, 8)
	require.NoError(t, engine.Start())
	defer engine.Stop()

	topic, err := engine.Timers().GetTimer(1.0, time.Time{})
	require.NoError(t, err)

	var calls int32Counter
	require.NoError(t, engine.RegisterHandler(topic, core.NewHandler(func(args, kwargs interface{}) error {
		calls.add()
		return nil
	}), true))

	require.Eventually(t, func() bool { return calls.get() >= 1 }, 2500*time.Millisecond, 50*time.Millisecond)
}
