package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusSubject(t *testing.T) {
	assert.Equal(t, "research.status.abc", StatusSubject("abc"))
}

func TestStatusEvent_Terminal(t *testing.T) {
	assert.False(t, StatusEvent{Status: "pending"}.Terminal())
	assert.False(t, StatusEvent{Status: "processing"}.Terminal())
	assert.True(t, StatusEvent{Status: "completed"}.Terminal())
	assert.True(t, StatusEvent{Status: "failed"}.Terminal())
}

func TestLocalBus_DeliversToMatchingSubscribers(t *testing.T) {
	bus := NewLocalBus()

	var gotA, gotB []StatusEvent
	unsubA, err := bus.Subscribe("a", func(e StatusEvent) { gotA = append(gotA, e) })
	require.NoError(t, err)
	_, err = bus.Subscribe("b", func(e StatusEvent) { gotB = append(gotB, e) })
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), StatusEvent{ResearchID: "a", Status: "processing", Progress: 40}))
	require.Len(t, gotA, 1)
	assert.Equal(t, int32(40), gotA[0].Progress)
	assert.Empty(t, gotB)

	unsubA()
	unsubA()
	require.NoError(t, bus.Publish(context.Background(), StatusEvent{ResearchID: "a", Status: "completed"}))
	assert.Len(t, gotA, 1)
	assert.NotContains(t, bus.subs, "a")
}
