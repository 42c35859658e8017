//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/cropsight-backend/internal/adapters/events"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

func TestRedisEventBusFanoutIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	channel := providers.EventChannelAnalysisUpdates
	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel1()
	defer cancel2()

	sub1, err := eventBus.Subscribe(ctx1, channel)
	require.NoError(t, err)
	sub2, err := eventBus.Subscribe(ctx2, channel)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	event := entities.NewAnalysisEvent(
		"user-bus-1",
		entities.AnalysisEventBatchCompleted,
		"2024-03-01T10:00:00.000+00:00",
	)
	event.Mode = entities.ModeBatchIntegrated
	event.Total = 3
	event.Succeeded = 3

	err = eventBus.Publish(context.Background(), channel, event)
	require.NoError(t, err)

	received1 := waitForAnalysisEvent(t, sub1)
	received2 := waitForAnalysisEvent(t, sub2)

	assert.Equal(t, event.ID, received1.ID)
	assert.Equal(t, event.ID, received2.ID)
	assert.Equal(t, entities.AnalysisEventBatchCompleted, received1.EventType)
	assert.Equal(t, 3, received1.Total)
}

func TestRedisEventBusUserChannelIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}

	redisClient := newTestRedisClient(t)
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := eventBus.Subscribe(ctx, providers.GetUserChannel("user-bus-a"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	eventA := entities.NewAnalysisEvent("user-bus-a", entities.AnalysisEventVerdictStored, "")
	err = eventBus.Publish(context.Background(), providers.GetUserChannel("user-bus-a"), eventA)
	require.NoError(t, err)

	eventB := entities.NewAnalysisEvent("user-bus-b", entities.AnalysisEventVerdictStored, "")
	err = eventBus.Publish(context.Background(), providers.GetUserChannel("user-bus-b"), eventB)
	require.NoError(t, err)

	received := waitForAnalysisEvent(t, sub)
	assert.Equal(t, eventA.ID, received.ID)
	assert.Equal(t, "user-bus-a", received.UserID)

	select {
	case extra := <-sub:
		t.Fatalf("received event %s published for another user", extra.ID)
	case <-time.After(300 * time.Millisecond):
	}
}
