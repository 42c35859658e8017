package providers

import (
	"context"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// analysis lifecycle events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.AnalysisEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.AnalysisEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannel constants for different event types
const (
	// EventChannelAnalysisUpdates is the channel carrying every analysis event
	EventChannelAnalysisUpdates = "analysis:updates"

	// EventChannelUserPrefix is the prefix for per-user channels
	EventChannelUserPrefix = "analysis:user:"
)

// GetUserChannel returns the channel name for a specific user's events
func GetUserChannel(userID string) string {
	return EventChannelUserPrefix + userID
}
