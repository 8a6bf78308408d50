package events

import "context"

// Advertisement event stream and types
const (
	StreamAdvertisements = "events:advertisement"

	EventAdCreated       = "advertisement_created"
	EventAdStatusChanged = "advertisement_status_changed"
	EventAdUpdated       = "advertisement_updated"
	EventAdDeleted       = "advertisement_deleted"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
