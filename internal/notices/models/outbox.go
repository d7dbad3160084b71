package models

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEventNotificationCreated is the event type of a queued notification.
const OutboxEventNotificationCreated = "notification.created"

// OutboxEntry is a notification awaiting relay to the delivery topic. It is
// written in the same transaction as the notification itself.
type OutboxEntry struct {
	ID          uuid.UUID
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
