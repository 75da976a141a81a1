package rainfall

import (
	"context"
	"time"
)

// EventType identifies an observation change.
type EventType string

const (
	EventCreated EventType = "observation.created"
	EventUpdated EventType = "observation.updated"
	EventDeleted EventType = "observation.deleted"
)

// ObservationChanged is emitted after an observation write commits.
type ObservationChanged struct {
	Type          EventType `json:"type"`
	ObservationID int64     `json:"observation_id"`
	UserID        int64     `json:"user_id"`
	StationID     int64     `json:"station_id"`
	Timestamp     time.Time `json:"timestamp"`
	RainfallMM    float64   `json:"rainfall_mm"`
	TimeRange     string    `json:"time_range,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewObservationChanged builds an event from the committed state of o.
func NewObservationChanged(eventType EventType, o Observation, occurredAt time.Time) ObservationChanged {
	return ObservationChanged{
		Type:          eventType,
		ObservationID: o.ID,
		UserID:        o.UserID,
		StationID:     o.StationID,
		Timestamp:     o.Timestamp.UTC(),
		RainfallMM:    o.RainfallMM,
		TimeRange:     string(o.TimeBucket),
		OccurredAt:    occurredAt.UTC(),
	}
}

// EventPublisher delivers observation change events.
type EventPublisher interface {
	Publish(ctx context.Context, event ObservationChanged) error
}
