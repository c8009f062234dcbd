package player

import (
	"github.com/maple-pod/maplepod/internal/app/audio"
	"github.com/maple-pod/maplepod/internal/domain/preference"
)

// EventType represents a player event type.
type EventType int

const (
	EventTrackChanged       EventType = iota // Current track id changed
	EventStateChanged                        // Transport status changed
	EventQueueChanged                        // Temporary or upcoming queue changed
	EventPreferencesChanged                  // Volume, mute, shuffle or repeat changed
)

// String returns the string representation of the event type.
func (e EventType) String() string {
	switch e {
	case EventTrackChanged:
		return "track_changed"
	case EventStateChanged:
		return "state_changed"
	case EventQueueChanged:
		return "queue_changed"
	case EventPreferencesChanged:
		return "preferences_changed"
	default:
		return "unknown"
	}
}

// Event represents a player event.
type Event struct {
	Type        EventType
	TrackID     string       // Current track id (empty when idle)
	Status      audio.Status // Transport snapshot at emission time
	Preferences preference.Preferences
}
