// Package audio provides the adapter around a single playable media handle,
// exposing reactive transport state and load/play/pause operations.
package audio

import "time"

// MediaEventType identifies a transport event emitted by a media handle.
type MediaEventType int

const (
	MediaLoadStarted   MediaEventType = iota // New source started loading
	MediaDurationKnown                       // Duration became available
	MediaPositionTick                        // Playback position advanced
	MediaVolumeChanged                       // Volume or mute changed
	MediaPlayed                              // Playback started or resumed
	MediaPaused                              // Playback paused
	MediaEnded                               // Track reached its end
	MediaStalled                             // Playback waiting on data
	MediaPlaying                             // Data arrived, playback resumed
	MediaCanPlay                             // Enough data buffered to play through
)

// String returns the string representation of the event type.
func (e MediaEventType) String() string {
	switch e {
	case MediaLoadStarted:
		return "load_started"
	case MediaDurationKnown:
		return "duration_known"
	case MediaPositionTick:
		return "position_tick"
	case MediaVolumeChanged:
		return "volume_changed"
	case MediaPlayed:
		return "played"
	case MediaPaused:
		return "paused"
	case MediaEnded:
		return "ended"
	case MediaStalled:
		return "stalled"
	case MediaPlaying:
		return "playing"
	case MediaCanPlay:
		return "can_play"
	default:
		return "unknown"
	}
}

// MediaEvent is a transport event from the underlying handle.
type MediaEvent struct {
	Type MediaEventType
}

// Media is the underlying playable handle the adapter wraps. Implementations
// report state changes through the single registered event callback rather
// than expecting callers to poll.
type Media interface {
	// Load swaps the source. An empty src clears the handle and stops
	// playback. Resets position and duration tracking.
	Load(src string) error
	Play() error
	Pause() error

	Seek(pos time.Duration) error
	Position() time.Duration
	Duration() time.Duration

	SetVolume(v float64)
	Volume() float64
	SetMuted(muted bool)
	Muted() bool
	SetLoop(loop bool)
	Loop() bool
	SetAutoplay(autoplay bool)

	// OnEvent registers the event callback. Passing nil detaches it.
	OnEvent(fn func(MediaEvent))

	Close() error
}
