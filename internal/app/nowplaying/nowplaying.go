// Package nowplaying provides the bridge to the platform's now-playing /
// media-session integration.
package nowplaying

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/domain/track"
)

// Command is an external transport command received from the platform.
type Command int

const (
	CommandPlay Command = iota
	CommandPause
	CommandNext
	CommandPrevious
	CommandSeek
)

// String returns the string representation of the command.
func (c Command) String() string {
	switch c {
	case CommandPlay:
		return "play"
	case CommandPause:
		return "pause"
	case CommandNext:
		return "next"
	case CommandPrevious:
		return "previous"
	case CommandSeek:
		return "seek"
	default:
		return "unknown"
	}
}

// Session mirrors transport state out to the platform and delivers external
// transport commands back in. Implementations must tolerate being called
// from the player's event path.
type Session interface {
	SetNowPlaying(t track.Track)
	SetPlaybackState(paused bool)
	SetPosition(position, duration time.Duration)
	// OnCommand registers the handler for external commands. The position
	// argument is meaningful for CommandSeek only.
	OnCommand(fn func(cmd Command, pos time.Duration))
}

// LogSession is a Session that only logs, used when no platform integration
// is wired in.
type LogSession struct {
	handler func(Command, time.Duration)
}

// NewLogSession creates a logging no-op session.
func NewLogSession() *LogSession {
	return &LogSession{}
}

func (s *LogSession) SetNowPlaying(t track.Track) {
	zlog.Debug().Str("track", t.Src).Str("title", t.Title).Msg("nowplaying: track changed")
}

func (s *LogSession) SetPlaybackState(paused bool) {
	zlog.Debug().Bool("paused", paused).Msg("nowplaying: playback state")
}

func (s *LogSession) SetPosition(position, duration time.Duration) {
}

func (s *LogSession) OnCommand(fn func(Command, time.Duration)) {
	s.handler = fn
}

// Dispatch delivers an external command to the registered handler. Exposed
// so other components (remote control API, tests) can inject commands.
func (s *LogSession) Dispatch(cmd Command, pos time.Duration) {
	if s.handler != nil {
		s.handler(cmd, pos)
	}
}
