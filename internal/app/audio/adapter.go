package audio

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// Status is a snapshot of the adapter's transport state. Fields update in
// response to media events, never by polling.
type Status struct {
	Duration  time.Duration
	Position  time.Duration
	Volume    float64
	Muted     bool
	Loop      bool
	Paused    bool
	Buffering bool
	CanPlay   bool
}

// Options holds initial adapter state applied to the handle.
type Options struct {
	Autoplay bool
	Loop     bool
	Muted    bool
	Volume   float64
}

// Adapter wraps one Media handle and keeps a Status snapshot synchronized
// with its events. Observers registered with OnChange see every snapshot
// update, including the synthesized notification for loop assignments, which
// the underlying handle has no native event for.
type Adapter struct {
	mu             sync.RWMutex
	media          Media
	status         Status
	observers      []func(Status)
	eventObservers []func(MediaEventType, Status)
	closed         bool
}

// NewAdapter wraps the handle and applies the initial options.
func NewAdapter(media Media, opts Options) *Adapter {
	media.SetAutoplay(opts.Autoplay)
	media.SetLoop(opts.Loop)
	media.SetMuted(opts.Muted)
	media.SetVolume(opts.Volume)

	a := &Adapter{
		media: media,
		status: Status{
			Volume: media.Volume(),
			Muted:  media.Muted(),
			Loop:   media.Loop(),
			Paused: true,
		},
	}
	media.OnEvent(a.handleMediaEvent)
	return a
}

// Status returns the current transport snapshot.
func (a *Adapter) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// OnChange registers an observer invoked with each new snapshot.
func (a *Adapter) OnChange(fn func(Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observers = append(a.observers, fn)
}

// OnEvent registers an observer for raw transport events, invoked after the
// snapshot has been updated from the event.
func (a *Adapter) OnEvent(fn func(MediaEventType, Status)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.eventObservers = append(a.eventObservers, fn)
}

// Load swaps the media source.
func (a *Adapter) Load(src string) {
	if err := a.media.Load(src); err != nil {
		zlog.Warn().Err(err).Str("src", src).Msg("audio: load failed")
	}
}

// Play starts or resumes playback.
func (a *Adapter) Play() {
	if err := a.media.Play(); err != nil {
		zlog.Warn().Err(err).Msg("audio: play failed")
	}
}

// Pause pauses playback.
func (a *Adapter) Pause() {
	if err := a.media.Pause(); err != nil {
		zlog.Warn().Err(err).Msg("audio: pause failed")
	}
}

// Seek moves the playback position.
func (a *Adapter) Seek(pos time.Duration) {
	if err := a.media.Seek(pos); err != nil {
		zlog.Warn().Err(err).Msg("audio: seek failed")
	}
}

// SetVolume sets the handle volume in [0,1].
func (a *Adapter) SetVolume(v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	a.media.SetVolume(v)
}

// SetMuted sets the mute flag.
func (a *Adapter) SetMuted(muted bool) {
	a.media.SetMuted(muted)
}

// SetLoop sets the loop flag and synthesizes a change notification, since
// the handle emits no event for loop assignments.
func (a *Adapter) SetLoop(loop bool) {
	a.media.SetLoop(loop)

	a.mu.Lock()
	a.status.Loop = a.media.Loop()
	status, observers := a.status, a.observers
	a.mu.Unlock()

	notify(observers, status)
}

// Close stops playback, clears the source, disables autoplay and detaches
// the event callback. The adapter must not be used afterwards.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.observers = nil
	a.eventObservers = nil
	a.mu.Unlock()

	a.media.SetAutoplay(false)
	if err := a.media.Pause(); err != nil {
		zlog.Debug().Err(err).Msg("audio: pause on close failed")
	}
	if err := a.media.Load(""); err != nil {
		zlog.Debug().Err(err).Msg("audio: source clear on close failed")
	}
	a.media.OnEvent(nil)
	if err := a.media.Close(); err != nil {
		zlog.Warn().Err(err).Msg("audio: media close failed")
	}
}

func (a *Adapter) handleMediaEvent(e MediaEvent) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	switch e.Type {
	case MediaLoadStarted:
		a.status.CanPlay = false
		a.status.Duration = 0
		a.status.Position = 0
	case MediaDurationKnown:
		a.status.Duration = a.media.Duration()
	case MediaPositionTick:
		a.status.Position = a.media.Position()
	case MediaVolumeChanged:
		a.status.Volume = a.media.Volume()
		a.status.Muted = a.media.Muted()
	case MediaPlayed, MediaPaused, MediaEnded:
		a.status.Paused = e.Type != MediaPlayed
	case MediaStalled:
		a.status.Buffering = true
	case MediaPlaying:
		a.status.Buffering = false
	case MediaCanPlay:
		a.status.CanPlay = true
	}

	status, observers, eventObservers := a.status, a.observers, a.eventObservers
	a.mu.Unlock()

	notify(observers, status)
	for _, fn := range eventObservers {
		fn(e.Type, status)
	}
}

func notify(observers []func(Status), status Status) {
	for _, fn := range observers {
		fn(status)
	}
}
