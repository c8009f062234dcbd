// Package player provides the player facade: the queue engine and the audio
// adapter composed with user preferences and the external source resolver.
package player

import (
	"context"
	"math/rand"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/app/audio"
	"github.com/maple-pod/maplepod/internal/app/nowplaying"
	"github.com/maple-pod/maplepod/internal/app/queue"
	"github.com/maple-pod/maplepod/internal/domain/preference"
	"github.com/maple-pod/maplepod/internal/domain/track"
)

// Config holds facade policy settings.
type Config struct {
	// LoadDebounce coalesces rapid current-track changes into one source
	// resolution. Zero resolves inline with no coalescing.
	LoadDebounce time.Duration
	// RestartThreshold is the elapsed position beyond which GoPrevious
	// restarts the current track instead of stepping back.
	RestartThreshold time.Duration
}

// DefaultConfig returns the product-policy defaults.
func DefaultConfig() Config {
	return Config{
		LoadDebounce:     300 * time.Millisecond,
		RestartThreshold: 3 * time.Second,
	}
}

// Options holds the collaborators and initial state of a Player.
type Options struct {
	// Media is the playable handle; the facade owns it exclusively.
	Media audio.Media
	// ResolveSource maps a track id to a playable source. Empty result
	// means "not resolvable now" and leaves the transport idle.
	ResolveSource func(ctx context.Context, id string) (string, error)
	// IsDisabled gates tracks from automatic queue navigation.
	IsDisabled func(id string) bool
	// LookupTrack supplies metadata for the now-playing integration.
	LookupTrack func(id string) (track.Track, bool)
	// NowPlaying is the optional media-session bridge.
	NowPlaying nowplaying.Session
	// Preferences is the loaded (already normalized) preference record.
	Preferences preference.Preferences
	// OnPreferencesChanged persists preference updates.
	OnPreferencesChanged func(preference.Preferences)

	Config Config
	Rand   *rand.Rand
}

// Player composes the queue engine with the audio adapter. It is the only
// component that touches the adapter; the queue never does.
type Player struct {
	adapter *audio.Adapter
	queue   *queue.Queue
	cfg     Config

	resolve     func(ctx context.Context, id string) (string, error)
	lookupTrack func(id string) (track.Track, bool)
	nowPlaying  nowplaying.Session
	onPrefs     func(preference.Preferences)

	prefsMu sync.RWMutex
	repeat  preference.RepeatMode
	theme   string

	loadMu        sync.Mutex
	lastCurrent   string
	pendingCancel func()

	mu      sync.Mutex
	closed  bool
	eventCh chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a player facade around the given media handle.
func New(opts Options) *Player {
	cfg := opts.Config
	if cfg.RestartThreshold == 0 {
		cfg.RestartThreshold = DefaultConfig().RestartThreshold
	}
	resolve := opts.ResolveSource
	if resolve == nil {
		resolve = func(context.Context, string) (string, error) { return "", nil }
	}
	lookup := opts.LookupTrack
	if lookup == nil {
		lookup = func(string) (track.Track, bool) { return track.Track{}, false }
	}

	prefs := opts.Preferences
	prefs.Normalize()

	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		adapter: audio.NewAdapter(opts.Media, audio.Options{
			Volume: prefs.Volume,
			Muted:  prefs.Muted,
			Loop:   prefs.Repeat == preference.RepeatOne,
		}),
		queue: queue.New(queue.Options{
			IsDisabled: opts.IsDisabled,
			Shuffle:    prefs.Shuffle,
			Rand:       opts.Rand,
		}),
		cfg:         cfg,
		resolve:     resolve,
		lookupTrack: lookup,
		nowPlaying:  opts.NowPlaying,
		onPrefs:     opts.OnPreferencesChanged,
		repeat:      prefs.Repeat,
		theme:       prefs.Theme,
		eventCh:     make(chan Event, 16),
		ctx:         ctx,
		cancel:      cancel,
	}

	p.adapter.OnChange(p.handleStatusChange)
	p.adapter.OnEvent(p.handleTransportEvent)
	if p.nowPlaying != nil {
		p.nowPlaying.OnCommand(p.handleCommand)
	}
	return p
}

// Events returns the player event channel.
func (p *Player) Events() <-chan Event {
	return p.eventCh
}

// Play initializes the queue from an ordered id list and an optional start
// id, then begins playback of the selected track. Invalid input is ignored.
func (p *Player) Play(ids []string, startID string) {
	p.queue.Init(ids, startID)
	p.syncCurrent()
	p.sendEvent(EventQueueChanged)
}

// TogglePlay pauses when playing and resumes when paused.
func (p *Player) TogglePlay() {
	if p.adapter.Status().Paused {
		p.adapter.Play()
	} else {
		p.adapter.Pause()
	}
}

// SetPlaying forces the transport into the given state.
func (p *Player) SetPlaying(playing bool) {
	if playing {
		p.adapter.Play()
	} else {
		p.adapter.Pause()
	}
}

// GoNext advances to the next track.
func (p *Player) GoNext() {
	p.queue.GoNext()
	p.syncCurrent()
	p.sendEvent(EventQueueChanged)
}

// GoPrevious restarts the current track when more than the restart threshold
// has elapsed, and steps back in the queue otherwise.
func (p *Player) GoPrevious() {
	if p.queue.Current() == "" {
		return
	}
	if p.adapter.Status().Position > p.cfg.RestartThreshold {
		p.adapter.Seek(0)
		return
	}
	p.queue.GoPrevious()
	p.syncCurrent()
	p.sendEvent(EventQueueChanged)
}

// Seek moves the transport position.
func (p *Player) Seek(pos time.Duration) {
	p.adapter.Seek(pos)
}

// AddToTemporaryQueue queues an id to play next.
func (p *Player) AddToTemporaryQueue(id string) {
	p.queue.AddToTemporary(id)
	p.sendEvent(EventQueueChanged)
}

// RemoveFromTemporaryQueue drops the temporary entry at the given index.
func (p *Player) RemoveFromTemporaryQueue(index int) {
	p.queue.RemoveFromTemporary(index)
	p.sendEvent(EventQueueChanged)
}

// ClearTemporaryQueue drops all temporary entries.
func (p *Player) ClearTemporaryQueue() {
	p.queue.ClearTemporary()
	p.sendEvent(EventQueueChanged)
}

// PlayTemporaryQueueItem promotes the temporary entry at the given index.
func (p *Player) PlayTemporaryQueueItem(index int) {
	p.queue.PlayTemporaryItem(index)
	p.syncCurrent()
	p.sendEvent(EventQueueChanged)
}

// PlayUpcomingQueueItem jumps directly to an upcoming id.
func (p *Player) PlayUpcomingQueueItem(id string) {
	p.queue.PlayUpcomingItem(id)
	p.syncCurrent()
	p.sendEvent(EventQueueChanged)
}

// CurrentTrackID returns the active track id, empty when idle.
func (p *Player) CurrentTrackID() string {
	return p.queue.Current()
}

// TemporaryQueue returns the user-injected "play next" entries.
func (p *Player) TemporaryQueue() []string {
	return p.queue.Temporary()
}

// UpcomingQueue returns the ids not yet played, in play order. The played
// history is internal and never exposed.
func (p *Player) UpcomingQueue() []string {
	return p.queue.Upcoming()
}

// HasReachedEnd reports whether a natural track end has nowhere to advance.
func (p *Player) HasReachedEnd() bool {
	return p.queue.HasReachedEnd()
}

// Status returns the transport snapshot.
func (p *Player) Status() audio.Status {
	return p.adapter.Status()
}

// SetVolume sets the volume in [0,1] and persists it.
func (p *Player) SetVolume(v float64) {
	p.adapter.SetVolume(v)
	p.savePreferences()
}

// ToggleMute flips the mute flag and persists it.
func (p *Player) ToggleMute() {
	p.adapter.SetMuted(!p.adapter.Status().Muted)
	p.savePreferences()
}

// ToggleShuffle flips shuffle, immediately re-deriving the future order.
func (p *Player) ToggleShuffle() {
	p.queue.ToggleShuffle()
	p.sendEvent(EventQueueChanged)
	p.savePreferences()
}

// ShuffleEnabled reports the shuffle state.
func (p *Player) ShuffleEnabled() bool {
	return p.queue.Shuffle()
}

// Repeat returns the current repeat mode.
func (p *Player) Repeat() preference.RepeatMode {
	p.prefsMu.RLock()
	defer p.prefsMu.RUnlock()
	return p.repeat
}

// CycleRepeat advances off -> repeat-all -> repeat-one -> off.
func (p *Player) CycleRepeat() {
	p.SetRepeat(p.Repeat().Next())
}

// SetRepeat sets the repeat mode. Repeat-one drives the adapter's native
// loop; the other modes force it off.
func (p *Player) SetRepeat(mode preference.RepeatMode) {
	if !mode.Valid() {
		return
	}
	p.prefsMu.Lock()
	p.repeat = mode
	p.prefsMu.Unlock()

	p.adapter.SetLoop(mode == preference.RepeatOne)
	p.savePreferences()
}

// Preferences returns the current preference snapshot.
func (p *Player) Preferences() preference.Preferences {
	status := p.adapter.Status()
	p.prefsMu.RLock()
	defer p.prefsMu.RUnlock()
	return preference.Preferences{
		Volume:  status.Volume,
		Muted:   status.Muted,
		Shuffle: p.queue.Shuffle(),
		Repeat:  p.repeat,
		Theme:   p.theme,
	}
}

// Close stops playback, cancels any in-flight source resolution and
// releases the media handle.
func (p *Player) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.cancel()
	p.loadMu.Lock()
	if p.pendingCancel != nil {
		p.pendingCancel()
		p.pendingCancel = nil
	}
	p.loadMu.Unlock()

	p.adapter.Close()

	p.mu.Lock()
	close(p.eventCh)
	p.mu.Unlock()
}

// syncCurrent reconciles the transport with the queue's current id: cancels
// any in-flight resolution, stops the adapter and schedules a debounced
// resolve+load for the new id.
func (p *Player) syncCurrent() {
	id := p.queue.Current()

	p.loadMu.Lock()
	if id == p.lastCurrent {
		p.loadMu.Unlock()
		return
	}
	p.lastCurrent = id

	if p.pendingCancel != nil {
		p.pendingCancel()
		p.pendingCancel = nil
	}

	// Stop whatever is playing before the new source resolves.
	p.adapter.Load("")

	if id != "" {
		ctx, cancel := context.WithCancel(p.ctx)
		if p.cfg.LoadDebounce <= 0 {
			p.pendingCancel = cancel
			p.loadMu.Unlock()
			p.resolveAndLoad(ctx, id)
			p.afterTrackChange(id)
			return
		}
		timer := time.AfterFunc(p.cfg.LoadDebounce, func() {
			p.resolveAndLoad(ctx, id)
		})
		p.pendingCancel = func() {
			timer.Stop()
			cancel()
		}
	}
	p.loadMu.Unlock()

	p.afterTrackChange(id)
}

func (p *Player) afterTrackChange(id string) {
	if p.nowPlaying != nil && id != "" {
		if t, ok := p.lookupTrack(id); ok {
			p.nowPlaying.SetNowPlaying(t)
		}
	}
	p.sendEvent(EventTrackChanged)
}

// resolveAndLoad runs the single-slot pending resolution. A cancelled or
// superseded resolution discards its result instead of loading it.
func (p *Player) resolveAndLoad(ctx context.Context, id string) {
	src, err := p.resolve(ctx, id)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Warn().Err(err).Str("track", id).Msg("player: source resolution failed")
		}
		return
	}
	if src == "" || ctx.Err() != nil {
		return
	}

	p.loadMu.Lock()
	superseded := p.lastCurrent != id
	p.loadMu.Unlock()
	if superseded {
		return
	}

	p.adapter.Load(src)
	p.adapter.Play()
}

// handleTransportEvent applies the repeat/advance policy on track end.
func (p *Player) handleTransportEvent(t audio.MediaEventType, _ audio.Status) {
	if t != audio.MediaEnded {
		return
	}

	switch p.Repeat() {
	case preference.RepeatAll:
		p.GoNext()
	case preference.RepeatOff:
		if !p.queue.HasReachedEnd() {
			p.GoNext()
		}
	case preference.RepeatOne:
		// Native loop already restarted playback.
	}
}

func (p *Player) handleStatusChange(status audio.Status) {
	if p.nowPlaying != nil {
		p.nowPlaying.SetPlaybackState(status.Paused)
		p.nowPlaying.SetPosition(status.Position, status.Duration)
	}
	p.sendEvent(EventStateChanged)
}

func (p *Player) handleCommand(cmd nowplaying.Command, pos time.Duration) {
	switch cmd {
	case nowplaying.CommandPlay:
		p.SetPlaying(true)
	case nowplaying.CommandPause:
		p.SetPlaying(false)
	case nowplaying.CommandNext:
		p.GoNext()
	case nowplaying.CommandPrevious:
		p.GoPrevious()
	case nowplaying.CommandSeek:
		p.Seek(pos)
	}
}

func (p *Player) savePreferences() {
	prefs := p.Preferences()
	if p.onPrefs != nil {
		p.onPrefs(prefs)
	}
	p.sendEvent(EventPreferencesChanged)
}

// sendEvent sends a player event without blocking.
func (p *Player) sendEvent(t EventType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	e := Event{
		Type:        t,
		TrackID:     p.queue.Current(),
		Status:      p.adapter.Status(),
		Preferences: p.Preferences(),
	}
	select {
	case p.eventCh <- e:
	case <-p.ctx.Done():
	default:
		// Channel full, drop event.
	}
}
