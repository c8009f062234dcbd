// Package audiotest provides a scriptable in-memory Media implementation
// for exercising the adapter and player without real audio output.
package audiotest

import (
	"sync"
	"time"

	"github.com/maple-pod/maplepod/internal/app/audio"
)

// FakeMedia is a Media whose transport state is driven entirely by the test.
// Load/Play/Pause/Seek mutate state and emit the same events a real handle
// would; Emit injects arbitrary extra events.
type FakeMedia struct {
	mu sync.Mutex

	Src       string
	LoadCalls []string
	PlayCount int
	Closed    bool

	autoplay bool
	loop     bool
	muted    bool
	volume   float64
	paused   bool
	position time.Duration
	duration time.Duration

	onEvent func(audio.MediaEvent)
}

// NewFakeMedia creates a paused fake with volume 1.
func NewFakeMedia() *FakeMedia {
	return &FakeMedia{volume: 1, paused: true}
}

func (m *FakeMedia) emit(t audio.MediaEventType) {
	m.mu.Lock()
	fn := m.onEvent
	m.mu.Unlock()
	if fn != nil {
		fn(audio.MediaEvent{Type: t})
	}
}

// Emit injects a raw media event.
func (m *FakeMedia) Emit(t audio.MediaEventType) {
	m.emit(t)
}

// Load records the source and emits a load-started event. An autoplaying
// fake immediately starts playing non-empty sources.
func (m *FakeMedia) Load(src string) error {
	m.mu.Lock()
	m.Src = src
	m.LoadCalls = append(m.LoadCalls, src)
	m.position = 0
	m.duration = 0
	m.paused = true
	autoplay := m.autoplay
	m.mu.Unlock()

	m.emit(audio.MediaLoadStarted)
	if src != "" && autoplay {
		return m.Play()
	}
	return nil
}

func (m *FakeMedia) Play() error {
	m.mu.Lock()
	m.paused = false
	m.PlayCount++
	m.mu.Unlock()
	m.emit(audio.MediaPlayed)
	return nil
}

func (m *FakeMedia) Pause() error {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.emit(audio.MediaPaused)
	return nil
}

func (m *FakeMedia) Seek(pos time.Duration) error {
	m.mu.Lock()
	m.position = pos
	m.mu.Unlock()
	m.emit(audio.MediaPositionTick)
	return nil
}

// SetDuration scripts a known duration, emitting the matching event.
func (m *FakeMedia) SetDuration(d time.Duration) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
	m.emit(audio.MediaDurationKnown)
}

// AdvanceTo scripts the playback position, emitting a position tick.
func (m *FakeMedia) AdvanceTo(pos time.Duration) {
	m.mu.Lock()
	m.position = pos
	m.mu.Unlock()
	m.emit(audio.MediaPositionTick)
}

// End scripts a natural track end.
func (m *FakeMedia) End() {
	m.mu.Lock()
	m.paused = true
	m.mu.Unlock()
	m.emit(audio.MediaEnded)
}

func (m *FakeMedia) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *FakeMedia) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *FakeMedia) SetVolume(v float64) {
	m.mu.Lock()
	m.volume = v
	m.mu.Unlock()
	m.emit(audio.MediaVolumeChanged)
}

func (m *FakeMedia) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

func (m *FakeMedia) SetMuted(muted bool) {
	m.mu.Lock()
	m.muted = muted
	m.mu.Unlock()
	m.emit(audio.MediaVolumeChanged)
}

func (m *FakeMedia) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

func (m *FakeMedia) SetLoop(loop bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loop = loop
}

func (m *FakeMedia) Loop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loop
}

func (m *FakeMedia) SetAutoplay(autoplay bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoplay = autoplay
}

// Paused reports the scripted paused state.
func (m *FakeMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *FakeMedia) OnEvent(fn func(audio.MediaEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvent = fn
}

func (m *FakeMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}
