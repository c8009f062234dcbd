// Package beepaudio implements the playable media handle on top of the beep
// speaker, decoding local files or remote URLs and reporting transport
// events through a callback.
package beepaudio

import (
	"bytes"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/app/audio"
)

const (
	speakerRate   = beep.SampleRate(44100)
	speakerBuffer = 250 * time.Millisecond
	tickInterval  = 500 * time.Millisecond
	maxRemoteSize = 256 << 20
)

var speakerOnce sync.Once

func initSpeaker() error {
	var err error
	speakerOnce.Do(func() {
		err = speaker.Init(speakerRate, speakerRate.N(speakerBuffer))
	})
	return errors.Wrap(err, "failed to initialize speaker")
}

// Handle plays one source at a time through the process-wide speaker.
type Handle struct {
	mu sync.Mutex

	src      string
	gen      int
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	closer   io.Closer

	vol      float64
	muted    bool
	loop     bool
	autoplay bool
	playing  bool
	closed   bool

	onEvent  func(audio.MediaEvent)
	tickStop chan struct{}

	httpClient *http.Client
}

// New creates an idle handle. The speaker is initialized on first Load.
func New() *Handle {
	return &Handle{
		vol:        1.0,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Load swaps the playback source. An empty src unloads and stops.
func (h *Handle) Load(src string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("media handle is closed")
	}

	h.gen++
	h.unloadLocked()
	h.src = src
	if src == "" {
		h.mu.Unlock()
		return nil
	}
	gen := h.gen
	h.mu.Unlock()

	h.emit(audio.MediaLoadStarted)

	if err := initSpeaker(); err != nil {
		return err
	}

	streamer, format, closer, err := decodeSource(h.httpClient, src)
	if err != nil {
		h.emit(audio.MediaStalled)
		return err
	}

	h.mu.Lock()
	if h.closed || gen != h.gen {
		h.mu.Unlock()
		streamer.Close()
		closer.Close()
		return nil
	}

	h.streamer = streamer
	h.format = format
	h.closer = closer

	var chain beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		chain = beep.Resample(4, format.SampleRate, speakerRate, streamer)
	}
	h.volume = &effects.Volume{
		Streamer: chain,
		Base:     2,
		Volume:   volumeExponent(h.vol),
		Silent:   h.muted || h.vol == 0,
	}
	autoplay := h.autoplay
	h.ctrl = &beep.Ctrl{Streamer: h.volume, Paused: !autoplay}
	h.playing = autoplay
	h.startTickerLocked()
	h.mu.Unlock()

	speaker.Play(beep.Seq(h.ctrl, beep.Callback(func() {
		go h.handleStreamEnd(gen)
	})))

	h.emit(audio.MediaDurationKnown)
	h.emit(audio.MediaCanPlay)
	if autoplay {
		h.emit(audio.MediaPlayed)
	}
	return nil
}

// Play resumes playback of the loaded source.
func (h *Handle) Play() error {
	h.mu.Lock()
	if h.ctrl == nil {
		h.mu.Unlock()
		return errors.New("no source loaded")
	}
	speaker.Lock()
	h.ctrl.Paused = false
	speaker.Unlock()
	h.playing = true
	h.mu.Unlock()

	h.emit(audio.MediaPlayed)
	return nil
}

// Pause suspends playback, keeping the position.
func (h *Handle) Pause() error {
	h.mu.Lock()
	if h.ctrl == nil {
		h.mu.Unlock()
		return errors.New("no source loaded")
	}
	speaker.Lock()
	h.ctrl.Paused = true
	speaker.Unlock()
	h.playing = false
	h.mu.Unlock()

	h.emit(audio.MediaPaused)
	return nil
}

// Seek moves the playback position.
func (h *Handle) Seek(pos time.Duration) error {
	h.mu.Lock()
	if h.streamer == nil {
		h.mu.Unlock()
		return errors.New("no source loaded")
	}

	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if total := h.streamer.Len(); n > total {
		n = total
	}

	speaker.Lock()
	err := h.streamer.Seek(n)
	speaker.Unlock()
	h.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "seek failed")
	}
	h.emit(audio.MediaPositionTick)
	return nil
}

// Position returns the current playback position.
func (h *Handle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	speaker.Lock()
	n := h.streamer.Position()
	speaker.Unlock()
	return h.format.SampleRate.D(n)
}

// Duration returns the loaded source's total length.
func (h *Handle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.streamer == nil {
		return 0
	}
	return h.format.SampleRate.D(h.streamer.Len())
}

// SetVolume sets playback gain in [0, 1].
func (h *Handle) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	h.mu.Lock()
	h.vol = v
	if h.volume != nil {
		speaker.Lock()
		h.volume.Volume = volumeExponent(v)
		h.volume.Silent = h.muted || v == 0
		speaker.Unlock()
	}
	h.mu.Unlock()

	h.emit(audio.MediaVolumeChanged)
}

// Volume returns the gain in [0, 1].
func (h *Handle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vol
}

// SetMuted silences output without losing the gain setting.
func (h *Handle) SetMuted(muted bool) {
	h.mu.Lock()
	h.muted = muted
	if h.volume != nil {
		speaker.Lock()
		h.volume.Silent = muted || h.vol == 0
		speaker.Unlock()
	}
	h.mu.Unlock()

	h.emit(audio.MediaVolumeChanged)
}

// Muted reports whether output is silenced.
func (h *Handle) Muted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.muted
}

// SetLoop makes the source restart from the top when it drains.
func (h *Handle) SetLoop(loop bool) {
	h.mu.Lock()
	h.loop = loop
	h.mu.Unlock()
}

// Loop reports whether the source restarts when it drains.
func (h *Handle) Loop() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loop
}

// SetAutoplay makes future loads start playing immediately.
func (h *Handle) SetAutoplay(autoplay bool) {
	h.mu.Lock()
	h.autoplay = autoplay
	h.mu.Unlock()
}

// OnEvent registers the transport event callback. Passing nil detaches it.
func (h *Handle) OnEvent(fn func(audio.MediaEvent)) {
	h.mu.Lock()
	h.onEvent = fn
	h.mu.Unlock()
}

// Close unloads the source and detaches from the speaker.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.gen++
	h.unloadLocked()
	h.mu.Unlock()

	speaker.Clear()
	return nil
}

// unloadLocked stops ticking and releases the current source.
func (h *Handle) unloadLocked() {
	if h.tickStop != nil {
		close(h.tickStop)
		h.tickStop = nil
	}
	if h.streamer != nil {
		speaker.Clear()
		h.streamer.Close()
		h.streamer = nil
	}
	if h.closer != nil {
		h.closer.Close()
		h.closer = nil
	}
	h.ctrl = nil
	h.volume = nil
	h.playing = false
	h.src = ""
}

// handleStreamEnd runs when the decoded stream drains. Looping seeks back
// and re-queues the same control chain; otherwise the track is over.
func (h *Handle) handleStreamEnd(gen int) {
	h.mu.Lock()
	if h.closed || gen != h.gen || h.streamer == nil {
		h.mu.Unlock()
		return
	}

	if h.loop {
		speaker.Lock()
		err := h.streamer.Seek(0)
		speaker.Unlock()
		if err != nil {
			zlog.Warn().Err(err).Msg("beepaudio: loop rewind failed")
			h.playing = false
			h.mu.Unlock()
			h.emit(audio.MediaEnded)
			return
		}
		ctrl := h.ctrl
		h.mu.Unlock()

		speaker.Play(beep.Seq(ctrl, beep.Callback(func() {
			go h.handleStreamEnd(gen)
		})))
		h.emit(audio.MediaPositionTick)
		return
	}

	h.playing = false
	h.mu.Unlock()
	h.emit(audio.MediaEnded)
}

func (h *Handle) startTickerLocked() {
	stop := make(chan struct{})
	h.tickStop = stop

	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				h.mu.Lock()
				playing := h.playing
				h.mu.Unlock()
				if playing {
					h.emit(audio.MediaPositionTick)
				}
			}
		}
	}()
}

func (h *Handle) emit(t audio.MediaEventType) {
	h.mu.Lock()
	fn := h.onEvent
	h.mu.Unlock()
	if fn != nil {
		fn(audio.MediaEvent{Type: t})
	}
}

// volumeExponent maps linear [0, 1] gain onto the volume effect's base-2
// exponent scale.
func volumeExponent(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Log2(v)
}

// decodeSource opens and decodes a local path or http(s) URL, picking the
// decoder from the file extension.
func decodeSource(client *http.Client, src string) (beep.StreamSeekCloser, beep.Format, io.Closer, error) {
	rc, name, err := openSource(client, src)
	if err != nil {
		return nil, beep.Format{}, nil, err
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(rc)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(rc)
	case ".flac":
		streamer, format, err = flac.Decode(rc)
	case ".wav":
		streamer, format, err = wav.Decode(rc)
	default:
		rc.Close()
		return nil, beep.Format{}, nil, errors.Newf("unsupported audio format: %s", name)
	}
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, nil, errors.Wrapf(err, "failed to decode %s", name)
	}
	return streamer, format, rc, nil
}

type readSeekNopCloser struct {
	*bytes.Reader
}

func (readSeekNopCloser) Close() error { return nil }

// openSource returns a seekable reader for the source. Remote sources are
// buffered fully so the decoder can seek.
func openSource(client *http.Client, src string) (io.ReadSeekCloser, string, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		resp, err := client.Get(src)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to fetch audio source")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, "", errors.Newf("audio source returned status %d", resp.StatusCode)
		}

		blob, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize))
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to buffer audio source")
		}
		return readSeekNopCloser{bytes.NewReader(blob)}, strings.SplitN(src, "?", 2)[0], nil
	}

	f, err := os.Open(src)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to open audio file")
	}
	return f, src, nil
}
