package player

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maple-pod/maplepod/internal/app/audio/audiotest"
	"github.com/maple-pod/maplepod/internal/app/nowplaying"
	"github.com/maple-pod/maplepod/internal/domain/preference"
)

func sourceFor(id string) string {
	return "https://bgm.example/" + id + ".mp3"
}

// newTestPlayer builds a player over a fake media handle with a synchronous
// (zero-debounce) resolver so tests observe loads deterministically.
func newTestPlayer(t *testing.T, opts Options) (*Player, *audiotest.FakeMedia) {
	t.Helper()

	media := audiotest.NewFakeMedia()
	opts.Media = media
	if opts.ResolveSource == nil {
		opts.ResolveSource = func(_ context.Context, id string) (string, error) {
			return sourceFor(id), nil
		}
	}
	p := New(opts)
	t.Cleanup(p.Close)
	return p, media
}

func TestPlayer_PlayLoadsAndStartsFirstTrack(t *testing.T) {
	p, media := newTestPlayer(t, Options{})

	p.Play([]string{"a", "b", "c"}, "")

	assert.Equal(t, "a", p.CurrentTrackID())
	assert.Equal(t, sourceFor("a"), media.Src)
	assert.False(t, media.Paused())
	assert.Equal(t, []string{"b", "c"}, p.UpcomingQueue())
}

func TestPlayer_PlayWithStartID(t *testing.T) {
	p, media := newTestPlayer(t, Options{})

	p.Play([]string{"a", "b", "c"}, "b")

	assert.Equal(t, "b", p.CurrentTrackID())
	assert.Equal(t, sourceFor("b"), media.Src)
}

func TestPlayer_UnresolvableSourceLeavesTransportIdle(t *testing.T) {
	p, media := newTestPlayer(t, Options{
		ResolveSource: func(context.Context, string) (string, error) {
			return "", nil
		},
	})

	p.Play([]string{"a"}, "")

	assert.Equal(t, "a", p.CurrentTrackID())
	assert.Empty(t, media.Src)
	assert.True(t, media.Paused())
}

func TestPlayer_ResolutionErrorIsNotFatal(t *testing.T) {
	p, media := newTestPlayer(t, Options{
		ResolveSource: func(context.Context, string) (string, error) {
			return "", fmt.Errorf("cache miss")
		},
	})

	p.Play([]string{"a"}, "")
	assert.Empty(t, media.Src)
	assert.True(t, media.Paused())
}

func TestPlayer_EndedPolicy(t *testing.T) {
	tests := []struct {
		name        string
		repeat      preference.RepeatMode
		startID     string
		wantCurrent string
	}{
		{
			name:        "repeat-all advances mid-list",
			repeat:      preference.RepeatAll,
			startID:     "a",
			wantCurrent: "b",
		},
		{
			name:        "repeat-all wraps past the end",
			repeat:      preference.RepeatAll,
			startID:     "c",
			wantCurrent: "a",
		},
		{
			name:        "off advances mid-list",
			repeat:      preference.RepeatOff,
			startID:     "b",
			wantCurrent: "c",
		},
		{
			name:        "off does not wrap past the end",
			repeat:      preference.RepeatOff,
			startID:     "c",
			wantCurrent: "c",
		},
		{
			name:        "repeat-one leaves the queue alone",
			repeat:      preference.RepeatOne,
			startID:     "b",
			wantCurrent: "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, media := newTestPlayer(t, Options{
				Preferences: preference.Preferences{Volume: 1, Repeat: tt.repeat},
			})
			p.Play([]string{"a", "b", "c"}, tt.startID)

			media.End()
			assert.Equal(t, tt.wantCurrent, p.CurrentTrackID())
		})
	}
}

func TestPlayer_GoPreviousRestartRule(t *testing.T) {
	p, media := newTestPlayer(t, Options{})
	p.Play([]string{"a", "b", "c"}, "b")
	media.SetDuration(60 * time.Second)

	// Past the threshold: restart the current track.
	media.AdvanceTo(5 * time.Second)
	p.GoPrevious()
	assert.Equal(t, "b", p.CurrentTrackID())
	assert.Zero(t, media.Position())

	// Within the threshold: step back.
	media.AdvanceTo(time.Second)
	p.GoPrevious()
	assert.Equal(t, "a", p.CurrentTrackID())
}

func TestPlayer_RepeatOneDrivesAdapterLoop(t *testing.T) {
	p, media := newTestPlayer(t, Options{})

	p.SetRepeat(preference.RepeatOne)
	assert.True(t, media.Loop())
	assert.True(t, p.Status().Loop)

	p.SetRepeat(preference.RepeatAll)
	assert.False(t, media.Loop())
}

func TestPlayer_CycleRepeat(t *testing.T) {
	p, _ := newTestPlayer(t, Options{})
	require.Equal(t, preference.RepeatOff, p.Repeat())

	p.CycleRepeat()
	assert.Equal(t, preference.RepeatAll, p.Repeat())
	p.CycleRepeat()
	assert.Equal(t, preference.RepeatOne, p.Repeat())
	p.CycleRepeat()
	assert.Equal(t, preference.RepeatOff, p.Repeat())
}

func TestPlayer_DebounceCoalescesRapidSkips(t *testing.T) {
	var calls atomic.Int32
	p, media := newTestPlayer(t, Options{
		Config: Config{LoadDebounce: 30 * time.Millisecond},
		ResolveSource: func(_ context.Context, id string) (string, error) {
			calls.Add(1)
			return sourceFor(id), nil
		},
	})

	p.Play([]string{"a", "b", "c", "d"}, "")
	p.GoNext()
	p.GoNext()
	p.GoNext()

	assert.Eventually(t, func() bool {
		return media.Src == sourceFor("d")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "only the last stable id may resolve")
}

func TestPlayer_CancelledResolutionDiscardsResult(t *testing.T) {
	p, media := newTestPlayer(t, Options{
		Config: Config{LoadDebounce: 5 * time.Millisecond},
		ResolveSource: func(ctx context.Context, id string) (string, error) {
			<-ctx.Done()
			return sourceFor(id), ctx.Err()
		},
	})

	p.Play([]string{"a", "b"}, "")
	time.Sleep(20 * time.Millisecond) // resolution for "a" is now in flight
	p.GoNext()                        // cancels it
	p.Close()                         // cancels the one for "b"

	time.Sleep(20 * time.Millisecond)
	for _, src := range media.LoadCalls {
		assert.Empty(t, src, "a cancelled resolution must never load")
	}
}

func TestPlayer_PreferencePersistence(t *testing.T) {
	var saved preference.Preferences
	p, _ := newTestPlayer(t, Options{
		OnPreferencesChanged: func(prefs preference.Preferences) { saved = prefs },
	})

	p.SetVolume(0.4)
	assert.InDelta(t, 0.4, saved.Volume, 1e-9)

	p.ToggleMute()
	assert.True(t, saved.Muted)

	p.ToggleShuffle()
	assert.True(t, saved.Shuffle)

	p.CycleRepeat()
	assert.Equal(t, preference.RepeatAll, saved.Repeat)
}

func TestPlayer_InvalidPreferencesAreCoerced(t *testing.T) {
	p, _ := newTestPlayer(t, Options{
		Preferences: preference.Preferences{Volume: 7, Repeat: "bogus"},
	})

	prefs := p.Preferences()
	assert.InDelta(t, 1.0, prefs.Volume, 1e-9)
	assert.Equal(t, preference.RepeatOff, prefs.Repeat)
}

func TestPlayer_NowPlayingCommands(t *testing.T) {
	session := nowplaying.NewLogSession()
	p, media := newTestPlayer(t, Options{NowPlaying: session})
	p.Play([]string{"a", "b", "c"}, "")

	session.Dispatch(nowplaying.CommandNext, 0)
	assert.Equal(t, "b", p.CurrentTrackID())

	session.Dispatch(nowplaying.CommandPause, 0)
	assert.True(t, media.Paused())

	session.Dispatch(nowplaying.CommandPlay, 0)
	assert.False(t, media.Paused())

	session.Dispatch(nowplaying.CommandSeek, 9*time.Second)
	assert.Equal(t, 9*time.Second, media.Position())

	session.Dispatch(nowplaying.CommandPrevious, 0)
	assert.Equal(t, "a", p.CurrentTrackID())
}

func TestPlayer_DisabledTracksAreSkipped(t *testing.T) {
	p, _ := newTestPlayer(t, Options{
		IsDisabled: func(id string) bool { return id == "b" },
	})
	p.Play([]string{"a", "b", "c"}, "")
	require.Equal(t, "a", p.CurrentTrackID())

	p.GoNext()
	assert.Equal(t, "c", p.CurrentTrackID())
}

func TestPlayer_TemporaryQueueViews(t *testing.T) {
	p, media := newTestPlayer(t, Options{})
	p.Play([]string{"a", "b"}, "")

	p.AddToTemporaryQueue("x")
	assert.Equal(t, []string{"x"}, p.TemporaryQueue())

	p.GoNext()
	assert.Equal(t, "x", p.CurrentTrackID())
	assert.Equal(t, sourceFor("x"), media.Src)
	assert.Empty(t, p.TemporaryQueue())
}

func TestPlayer_CloseReleasesMedia(t *testing.T) {
	media := audiotest.NewFakeMedia()
	p := New(Options{Media: media})
	p.Play([]string{"a"}, "")

	p.Close()
	assert.True(t, media.Closed)
	p.Close() // idempotent
}
