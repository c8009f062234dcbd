package library

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maple-pod/maplepod/internal/infra/cache"
)

const catalogJSON = `[
	{"src": "bgm/Ellinia.mp3", "title": "Ellinia", "cover": "covers/ellinia.png", "duration": 92.5, "artist": "Studio EIM"},
	{"src": "bgm/Henesys.mp3", "title": "Henesys", "duration": 120},
	{"src": "", "title": "broken entry"}
]`

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/data.json":
			w.Write([]byte(catalogJSON))
		case "/audio/bgm/Ellinia.mp3":
			w.Write([]byte("ellinia-bytes"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	opts.DataURL = srv.URL + "/data/data.json"
	opts.AudioBaseURL = srv.URL + "/audio/"
	if opts.AudioDir == "" {
		opts.AudioDir = t.TempDir()
	}
	s := New(opts)
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func TestRefresh_LoadsCatalog(t *testing.T) {
	s := newTestService(t, Options{})

	lib := s.Tracks()
	assert.Equal(t, 2, lib.Len(), "entries without a src are skipped")

	tr, ok := s.Lookup("bgm/Ellinia.mp3")
	require.True(t, ok)
	assert.Equal(t, "Ellinia", tr.Title)
	assert.Equal(t, "Studio EIM", tr.Artist)
	assert.Equal(t, 92500*time.Millisecond, tr.Duration)
}

func TestRefresh_BadCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	s := New(Options{DataURL: srv.URL, AudioBaseURL: srv.URL})
	assert.Error(t, s.Refresh(context.Background()))
	assert.Equal(t, 0, s.Tracks().Len(), "failed refresh keeps the old catalog")
}

func TestResolve_RemoteWhenNotCached(t *testing.T) {
	s := newTestService(t, Options{})

	src, err := s.Resolve(context.Background(), "bgm/Ellinia.mp3")
	require.NoError(t, err)
	assert.Contains(t, src, "/audio/bgm/Ellinia.mp3")
}

func TestResolve_PrefersCachedBlob(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put("bgm/Ellinia.mp3", []byte("cached-bytes")))

	audioDir := t.TempDir()
	s := newTestService(t, Options{Cache: c, AudioDir: audioDir})

	src, err := s.Resolve(context.Background(), "bgm/Ellinia.mp3")
	require.NoError(t, err)

	blob, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, []byte("cached-bytes"), blob)
}

func TestResolve_OfflineOnly(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put("bgm/Ellinia.mp3", []byte("cached-bytes")))

	s := newTestService(t, Options{Cache: c, OfflineOnly: true})

	_, err = s.Resolve(context.Background(), "bgm/Ellinia.mp3")
	assert.NoError(t, err, "cached tracks resolve offline")

	_, err = s.Resolve(context.Background(), "bgm/Henesys.mp3")
	assert.Error(t, err, "uncached tracks do not")
}

func TestIsDisabled(t *testing.T) {
	c, err := cache.Open(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Put("bgm/Ellinia.mp3", []byte("x")))

	s := newTestService(t, Options{Cache: c})

	assert.False(t, s.IsDisabled("bgm/Henesys.mp3"))
	assert.True(t, s.IsDisabled("bgm/Nowhere.mp3"), "unknown ids are disabled")

	s.SetOfflineOnly(true)
	assert.False(t, s.IsDisabled("bgm/Ellinia.mp3"))
	assert.True(t, s.IsDisabled("bgm/Henesys.mp3"), "offline mode disables uncached tracks")
}

func TestFetchAudio(t *testing.T) {
	s := newTestService(t, Options{})

	blob, err := s.FetchAudio(context.Background(), "bgm/Ellinia.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("ellinia-bytes"), blob)

	_, err = s.FetchAudio(context.Background(), "bgm/Missing.mp3")
	assert.Error(t, err)
}
