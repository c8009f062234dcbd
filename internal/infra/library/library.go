// Package library fetches the music catalog and resolves track ids to
// playable sources, preferring the offline cache over remote URLs.
package library

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/domain/track"
	"github.com/maple-pod/maplepod/internal/infra/cache"
)

// maxAudioSize caps a single audio download.
const maxAudioSize = 256 << 20

// catalogTrack is the catalog wire format. Durations come in seconds.
type catalogTrack struct {
	Src         string  `json:"src"`
	Title       string  `json:"title"`
	Cover       string  `json:"cover"`
	Duration    float64 `json:"duration"`
	Description string  `json:"description"`
	Filename    string  `json:"filename"`
	Mark        string  `json:"mark"`
	Artist      string  `json:"artist"`
	AlbumArtist string  `json:"albumArtist"`
	Year        string  `json:"year"`
	Structure   string  `json:"structure"`
	YouTube     string  `json:"youtube"`
}

// Options configures the library service.
type Options struct {
	DataURL      string
	AudioBaseURL string
	FetchTimeout time.Duration
	OfflineOnly  bool
	Cache        *cache.Cache
	// AudioDir is where cached blobs are materialized as files for playback.
	AudioDir string
}

// Service holds the loaded catalog and resolves track sources.
type Service struct {
	mu          sync.RWMutex
	lib         *track.Library
	offlineOnly bool

	dataURL      string
	audioBaseURL string
	audioDir     string
	cache        *cache.Cache
	httpClient   *http.Client
}

// New creates a library service with an empty catalog. Call Refresh to load.
func New(opts Options) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	return &Service{
		lib:          track.NewLibrary(nil),
		offlineOnly:  opts.OfflineOnly,
		dataURL:      opts.DataURL,
		audioBaseURL: strings.TrimSuffix(opts.AudioBaseURL, "/"),
		audioDir:     opts.AudioDir,
		cache:        opts.Cache,
		httpClient:   &http.Client{Timeout: opts.FetchTimeout},
	}
}

// Refresh fetches the catalog and replaces the in-memory library.
func (s *Service) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.dataURL, nil)
	if err != nil {
		return errors.Wrap(err, "failed to build catalog request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "failed to fetch catalog")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("catalog fetch returned status %d", resp.StatusCode)
	}

	var entries []catalogTrack
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return errors.Wrap(err, "failed to decode catalog")
	}

	tracks := make([]track.Track, 0, len(entries))
	for _, e := range entries {
		if e.Src == "" {
			continue
		}
		tracks = append(tracks, track.Track{
			Src:         e.Src,
			Title:       e.Title,
			Cover:       e.Cover,
			Duration:    time.Duration(e.Duration * float64(time.Second)),
			Description: e.Description,
			Filename:    e.Filename,
			Mark:        e.Mark,
			Artist:      e.Artist,
			AlbumArtist: e.AlbumArtist,
			Year:        e.Year,
			Structure:   e.Structure,
			YouTube:     e.YouTube,
		})
	}

	s.mu.Lock()
	s.lib = track.NewLibrary(tracks)
	s.mu.Unlock()

	zlog.Info().Int("tracks", len(tracks)).Msg("library: catalog loaded")
	return nil
}

// Tracks returns the loaded catalog.
func (s *Service) Tracks() *track.Library {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lib
}

// Lookup returns catalog metadata for a track id.
func (s *Service) Lookup(id string) (track.Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lib.Get(id)
}

// RemoteURL returns the remote audio URL for a track id.
func (s *Service) RemoteURL(id string) string {
	parts := strings.Split(id, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return s.audioBaseURL + "/" + strings.Join(parts, "/")
}

// OfflineOnly reports whether playback is restricted to cached tracks.
func (s *Service) OfflineOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offlineOnly
}

// SetOfflineOnly toggles the cached-tracks-only restriction.
func (s *Service) SetOfflineOnly(on bool) {
	s.mu.Lock()
	s.offlineOnly = on
	s.mu.Unlock()
}

// IsDisabled reports whether a track cannot currently be played. Unknown
// ids are disabled; in offline-only mode so is anything not cached.
func (s *Service) IsDisabled(id string) bool {
	s.mu.RLock()
	known := s.lib.Has(id)
	offline := s.offlineOnly
	s.mu.RUnlock()

	if !known {
		return true
	}
	if offline && (s.cache == nil || !s.cache.Has(id)) {
		return true
	}
	return false
}

// Resolve maps a track id to a playable source: a local file when the blob
// is cached, otherwise the remote URL.
func (s *Service) Resolve(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if s.cache != nil {
		if blob, ok := s.cache.Get(id); ok {
			path, err := s.materialize(id, blob)
			if err == nil {
				return path, nil
			}
			zlog.Warn().Err(err).Str("id", id).Msg("library: cached blob unusable, trying remote")
		}
	}

	if s.OfflineOnly() {
		return "", errors.Newf("track %s is not available offline", id)
	}
	return s.RemoteURL(id), nil
}

// FetchAudio downloads the raw audio bytes for a track id.
func (s *Service) FetchAudio(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.RemoteURL(id), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build audio request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch audio")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("audio fetch returned status %d", resp.StatusCode)
	}

	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audio body")
	}
	return blob, nil
}

// materialize writes a cached blob to a stable file path under the audio
// dir so the decoder can seek it. Existing files are reused.
func (s *Service) materialize(id string, blob []byte) (string, error) {
	rel := filepath.FromSlash(filepath.Clean("/" + id))
	path := filepath.Join(s.audioDir, rel)

	if info, err := os.Stat(path); err == nil && info.Size() == int64(len(blob)) {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errors.Wrap(err, "failed to create audio directory")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return "", errors.Wrap(err, "failed to write audio file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrap(err, "failed to replace audio file")
	}
	return path, nil
}
