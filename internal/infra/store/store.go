// Package store persists saved user data: player preferences, the liked
// playlist and user-created playlists.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/maple-pod/maplepod/internal/domain/playlist"
	"github.com/maple-pod/maplepod/internal/domain/preference"
)

const fileName = "maple-pod.json"

// SavedUserData is the on-disk record.
type SavedUserData struct {
	Preferences preference.Preferences `json:"preferences"`
	Liked       playlist.Playlist      `json:"liked"`
	Playlists   []playlist.Playlist    `json:"playlists"`
}

// Store is a file-backed saved-user-data store. Loading never fails:
// corrupt or missing data degrades to defaults, per-entry where possible.
type Store struct {
	mu   sync.RWMutex
	path string
	data SavedUserData
}

// Open loads the saved user data from dir, creating defaults when the file
// is missing or unreadable.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	s := &Store{path: filepath.Join(dir, fileName)}
	s.data = loadOrDefault(s.path)
	return s, nil
}

func defaultData() SavedUserData {
	return SavedUserData{
		Preferences: preference.Default(),
		Liked:       playlist.NewLiked(),
		Playlists:   []playlist.Playlist{},
	}
}

func loadOrDefault(path string) SavedUserData {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			zlog.Warn().Err(err).Msg("store: unreadable saved user data, starting fresh")
		}
		return defaultData()
	}

	var data SavedUserData
	if err := json.Unmarshal(raw, &data); err != nil {
		zlog.Warn().Err(err).Msg("store: corrupt saved user data, starting fresh")
		return defaultData()
	}

	sanitize(&data)
	return data
}

// sanitize coerces invalid fields to defaults and drops corrupt playlist
// entries instead of failing the whole load.
func sanitize(data *SavedUserData) {
	data.Preferences.Normalize()

	if data.Liked.ID != playlist.LikedID {
		data.Liked = playlist.NewLiked()
	}
	data.Liked.Title = "Liked"
	if data.Liked.List == nil {
		data.Liked.List = []string{}
	}

	kept := make([]playlist.Playlist, 0, len(data.Playlists))
	for _, p := range data.Playlists {
		if !playlist.IsCustomID(p.ID) || playlist.ValidateTitle(p.Title) != "" {
			zlog.Warn().Str("id", p.ID).Msg("store: dropping invalid saved playlist")
			continue
		}
		if p.List == nil {
			p.List = []string{}
		}
		kept = append(kept, p)
	}
	data.Playlists = kept
}

// save writes the record atomically. Must be called with the lock held.
func (s *Store) saveLocked() {
	raw, err := json.MarshalIndent(&s.data, "", "\t")
	if err != nil {
		zlog.Error().Err(err).Msg("store: failed to encode saved user data")
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0644); err != nil {
		zlog.Error().Err(err).Msg("store: failed to write saved user data")
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		zlog.Error().Err(err).Msg("store: failed to replace saved user data")
	}
}

// Preferences returns the persisted preference record.
func (s *Store) Preferences() preference.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Preferences
}

// SetPreferences replaces and persists the preference record.
func (s *Store) SetPreferences(prefs preference.Preferences) {
	prefs.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Preferences = prefs
	s.saveLocked()
}

// Playlists returns the persisted playlists: liked first, then customs.
func (s *Store) Playlists() []playlist.Playlist {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]playlist.Playlist, 0, len(s.data.Playlists)+1)
	out = append(out, clonePlaylist(s.data.Liked))
	for _, p := range s.data.Playlists {
		out = append(out, clonePlaylist(p))
	}
	return out
}

// GetPlaylist returns a persisted playlist by id.
func (s *Store) GetPlaylist(id string) (playlist.Playlist, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id == playlist.LikedID {
		return clonePlaylist(s.data.Liked), true
	}
	for _, p := range s.data.Playlists {
		if p.ID == id {
			return clonePlaylist(p), true
		}
	}
	return playlist.Playlist{}, false
}

// CreatePlaylist mints and persists a new custom playlist.
func (s *Store) CreatePlaylist(title string) (playlist.Playlist, error) {
	if msg := playlist.ValidateTitle(title); msg != "" {
		return playlist.Playlist{}, errors.New(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := playlist.NewCustom(title)
	s.data.Playlists = append(s.data.Playlists, p)
	s.saveLocked()
	return clonePlaylist(p), nil
}

// DeletePlaylist removes a custom playlist. The liked singleton cannot be
// deleted.
func (s *Store) DeletePlaylist(id string) bool {
	if !playlist.IsCustomID(id) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.data.Playlists {
		if p.ID == id {
			s.data.Playlists = append(s.data.Playlists[:i], s.data.Playlists[i+1:]...)
			s.saveLocked()
			return true
		}
	}
	return false
}

// ToggleInPlaylist toggles a track's membership in a persisted playlist.
func (s *Store) ToggleInPlaylist(playlistID, trackID string) bool {
	if !playlist.IsSaveableID(playlistID) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if playlistID == playlist.LikedID {
		s.data.Liked.Toggle(trackID)
		s.saveLocked()
		return true
	}
	for i := range s.data.Playlists {
		if s.data.Playlists[i].ID == playlistID {
			s.data.Playlists[i].Toggle(trackID)
			s.saveLocked()
			return true
		}
	}
	return false
}

// IsLiked reports whether the track is in the liked playlist.
func (s *Store) IsLiked(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Liked.Contains(trackID)
}

// ToggleLike toggles the track in the liked playlist.
func (s *Store) ToggleLike(trackID string) {
	s.ToggleInPlaylist(playlist.LikedID, trackID)
}

// Export returns the full saved-user-data record.
func (s *Store) Export() SavedUserData {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := SavedUserData{
		Preferences: s.data.Preferences,
		Liked:       clonePlaylist(s.data.Liked),
		Playlists:   make([]playlist.Playlist, 0, len(s.data.Playlists)),
	}
	for _, p := range s.data.Playlists {
		out.Playlists = append(out.Playlists, clonePlaylist(p))
	}
	return out
}

// Import replaces the whole record. Invalid playlists are dropped and
// invalid preferences coerced, matching load behavior.
func (s *Store) Import(data SavedUserData) {
	sanitize(&data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.saveLocked()
}

func clonePlaylist(p playlist.Playlist) playlist.Playlist {
	list := make([]string, len(p.List))
	copy(list, p.List)
	p.List = list
	return p
}
