// Package track provides the Track domain entity.
package track

import "time"

// Track represents a single BGM track from the music catalog.
// Contains only information shipped in the catalog file.
type Track struct {
	Src         string        `json:"src"`      // Track id: relative audio path, stable across sessions
	Title       string        `json:"title"`    // Display title
	Cover       string        `json:"cover"`    // Cover image URL
	Duration    time.Duration `json:"duration"` // Track duration
	Description string        `json:"description,omitempty"`
	Filename    string        `json:"filename,omitempty"`
	Mark        string        `json:"mark,omitempty"` // Map mark icon name
	Artist      string        `json:"artist,omitempty"`
	AlbumArtist string        `json:"albumArtist,omitempty"`
	Year        string        `json:"year,omitempty"`
	Structure   string        `json:"structure,omitempty"` // Source archive layout the audio was dumped from
	YouTube     string        `json:"youtube,omitempty"`   // Reference video URL
}

// ID returns the stable track identifier.
func (t *Track) ID() string {
	return t.Src
}

// Library is an in-memory lookup table of catalog tracks, keyed by id.
// Iteration order of IDs follows the catalog order.
type Library struct {
	order []string
	byID  map[string]Track
}

// NewLibrary builds a Library from catalog order. A duplicate id keeps the
// first occurrence's metadata and appears in the id list once.
func NewLibrary(tracks []Track) *Library {
	lib := &Library{
		order: make([]string, 0, len(tracks)),
		byID:  make(map[string]Track, len(tracks)),
	}
	for _, t := range tracks {
		if _, ok := lib.byID[t.Src]; ok {
			continue
		}
		lib.order = append(lib.order, t.Src)
		lib.byID[t.Src] = t
	}
	return lib
}

// Get returns the track for the given id.
func (l *Library) Get(id string) (Track, bool) {
	t, ok := l.byID[id]
	return t, ok
}

// Has reports whether the id exists in the catalog.
func (l *Library) Has(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// IDs returns all track ids in catalog order.
func (l *Library) IDs() []string {
	ids := make([]string, len(l.order))
	copy(ids, l.order)
	return ids
}

// Len returns the number of tracks in the library.
func (l *Library) Len() int {
	return len(l.order)
}
