// Package playlist provides the Playlist domain entity.
package playlist

import (
	"strings"

	"github.com/google/uuid"
)

// Well-known playlist ids. The "all" playlist is always derived from the
// catalog and never persisted; "liked" is a persisted singleton; user-created
// playlists use a namespaced "custom:" id.
const (
	AllID          = "all"
	LikedID        = "liked"
	CustomIDPrefix = "custom:"
)

// MaxTitleLength is the longest accepted playlist title.
const MaxTitleLength = 50

// Playlist represents an ordered list of track ids. Duplicates are allowed
// and order is significant.
type Playlist struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	List  []string `json:"list"`
}

// NewCustomID mints a fresh namespaced id for a user-created playlist.
func NewCustomID() string {
	return CustomIDPrefix + uuid.NewString()
}

// IsCustomID reports whether the id belongs to a user-created playlist.
func IsCustomID(id string) bool {
	return strings.HasPrefix(id, CustomIDPrefix)
}

// IsSaveableID reports whether a playlist with this id may be persisted.
func IsSaveableID(id string) bool {
	return id == LikedID || IsCustomID(id)
}

// ValidateTitle returns a non-empty message when the title is unusable.
func ValidateTitle(title string) string {
	value := strings.TrimSpace(title)
	switch {
	case len(value) == 0:
		return "playlist title is required"
	case len(value) > MaxTitleLength:
		return "playlist title must be 50 characters or less"
	default:
		return ""
	}
}

// NewLiked creates the empty singleton liked playlist.
func NewLiked() Playlist {
	return Playlist{ID: LikedID, Title: "Liked", List: []string{}}
}

// NewCustom creates a user playlist with a fresh custom id.
func NewCustom(title string) Playlist {
	return Playlist{ID: NewCustomID(), Title: title, List: []string{}}
}

// NewAll builds the derived all-tracks playlist from catalog order.
func NewAll(trackIDs []string) Playlist {
	list := make([]string, len(trackIDs))
	copy(list, trackIDs)
	return Playlist{ID: AllID, Title: "All", List: list}
}

// IndexOf returns the position of the track id, or -1 when absent.
func (p *Playlist) IndexOf(trackID string) int {
	for i, id := range p.List {
		if id == trackID {
			return i
		}
	}
	return -1
}

// Contains reports whether the track id is in the playlist.
func (p *Playlist) Contains(trackID string) bool {
	return p.IndexOf(trackID) != -1
}

// Toggle adds the track id when absent and removes its first occurrence when
// present. The derived all-playlist is never modified.
func (p *Playlist) Toggle(trackID string) {
	if p.ID == AllID {
		return
	}

	if i := p.IndexOf(trackID); i != -1 {
		p.List = append(p.List[:i], p.List[i+1:]...)
		return
	}
	p.List = append(p.List, trackID)
}
