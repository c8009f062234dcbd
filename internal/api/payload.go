package api

import (
	"time"

	"github.com/maple-pod/maplepod/internal/app/download"
	"github.com/maple-pod/maplepod/internal/app/player"
	"github.com/maple-pod/maplepod/internal/domain/playlist"
	"github.com/maple-pod/maplepod/internal/domain/preference"
	"github.com/maple-pod/maplepod/internal/domain/track"
)

type errorPayload struct {
	Error string `json:"error"`
}

type okPayload struct {
	OK bool `json:"ok"`
}

type statusPayload struct {
	TrackID       string  `json:"trackId"`
	Paused        bool    `json:"paused"`
	PositionMs    int64   `json:"positionMs"`
	DurationMs    int64   `json:"durationMs"`
	Volume        float64 `json:"volume"`
	Muted         bool    `json:"muted"`
	Loop          bool    `json:"loop"`
	Shuffle       bool    `json:"shuffle"`
	Repeat        string  `json:"repeat"`
	HasReachedEnd bool    `json:"hasReachedEnd"`
}

func newStatusPayload(p *player.Player) statusPayload {
	status := p.Status()
	return statusPayload{
		TrackID:       p.CurrentTrackID(),
		Paused:        status.Paused,
		PositionMs:    status.Position.Milliseconds(),
		DurationMs:    status.Duration.Milliseconds(),
		Volume:        status.Volume,
		Muted:         status.Muted,
		Loop:          status.Loop,
		Shuffle:       p.ShuffleEnabled(),
		Repeat:        string(p.Repeat()),
		HasReachedEnd: p.HasReachedEnd(),
	}
}

type queuePayload struct {
	Current   string   `json:"current"`
	Upcoming  []string `json:"upcoming"`
	Temporary []string `json:"temporary"`
}

func newQueuePayload(p *player.Player) queuePayload {
	return queuePayload{
		Current:   p.CurrentTrackID(),
		Upcoming:  p.UpcomingQueue(),
		Temporary: p.TemporaryQueue(),
	}
}

type trackPayload struct {
	Src         string  `json:"src"`
	Title       string  `json:"title"`
	Cover       string  `json:"cover,omitempty"`
	DurationSec float64 `json:"duration"`
	Artist      string  `json:"artist,omitempty"`
	Mark        string  `json:"mark,omitempty"`
	Year        string  `json:"year,omitempty"`
	Liked       bool    `json:"liked"`
	Cached      bool    `json:"cached"`
}

func newTrackPayload(t track.Track, liked, cached bool) trackPayload {
	return trackPayload{
		Src:         t.Src,
		Title:       t.Title,
		Cover:       t.Cover,
		DurationSec: t.Duration.Seconds(),
		Artist:      t.Artist,
		Mark:        t.Mark,
		Year:        t.Year,
		Liked:       liked,
		Cached:      cached,
	}
}

type playlistPayload struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	List  []string `json:"list"`
}

func newPlaylistPayload(p playlist.Playlist) playlistPayload {
	return playlistPayload{ID: p.ID, Title: p.Title, List: p.List}
}

type preferencesPayload struct {
	Volume  float64 `json:"volume"`
	Muted   bool    `json:"muted"`
	Shuffle bool    `json:"shuffle"`
	Repeat  string  `json:"repeat"`
	Theme   string  `json:"theme,omitempty"`
}

func newPreferencesPayload(prefs preference.Preferences) preferencesPayload {
	return preferencesPayload{
		Volume:  prefs.Volume,
		Muted:   prefs.Muted,
		Shuffle: prefs.Shuffle,
		Repeat:  string(prefs.Repeat),
		Theme:   prefs.Theme,
	}
}

type downloadPayload struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

func newDownloadPayload(j download.Job) downloadPayload {
	return downloadPayload{ID: j.ID, State: j.State.String(), Error: j.Err}
}

type playRequest struct {
	IDs        []string `json:"ids"`
	PlaylistID string   `json:"playlistId"`
	StartID    string   `json:"startId"`
}

type seekRequest struct {
	PositionMs int64 `json:"positionMs"`
}

func (r seekRequest) position() time.Duration {
	return time.Duration(r.PositionMs) * time.Millisecond
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

type repeatRequest struct {
	Mode string `json:"mode"`
}

type idRequest struct {
	ID string `json:"id"`
}

type titleRequest struct {
	Title string `json:"title"`
}

type shareRequest struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type sharePayload struct {
	Hash     string `json:"hash"`
	RecordID string `json:"recordId,omitempty"`
}

type wsNotification struct {
	Event       string              `json:"event"`
	Status      *statusPayload      `json:"status,omitempty"`
	Queue       *queuePayload       `json:"queue,omitempty"`
	Preferences *preferencesPayload `json:"preferences,omitempty"`
	Download    *downloadPayload    `json:"download,omitempty"`
}

func notificationFor(p *player.Player, e player.Event) wsNotification {
	n := wsNotification{Event: e.Type.String()}

	switch e.Type {
	case player.EventTrackChanged, player.EventStateChanged:
		status := statusFromEvent(p, e)
		n.Status = &status
	case player.EventQueueChanged:
		queue := newQueuePayload(p)
		n.Queue = &queue
	case player.EventPreferencesChanged:
		prefs := newPreferencesPayload(e.Preferences)
		n.Preferences = &prefs
	}
	return n
}

func statusFromEvent(p *player.Player, e player.Event) statusPayload {
	return statusPayload{
		TrackID:       e.TrackID,
		Paused:        e.Status.Paused,
		PositionMs:    e.Status.Position.Milliseconds(),
		DurationMs:    e.Status.Duration.Milliseconds(),
		Volume:        e.Status.Volume,
		Muted:         e.Status.Muted,
		Loop:          e.Status.Loop,
		Shuffle:       e.Preferences.Shuffle,
		Repeat:        string(e.Preferences.Repeat),
		HasReachedEnd: p.HasReachedEnd(),
	}
}
