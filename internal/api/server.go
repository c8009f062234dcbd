// Package api exposes the player over HTTP: a JSON REST surface for remote
// control plus a websocket pushing player and download notifications.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/maple-pod/maplepod/internal/app/download"
	"github.com/maple-pod/maplepod/internal/app/player"
	"github.com/maple-pod/maplepod/internal/domain/playlist"
	"github.com/maple-pod/maplepod/internal/domain/preference"
	"github.com/maple-pod/maplepod/internal/infra/cache"
	"github.com/maple-pod/maplepod/internal/infra/library"
	"github.com/maple-pod/maplepod/internal/infra/record"
	"github.com/maple-pod/maplepod/internal/infra/sharelink"
	"github.com/maple-pod/maplepod/internal/infra/store"
)

const requestTimeout = 30 * time.Second

// Options holds the server's collaborators.
type Options struct {
	Addr           string
	AllowedOrigins []string

	Player    *player.Player
	Store     *store.Store
	Library   *library.Service
	Cache     *cache.Cache
	Downloads *download.Manager
	Record    *record.Client
}

// Server is the remote-control HTTP server.
type Server struct {
	opts Options
	ws   *melody.Melody
}

// New creates the server and wires notification broadcasting.
func New(opts Options) *Server {
	ws := melody.New()
	ws.Upgrader.CheckOrigin = func(*http.Request) bool { return true }

	s := &Server{opts: opts, ws: ws}

	if opts.Downloads != nil {
		opts.Downloads.OnChange(func(j download.Job) {
			s.broadcast(wsNotification{
				Event:    "download_changed",
				Download: &downloadPayload{ID: j.ID, State: j.State.String(), Error: j.Err},
			})
		})
	}
	return s
}

// Run serves until the context is cancelled. Events from the player are
// pumped to websocket clients for the lifetime of the call.
func (s *Server) Run(ctx context.Context) error {
	go s.pumpPlayerEvents(ctx)

	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           h2c.NewHandler(s.router(), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Info().Str("addr", s.opts.Addr).Msg("api: server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.ws.Close()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(middleware.Timeout(requestTimeout))

	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/ws", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ws.HandleRequest(w, r); err != nil {
			zlog.Error().Err(err).Msg("api: websocket upgrade failed")
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/play", s.handlePlay)
		r.Post("/toggle", s.handleToggle)
		r.Post("/pause", s.handlePause)
		r.Post("/resume", s.handleResume)
		r.Post("/next", s.handleNext)
		r.Post("/previous", s.handlePrevious)
		r.Post("/seek", s.handleSeek)
		r.Post("/volume", s.handleVolume)
		r.Post("/mute", s.handleMute)
		r.Post("/shuffle", s.handleShuffle)
		r.Post("/repeat", s.handleRepeat)

		r.Get("/queue", s.handleQueue)
		r.Post("/queue/temporary", s.handleQueueAdd)
		r.Delete("/queue/temporary", s.handleQueueClear)
		r.Delete("/queue/temporary/{index}", s.handleQueueRemove)
		r.Post("/queue/temporary/{index}/play", s.handleQueuePlayTemporary)
		r.Post("/queue/upcoming/play", s.handleQueuePlayUpcoming)

		r.Get("/tracks", s.handleTracks)
		r.Get("/track", s.handleTrack)

		r.Get("/playlists", s.handlePlaylists)
		r.Post("/playlists", s.handlePlaylistCreate)
		r.Delete("/playlists/{id}", s.handlePlaylistDelete)
		r.Post("/playlists/{id}/toggle", s.handlePlaylistToggle)
		r.Post("/likes/toggle", s.handleLikeToggle)

		r.Get("/userdata", s.handleUserDataExport)
		r.Post("/userdata", s.handleUserDataImport)

		r.Post("/share", s.handleShareCreate)
		r.Get("/share/resolve", s.handleShareResolve)

		r.Get("/downloads", s.handleDownloads)
		r.Post("/downloads", s.handleDownloadStart)
		r.Delete("/downloads", s.handleDownloadCancelAll)
		r.Delete("/downloads/{id}", s.handleDownloadCancel)
	})

	return r
}

func (s *Server) pumpPlayerEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-s.opts.Player.Events():
			if !ok {
				return
			}
			s.broadcast(notificationFor(s.opts.Player, e))
		}
	}
}

func (s *Server) broadcast(n wsNotification) {
	data, err := json.Marshal(n)
	if err != nil {
		zlog.Error().Err(err).Msg("api: failed to encode notification")
		return
	}
	if err := s.ws.Broadcast(data); err != nil {
		zlog.Error().Err(err).Msg("api: failed to broadcast notification")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Error().Err(err).Msg("api: failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ids := req.IDs
	if req.PlaylistID != "" {
		list, ok := s.resolvePlaylist(req.PlaylistID)
		if !ok {
			writeError(w, http.StatusNotFound, "playlist not found")
			return
		}
		ids = list
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "nothing to play")
		return
	}

	s.opts.Player.Play(ids, req.StartID)
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

// resolvePlaylist expands a playlist id to its track list. The "all" pseudo
// playlist is the whole catalog in order.
func (s *Server) resolvePlaylist(id string) ([]string, bool) {
	if id == playlist.AllID {
		return s.opts.Library.Tracks().IDs(), true
	}
	p, ok := s.opts.Store.GetPlaylist(id)
	if !ok {
		return nil, false
	}
	return p.List, true
}

func (s *Server) handleToggle(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.TogglePlay()
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handlePause(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.SetPlaying(false)
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.SetPlaying(true)
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.GoNext()
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handlePrevious(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.GoPrevious()
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.opts.Player.Seek(req.position())
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.opts.Player.SetVolume(req.Volume)
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleMute(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.ToggleMute()
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleShuffle(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.ToggleShuffle()
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleRepeat(w http.ResponseWriter, r *http.Request) {
	var req repeatRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Mode == "" {
		s.opts.Player.CycleRepeat()
	} else {
		mode := preference.RepeatMode(req.Mode)
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, "unknown repeat mode")
			return
		}
		s.opts.Player.SetRepeat(mode)
	}
	writeJSON(w, http.StatusOK, newStatusPayload(s.opts.Player))
}

func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func (s *Server) handleQueueAdd(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.opts.Library.Tracks().Has(req.ID) {
		writeError(w, http.StatusNotFound, "unknown track")
		return
	}
	s.opts.Player.AddToTemporaryQueue(req.ID)
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func (s *Server) handleQueueClear(w http.ResponseWriter, _ *http.Request) {
	s.opts.Player.ClearTemporaryQueue()
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func parseIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "invalid index")
		return 0, false
	}
	return index, true
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	s.opts.Player.RemoveFromTemporaryQueue(index)
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func (s *Server) handleQueuePlayTemporary(w http.ResponseWriter, r *http.Request) {
	index, ok := parseIndex(w, r)
	if !ok {
		return
	}
	s.opts.Player.PlayTemporaryQueueItem(index)
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func (s *Server) handleQueuePlayUpcoming(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.opts.Player.PlayUpcomingQueueItem(req.ID)
	writeJSON(w, http.StatusOK, newQueuePayload(s.opts.Player))
}

func (s *Server) handleTracks(w http.ResponseWriter, _ *http.Request) {
	lib := s.opts.Library.Tracks()
	out := make([]trackPayload, 0, lib.Len())
	for _, id := range lib.IDs() {
		t, _ := lib.Get(id)
		out = append(out, newTrackPayload(t, s.opts.Store.IsLiked(id), s.cached(id)))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	t, ok := s.opts.Library.Lookup(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown track")
		return
	}
	writeJSON(w, http.StatusOK, newTrackPayload(t, s.opts.Store.IsLiked(id), s.cached(id)))
}

func (s *Server) cached(id string) bool {
	return s.opts.Cache != nil && s.opts.Cache.Has(id)
}

func (s *Server) handlePlaylists(w http.ResponseWriter, _ *http.Request) {
	lists := s.opts.Store.Playlists()
	out := make([]playlistPayload, 0, len(lists))
	for _, p := range lists {
		out = append(out, newPlaylistPayload(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlaylistCreate(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := s.opts.Store.CreatePlaylist(req.Title)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, newPlaylistPayload(p))
}

func (s *Server) handlePlaylistDelete(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Store.DeletePlaylist(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "playlist not found or not deletable")
		return
	}
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}

func (s *Server) handlePlaylistToggle(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.opts.Store.ToggleInPlaylist(chi.URLParam(r, "id"), req.ID) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}

func (s *Server) handleLikeToggle(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.opts.Store.ToggleLike(req.ID)
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}

func (s *Server) handleUserDataExport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Store.Export())
}

func (s *Server) handleUserDataImport(w http.ResponseWriter, r *http.Request) {
	var data store.SavedUserData
	if !decodeBody(w, r, &data) {
		return
	}
	s.opts.Store.Import(data)
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}

// handleShareCreate encodes a share action into a hash fragment and, when
// the record service is available, also stores it under a short id.
func (s *Server) handleShareCreate(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "missing action type")
		return
	}

	hash, err := sharelink.EncodeAction(req.Type, req.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode share link")
		return
	}

	out := sharePayload{Hash: hash}
	if s.opts.Record != nil && s.opts.Record.Enabled() {
		out.RecordID = s.opts.Record.Create(r.Context(), hash)
	}
	writeJSON(w, http.StatusOK, out)
}

// handleShareResolve decodes a hash fragment, or first resolves a record id
// into one, and returns the contained action.
func (s *Server) handleShareResolve(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if recordID := r.URL.Query().Get("record"); recordID != "" {
		if s.opts.Record == nil || !s.opts.Record.Enabled() {
			writeError(w, http.StatusNotFound, "record service not configured")
			return
		}
		resolved, err := s.opts.Record.Resolve(r.Context(), recordID)
		if err != nil {
			writeError(w, http.StatusNotFound, "record not found")
			return
		}
		hash = resolved
	}

	actionType, data, ok := sharelink.DecodeAction(hash)
	if !ok {
		writeError(w, http.StatusBadRequest, "no share data")
		return
	}
	writeJSON(w, http.StatusOK, sharelink.Action{Type: actionType, Data: data})
}

func (s *Server) handleDownloads(w http.ResponseWriter, _ *http.Request) {
	jobs := s.opts.Downloads.Jobs()
	out := make([]downloadPayload, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, newDownloadPayload(j))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDownloadStart(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !s.opts.Library.Tracks().Has(req.ID) {
		writeError(w, http.StatusNotFound, "unknown track")
		return
	}
	started := s.opts.Downloads.Enqueue(req.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"started": started})
}

func (s *Server) handleDownloadCancel(w http.ResponseWriter, r *http.Request) {
	if !s.opts.Downloads.Cancel(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "no active download")
		return
	}
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}

func (s *Server) handleDownloadCancelAll(w http.ResponseWriter, _ *http.Request) {
	s.opts.Downloads.CancelAll()
	writeJSON(w, http.StatusOK, okPayload{OK: true})
}
