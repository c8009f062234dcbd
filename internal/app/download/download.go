// Package download manages background audio downloads into the offline
// cache, bounding concurrency and supporting per-track cancellation.
package download

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/maple-pod/maplepod/internal/infra/cache"
)

// State is a download job's lifecycle stage.
type State int

const (
	StatePending State = iota
	StateDownloading
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDownloading:
		return "downloading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Job is a snapshot of one download.
type Job struct {
	ID    string
	State State
	Err   string
}

// Fetcher retrieves the raw audio bytes for a track id.
type Fetcher func(ctx context.Context, id string) ([]byte, error)

type job struct {
	id     string
	state  State
	err    string
	cancel context.CancelFunc
}

// Manager runs downloads with bounded concurrency. A blob only enters the
// cache after a fetch completes in full, so cancellation and failures never
// leave partial entries behind.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	onChange func(Job)

	cache *cache.Cache
	fetch Fetcher
	sem   *semaphore.Weighted
	wg    sync.WaitGroup

	ctx      context.Context
	shutdown context.CancelFunc
}

// New creates a download manager writing into the given cache.
func New(c *cache.Cache, fetch Fetcher, concurrency int) *Manager {
	if concurrency <= 0 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		jobs:     make(map[string]*job),
		cache:    c,
		fetch:    fetch,
		sem:      semaphore.NewWeighted(int64(concurrency)),
		ctx:      ctx,
		shutdown: cancel,
	}
}

// OnChange registers a callback invoked on every job state transition.
func (m *Manager) OnChange(fn func(Job)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Enqueue starts a download for the track id. Returns false when the id is
// already queued, already running, or already cached.
func (m *Manager) Enqueue(id string) bool {
	if m.cache.Has(id) {
		return false
	}

	m.mu.Lock()
	if j, ok := m.jobs[id]; ok && (j.state == StatePending || j.state == StateDownloading) {
		m.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(m.ctx)
	j := &job{id: id, state: StatePending, cancel: cancel}
	m.jobs[id] = j
	m.mu.Unlock()

	m.notify(j.snapshot())

	m.wg.Add(1)
	go m.run(ctx, j)
	return true
}

// Cancel aborts a pending or running download.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || (j.state != StatePending && j.state != StateDownloading) {
		m.mu.Unlock()
		return false
	}
	cancel := j.cancel
	m.mu.Unlock()

	cancel()
	return true
}

// CancelAll aborts every pending and running download.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j.state == StatePending || j.state == StateDownloading {
			cancels = append(cancels, j.cancel)
		}
	}
	m.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Jobs returns a snapshot of every known job.
func (m *Manager) Jobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// State returns the job state for a track id.
func (m *Manager) State(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.snapshot(), true
}

// Close cancels all downloads and waits for workers to exit.
func (m *Manager) Close() {
	m.shutdown()
	m.wg.Wait()
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer j.cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finish(j, StateCancelled, "")
		return
	}
	defer m.sem.Release(1)

	m.transition(j, StateDownloading)

	blob, err := m.fetch(ctx, j.id)
	switch {
	case ctx.Err() != nil:
		m.finish(j, StateCancelled, "")
	case err != nil:
		zlog.Warn().Err(err).Str("id", j.id).Msg("download: fetch failed")
		m.finish(j, StateFailed, err.Error())
	default:
		if err := m.cache.Put(j.id, blob); err != nil {
			zlog.Error().Err(err).Str("id", j.id).Msg("download: cache write failed")
			m.finish(j, StateFailed, err.Error())
			return
		}
		m.finish(j, StateDone, "")
	}
}

func (m *Manager) transition(j *job, state State) {
	m.mu.Lock()
	j.state = state
	snap := j.snapshot()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Manager) finish(j *job, state State, errMsg string) {
	m.mu.Lock()
	j.state = state
	j.err = errMsg
	snap := j.snapshot()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Manager) notify(snap Job) {
	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

func (j *job) snapshot() Job {
	return Job{ID: j.id, State: j.state, Err: j.err}
}
