// Package queue provides the playback queue engine: deterministic
// next/previous track selection with shuffle, temporary insertions and
// disabled-track skipping.
package queue

import (
	"math/rand"
	"sync"
	"time"
)

// Options holds queue engine configuration.
type Options struct {
	IsDisabled func(id string) bool // Nil means no track is ever disabled
	Shuffle    bool                 // Initial shuffle state
	Rand       *rand.Rand           // Shuffle source; nil seeds from time
}

// Queue manages playback order over an ordered track-id universe.
//
// At all times played ++ [current] ++ upcoming is a permutation of the list
// the queue was initialized from; temporary entries sit outside that
// accounting and may repeat or reference ids from other playlists.
//
// All operations are total: invalid input produces no state change rather
// than an error.
type Queue struct {
	mu sync.RWMutex

	source    []string // Immutable init list, kept to regenerate shuffle order
	played    []string // Already played, oldest first
	upcoming  []string // Not yet played, in play order
	temporary []string // User-injected "play next" entries, drained first

	current     string
	currentTemp bool // Current came from the temporary queue
	shuffle     bool

	isDisabled func(id string) bool
	rng        *rand.Rand
}

// New creates a queue engine. The queue is empty until Init is called.
func New(opts Options) *Queue {
	isDisabled := opts.IsDisabled
	if isDisabled == nil {
		isDisabled = func(string) bool { return false }
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Queue{
		shuffle:    opts.Shuffle,
		isDisabled: isDisabled,
		rng:        rng,
	}
}

// Init replaces all queue state from the given id list.
//
// With an empty startID a track is auto-selected: the first playable id of
// the list (shuffled first when shuffle is on). With an explicit startID it
// becomes current regardless of its disabled state; under shuffle the
// remainder of the list is shuffled into upcoming, otherwise played and
// upcoming are split around its position.
//
// No-op when the list is empty, when startID is absent from the list, or
// when no startID is given and every id is disabled. The temporary queue is
// always reset on a successful Init.
func (q *Queue) Init(ids []string, startID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	if startID != "" && indexOf(ids, startID) < 0 {
		return
	}

	if startID != "" && q.shuffle {
		// Remove one occurrence of the start id, then shuffle the rest so it
		// cannot reappear later in the future queue.
		rest := make([]string, 0, len(ids)-1)
		removed := false
		for _, id := range ids {
			if !removed && id == startID {
				removed = true
				continue
			}
			rest = append(rest, id)
		}
		q.rng.Shuffle(len(rest), func(i, j int) {
			rest[i], rest[j] = rest[j], rest[i]
		})

		q.source = copyList(ids)
		q.played = []string{}
		q.upcoming = rest
		q.setCurrentLocked(startID, false)
		q.temporary = nil
		return
	}

	list := copyList(ids)
	if startID == "" && q.shuffle {
		q.rng.Shuffle(len(list), func(i, j int) {
			list[i], list[j] = list[j], list[i]
		})
	}

	var index int
	if startID == "" {
		index = q.firstPlayableLocked(list)
		if index < 0 {
			return
		}
	} else {
		index = indexOf(list, startID)
	}

	q.source = copyList(ids)
	q.played = copyList(list[:index])
	q.upcoming = copyList(list[index+1:])
	q.setCurrentLocked(list[index], false)
	q.temporary = nil
}

// GoNext advances to the next track: the head of the temporary queue when
// one is waiting, otherwise the first playable upcoming id, wrapping into the
// played history when upcoming is exhausted. No-op when nothing is playable.
func (q *Queue) GoNext() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.temporary) > 0 {
		next := q.temporary[0]
		q.temporary = q.temporary[1:]
		q.pushCurrentLocked()
		q.setCurrentLocked(next, true)
		return
	}

	if q.current == "" {
		return
	}

	if i := q.firstPlayableLocked(q.upcoming); i >= 0 {
		next := q.upcoming[i]
		played := q.played
		if !q.currentTemp {
			played = append(played, q.current)
		}
		played = append(played, q.upcoming[:i]...)
		q.played = played
		q.upcoming = copyList(q.upcoming[i+1:])
		q.setCurrentLocked(next, false)
		return
	}

	// Wrap: restart candidates from the front of the history. Disabled ids
	// before the found one stay in the history prefix.
	if i := q.firstPlayableLocked(q.played); i >= 0 {
		next := q.played[i]
		upcoming := copyList(q.played[i+1:])
		if !q.currentTemp {
			upcoming = append(upcoming, q.current)
		}
		upcoming = append(upcoming, q.upcoming...)
		q.played = copyList(q.played[:i])
		q.upcoming = upcoming
		q.setCurrentLocked(next, false)
	}
}

// GoPrevious steps back to the most recent playable id in the history,
// wrapping into the tail of the upcoming queue when the history is
// exhausted. Temporary entries are never visited.
func (q *Queue) GoPrevious() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == "" {
		return
	}

	if i := q.lastPlayableLocked(q.played); i >= 0 {
		prev := q.played[i]
		upcoming := copyList(q.played[i+1:])
		if !q.currentTemp {
			upcoming = append(upcoming, q.current)
		}
		upcoming = append(upcoming, q.upcoming...)
		q.played = copyList(q.played[:i])
		q.upcoming = upcoming
		q.setCurrentLocked(prev, false)
		return
	}

	if i := q.lastPlayableLocked(q.upcoming); i >= 0 {
		prev := q.upcoming[i]
		played := q.played
		if !q.currentTemp {
			played = append(played, q.current)
		}
		played = append(played, q.upcoming[:i]...)
		q.played = played
		q.upcoming = copyList(q.upcoming[i+1:])
		q.setCurrentLocked(prev, false)
	}
}

// AddToTemporary appends an id to the temporary "play next" queue. Entries
// are not validated against the source list and may repeat.
func (q *Queue) AddToTemporary(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" {
		return
	}
	q.temporary = append(q.temporary, id)
}

// RemoveFromTemporary removes the temporary entry at the given index.
func (q *Queue) RemoveFromTemporary(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.temporary) {
		return
	}
	q.temporary = append(q.temporary[:index], q.temporary[index+1:]...)
}

// ClearTemporary drops all temporary entries.
func (q *Queue) ClearTemporary() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.temporary = nil
}

// PlayTemporaryItem promotes the temporary entry at the given index to
// current, removing it from the temporary queue. A regular current is pushed
// onto the history; a temporary one is discarded.
func (q *Queue) PlayTemporaryItem(index int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.temporary) {
		return
	}
	next := q.temporary[index]
	q.temporary = append(q.temporary[:index], q.temporary[index+1:]...)
	q.pushCurrentLocked()
	q.setCurrentLocked(next, true)
}

// PlayUpcomingItem jumps directly to the given upcoming id, moving every id
// before it plus the old current onto the history. No-op for disabled or
// absent ids.
func (q *Queue) PlayUpcomingItem(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.isDisabled(id) {
		return
	}
	i := indexOf(q.upcoming, id)
	if i < 0 {
		return
	}

	played := q.played
	if q.current != "" && !q.currentTemp {
		played = append(played, q.current)
	}
	played = append(played, q.upcoming[:i]...)
	q.played = played
	q.upcoming = copyList(q.upcoming[i+1:])
	q.setCurrentLocked(id, false)
}

// ToggleShuffle flips the shuffle state and synchronously re-derives the
// upcoming queue from the source list minus the history and current: a
// random permutation when shuffle turns on, source order otherwise. The
// history is preserved either way.
func (q *Queue) ToggleShuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.setShuffleLocked(!q.shuffle)
}

// SetShuffle sets the shuffle state explicitly, re-deriving the upcoming
// queue when the state changes.
func (q *Queue) SetShuffle(enabled bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.shuffle == enabled {
		return
	}
	q.setShuffleLocked(enabled)
}

func (q *Queue) setShuffleLocked(enabled bool) {
	q.shuffle = enabled
	if q.current == "" {
		return
	}

	// Multiset subtraction so duplicate source ids stay accounted for.
	counts := make(map[string]int, len(q.source))
	for _, id := range q.source {
		counts[id]++
	}
	for _, id := range q.played {
		counts[id]--
	}
	if !q.currentTemp {
		counts[q.current]--
	}

	remaining := make([]string, 0, len(q.upcoming))
	for _, id := range q.source {
		if counts[id] > 0 {
			counts[id]--
			remaining = append(remaining, id)
		}
	}
	if q.shuffle {
		q.rng.Shuffle(len(remaining), func(i, j int) {
			remaining[i], remaining[j] = remaining[j], remaining[i]
		})
	}
	q.upcoming = remaining
}

// Current returns the active track id, or empty when the queue is empty.
func (q *Queue) Current() string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.current
}

// Upcoming returns a copy of the upcoming queue.
func (q *Queue) Upcoming() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return copyList(q.upcoming)
}

// Temporary returns a copy of the temporary queue.
func (q *Queue) Temporary() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return copyList(q.temporary)
}

// Shuffle reports whether shuffle is enabled.
func (q *Queue) Shuffle() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.shuffle
}

// HasReachedEnd reports whether both the upcoming and temporary queues are
// empty, i.e. a natural track end has nowhere left to advance to without
// wrapping.
func (q *Queue) HasReachedEnd() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.upcoming) == 0 && len(q.temporary) == 0
}

// pushCurrentLocked moves a regular current onto the history. A temporary
// current never enters the history.
func (q *Queue) pushCurrentLocked() {
	if q.current != "" && !q.currentTemp {
		q.played = append(q.played, q.current)
	}
}

func (q *Queue) setCurrentLocked(id string, temp bool) {
	q.current = id
	q.currentTemp = temp
}

func (q *Queue) firstPlayableLocked(list []string) int {
	for i, id := range list {
		if !q.isDisabled(id) {
			return i
		}
	}
	return -1
}

func (q *Queue) lastPlayableLocked(list []string) int {
	for i := len(list) - 1; i >= 0; i-- {
		if !q.isDisabled(list[i]) {
			return i
		}
	}
	return -1
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func copyList(list []string) []string {
	out := make([]string, len(list))
	copy(out, list)
	return out
}
