package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(opts Options) *Queue {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}
	return New(opts)
}

func disabledSet(ids ...string) func(string) bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return func(id string) bool { return set[id] }
}

// rotation returns played + current + upcoming as a sorted multiset.
func rotation(q *Queue) []string {
	all := make([]string, 0, len(q.played)+len(q.upcoming)+1)
	all = append(all, q.played...)
	if q.current != "" && !q.currentTemp {
		all = append(all, q.current)
	}
	all = append(all, q.upcoming...)
	sort.Strings(all)
	return all
}

func TestQueue_Init(t *testing.T) {
	tests := []struct {
		name         string
		list         []string
		startID      string
		disabled     []string
		wantCurrent  string
		wantPlayed   []string
		wantUpcoming []string
		wantNoop     bool
	}{
		{
			name:         "auto-select first id",
			list:         []string{"a", "b", "c"},
			wantCurrent:  "a",
			wantPlayed:   []string{},
			wantUpcoming: []string{"b", "c"},
		},
		{
			name:         "explicit start id splits list",
			list:         []string{"a", "b", "c"},
			startID:      "b",
			wantCurrent:  "b",
			wantPlayed:   []string{"a"},
			wantUpcoming: []string{"c"},
		},
		{
			name:         "explicit start id may be disabled",
			list:         []string{"a", "b", "c"},
			startID:      "b",
			disabled:     []string{"b"},
			wantCurrent:  "b",
			wantPlayed:   []string{"a"},
			wantUpcoming: []string{"c"},
		},
		{
			name:         "auto-select skips disabled prefix",
			list:         []string{"a", "b", "c"},
			disabled:     []string{"a", "b"},
			wantCurrent:  "c",
			wantPlayed:   []string{"a", "b"},
			wantUpcoming: []string{},
		},
		{
			name:     "empty list is a no-op",
			list:     []string{},
			wantNoop: true,
		},
		{
			name:     "unknown start id is a no-op",
			list:     []string{"a", "b"},
			startID:  "x",
			wantNoop: true,
		},
		{
			name:     "all disabled without start id is a no-op",
			list:     []string{"a", "b"},
			disabled: []string{"a", "b"},
			wantNoop: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(Options{IsDisabled: disabledSet(tt.disabled...)})
			q.Init(tt.list, tt.startID)

			if tt.wantNoop {
				assert.Empty(t, q.Current())
				return
			}

			assert.Equal(t, tt.wantCurrent, q.Current())
			assert.Equal(t, tt.wantPlayed, q.played)
			assert.Equal(t, tt.wantUpcoming, q.Upcoming())
		})
	}
}

func TestQueue_Init_ResetsTemporary(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b"}, "")
	q.AddToTemporary("x")
	require.Len(t, q.Temporary(), 1)

	q.Init([]string{"a", "b"}, "b")
	assert.Empty(t, q.Temporary())
}

func TestQueue_Init_ShuffleWithStartID(t *testing.T) {
	// Remove-then-shuffle-remainder: the start id must never reappear in
	// the upcoming queue.
	list := []string{"a", "b", "c", "d", "e"}
	q := newTestQueue(Options{Shuffle: true})
	q.Init(list, "c")

	assert.Equal(t, "c", q.Current())
	assert.Empty(t, q.played)

	upcoming := q.Upcoming()
	assert.Len(t, upcoming, 4)
	assert.NotContains(t, upcoming, "c")
	assert.ElementsMatch(t, []string{"a", "b", "d", "e"}, upcoming)
}

func TestQueue_Init_ShuffleAutoSelect(t *testing.T) {
	list := []string{"a", "b", "c", "d"}
	q := newTestQueue(Options{Shuffle: true})
	q.Init(list, "")

	require.NotEmpty(t, q.Current())
	assert.ElementsMatch(t, list, rotation(q))
}

func TestQueue_GoNext_Basic(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "")
	require.Equal(t, "a", q.Current())

	q.GoNext()
	assert.Equal(t, "b", q.Current())
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"c"}, q.Upcoming())

	q.GoNext()
	assert.Equal(t, "c", q.Current())
	assert.Equal(t, []string{"a", "b"}, q.played)
	assert.Empty(t, q.Upcoming())
	assert.True(t, q.HasReachedEnd())

	// Wrap back to the start.
	q.GoNext()
	assert.Equal(t, "a", q.Current())
	assert.Empty(t, q.played)
	assert.Equal(t, []string{"b", "c"}, q.Upcoming())
}

func TestQueue_GoNext_FullCycle(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e"}
	q := newTestQueue(Options{})
	q.Init(list, "")
	start := q.Current()

	for range list {
		q.GoNext()
	}
	assert.Equal(t, start, q.Current())
}

func TestQueue_GoNext_SkipsDisabled(t *testing.T) {
	q := newTestQueue(Options{IsDisabled: disabledSet("b")})
	q.Init([]string{"a", "b", "c"}, "")
	require.Equal(t, "a", q.Current())

	q.GoNext()
	assert.Equal(t, "c", q.Current())
	assert.Equal(t, []string{"a", "b"}, q.played)
	assert.Empty(t, q.Upcoming())
}

func TestQueue_GoNext_WrapSkipsDisabledPrefix(t *testing.T) {
	q := newTestQueue(Options{IsDisabled: disabledSet("a")})
	q.Init([]string{"a", "b", "c"}, "c")
	require.Equal(t, "c", q.Current())
	require.Equal(t, []string{"a", "b"}, q.played)

	q.GoNext()
	assert.Equal(t, "b", q.Current())
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"c"}, q.Upcoming())
}

func TestQueue_GoNext_NothingPlayable(t *testing.T) {
	isDisabled := disabledSet("a", "b", "c")
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "b")
	q.isDisabled = isDisabled

	q.GoNext()
	assert.Equal(t, "b", q.Current())
	q.GoPrevious()
	assert.Equal(t, "b", q.Current())
}

func TestQueue_GoPrevious_InverseOfGoNext(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c", "d"}, "b")
	require.Equal(t, "b", q.Current())

	q.GoNext()
	require.Equal(t, "c", q.Current())

	q.GoPrevious()
	assert.Equal(t, "b", q.Current())
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"c", "d"}, q.Upcoming())
}

func TestQueue_GoPrevious_WrapsIntoUpcoming(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "")
	require.Equal(t, "a", q.Current())

	q.GoPrevious()
	assert.Equal(t, "c", q.Current())
	assert.Equal(t, []string{"a", "b"}, q.played)
	assert.Empty(t, q.Upcoming())
}

func TestQueue_GoPrevious_SkipsDisabledHistory(t *testing.T) {
	q := newTestQueue(Options{IsDisabled: disabledSet("b")})
	q.Init([]string{"a", "b", "c"}, "c")
	require.Equal(t, []string{"a", "b"}, q.played)

	q.GoPrevious()
	assert.Equal(t, "a", q.Current())
	assert.Empty(t, q.played)
	assert.Equal(t, []string{"b", "c"}, q.Upcoming())
}

func TestQueue_GoNext_UninitializedIsNoop(t *testing.T) {
	q := newTestQueue(Options{})
	q.GoNext()
	q.GoPrevious()
	assert.Empty(t, q.Current())
}

func TestQueue_TemporaryQueue(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "")
	require.Equal(t, "a", q.Current())

	q.AddToTemporary("x")
	q.AddToTemporary("y")
	assert.Equal(t, []string{"x", "y"}, q.Temporary())

	// Temporary head wins over upcoming regardless of its contents.
	q.GoNext()
	assert.Equal(t, "x", q.Current())
	assert.Equal(t, []string{"y"}, q.Temporary())
	// The regular current entered the history.
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"b", "c"}, q.Upcoming())

	// A temporary current never enters the history.
	q.GoNext()
	assert.Equal(t, "y", q.Current())
	assert.Equal(t, []string{"a"}, q.played)

	// Draining the temporary queue resumes the regular rotation.
	q.GoNext()
	assert.Equal(t, "b", q.Current())
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"c"}, q.Upcoming())
}

func TestQueue_GoPrevious_IgnoresTemporaryCurrent(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "b")
	q.AddToTemporary("x")
	q.GoNext()
	require.Equal(t, "x", q.Current())

	// Back-traversal never visits temporary entries; the temporary current
	// is discarded from the rotation.
	q.GoPrevious()
	assert.Equal(t, "b", q.Current())
	assert.Equal(t, []string{"a"}, q.played)
	assert.Equal(t, []string{"c"}, q.Upcoming())
}

func TestQueue_RemoveFromTemporary(t *testing.T) {
	tests := []struct {
		name  string
		index int
		want  []string
	}{
		{name: "remove head", index: 0, want: []string{"y", "z"}},
		{name: "remove middle", index: 1, want: []string{"x", "z"}},
		{name: "negative index is a no-op", index: -1, want: []string{"x", "y", "z"}},
		{name: "out of range is a no-op", index: 3, want: []string{"x", "y", "z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(Options{})
			q.AddToTemporary("x")
			q.AddToTemporary("y")
			q.AddToTemporary("z")

			q.RemoveFromTemporary(tt.index)
			assert.Equal(t, tt.want, q.Temporary())
		})
	}
}

func TestQueue_ClearTemporary(t *testing.T) {
	q := newTestQueue(Options{})
	q.AddToTemporary("x")
	q.AddToTemporary("y")

	q.ClearTemporary()
	assert.Empty(t, q.Temporary())
	assert.True(t, q.HasReachedEnd())
}

func TestQueue_PlayTemporaryItem(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b"}, "")
	q.AddToTemporary("x")
	q.AddToTemporary("y")

	q.PlayTemporaryItem(1)
	assert.Equal(t, "y", q.Current())
	assert.Equal(t, []string{"x"}, q.Temporary())
	assert.Equal(t, []string{"a"}, q.played)

	q.PlayTemporaryItem(5)
	assert.Equal(t, "y", q.Current())
}

func TestQueue_PlayUpcomingItem(t *testing.T) {
	tests := []struct {
		name         string
		id           string
		disabled     []string
		wantCurrent  string
		wantPlayed   []string
		wantUpcoming []string
	}{
		{
			name:         "jump ahead moves skipped ids to history",
			id:           "d",
			wantCurrent:  "d",
			wantPlayed:   []string{"a", "b", "c"},
			wantUpcoming: []string{"e"},
		},
		{
			name:         "disabled id is a no-op",
			id:           "d",
			disabled:     []string{"d"},
			wantCurrent:  "a",
			wantPlayed:   []string{},
			wantUpcoming: []string{"b", "c", "d", "e"},
		},
		{
			name:         "absent id is a no-op",
			id:           "z",
			wantCurrent:  "a",
			wantPlayed:   []string{},
			wantUpcoming: []string{"b", "c", "d", "e"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue(Options{IsDisabled: disabledSet(tt.disabled...)})
			q.Init([]string{"a", "b", "c", "d", "e"}, "")

			q.PlayUpcomingItem(tt.id)
			assert.Equal(t, tt.wantCurrent, q.Current())
			assert.Equal(t, tt.wantPlayed, q.played)
			assert.Equal(t, tt.wantUpcoming, q.Upcoming())
		})
	}
}

func TestQueue_ToggleShuffle_PreservesMembership(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e", "c"}
	q := newTestQueue(Options{})
	q.Init(list, "")
	q.GoNext()
	q.GoNext()

	before := rotation(q)
	played := copyList(q.played)
	current := q.Current()

	q.ToggleShuffle()
	assert.True(t, q.Shuffle())
	assert.Equal(t, before, rotation(q))
	assert.Equal(t, played, q.played, "history must be preserved")
	assert.Equal(t, current, q.Current())

	q.ToggleShuffle()
	assert.False(t, q.Shuffle())
	assert.Equal(t, before, rotation(q))
}

func TestQueue_ToggleShuffle_ImmediateEffect(t *testing.T) {
	// The re-derived order must be visible to an immediately following
	// GoNext: the new current must come out of the re-derived upcoming set.
	list := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	q := newTestQueue(Options{})
	q.Init(list, "")

	q.ToggleShuffle()
	upcoming := q.Upcoming()
	require.Len(t, upcoming, len(list)-1)

	q.GoNext()
	assert.Equal(t, upcoming[0], q.Current())
}

func TestQueue_SetShuffle_SameStateIsNoop(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b", "c"}, "")
	before := q.Upcoming()

	q.SetShuffle(false)
	assert.Equal(t, before, q.Upcoming())
}

func TestQueue_HasReachedEnd(t *testing.T) {
	q := newTestQueue(Options{})
	q.Init([]string{"a", "b"}, "")
	assert.False(t, q.HasReachedEnd())

	q.GoNext()
	assert.True(t, q.HasReachedEnd())

	q.AddToTemporary("x")
	assert.False(t, q.HasReachedEnd())
}

func TestQueue_RotationInvariant(t *testing.T) {
	// played ++ [current] ++ upcoming stays a permutation of the source
	// list through an arbitrary operation sequence.
	list := []string{"a", "b", "c", "d", "b", "e"}
	want := copyList(list)
	sort.Strings(want)

	q := newTestQueue(Options{IsDisabled: disabledSet("d")})
	q.Init(list, "")

	ops := []func(){
		q.GoNext, q.GoNext, q.GoPrevious, q.ToggleShuffle,
		q.GoNext, q.GoNext, q.GoNext, q.GoNext, q.GoPrevious,
		q.ToggleShuffle, q.GoPrevious, q.GoNext,
	}
	for i, op := range ops {
		op()
		require.Equal(t, want, rotation(q), "after operation %d", i)
	}
}
