package ranking

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"musicroom-core/internal/model"
)

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func TestTally(t *testing.T) {
	tests := []struct {
		up, down, want int
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 1, 2},
		{1, 3, 0},
		{4, 4, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tally(tt.up, tt.down), "up=%d down=%d", tt.up, tt.down)
	}
}

func TestTally_OrderIndependent(t *testing.T) {
	votes := []int{1, 1, -1, 1, -1, -1, -1, 1, 1}
	count := func(vs []int) int {
		up, down := 0, 0
		for _, v := range vs {
			if v > 0 {
				up++
			} else {
				down++
			}
		}
		return Tally(up, down)
	}

	want := count(votes)
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 50; i++ {
		shuffled := append([]int(nil), votes...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, count(shuffled))
	}
}

// X and Y both reach 2-0, Z reaches 3-1. All three tie at 2 so the add
// time decides.
func TestRank_TiesBrokenByAddTime(t *testing.T) {
	entries := []Entry{
		{TrackID: "z", Tally: Tally(3, 1), AddedAt: t0.Add(2 * time.Second)},
		{TrackID: "x", Tally: Tally(2, 0), AddedAt: t0},
		{TrackID: "y", Tally: Tally(2, 0), AddedAt: t0.Add(time.Second)},
	}

	got := Rank(entries)
	assert.Equal(t, []model.Placement{
		{TrackID: "x", Position: 1},
		{TrackID: "y", Position: 2},
		{TrackID: "z", Position: 3},
	}, got)
}

func TestRank_TallyDescending(t *testing.T) {
	entries := []Entry{
		{TrackID: "a", Tally: 1, AddedAt: t0},
		{TrackID: "b", Tally: 5, AddedAt: t0.Add(time.Second)},
		{TrackID: "c", Tally: 0, AddedAt: t0.Add(-time.Second)},
		{TrackID: "d", Tally: 3, AddedAt: t0.Add(time.Minute)},
	}
	got := Rank(entries)
	ids := make([]string, len(got))
	for i, p := range got {
		ids[i] = p.TrackID
		assert.Equal(t, i+1, p.Position)
	}
	assert.Equal(t, []string{"b", "d", "a", "c"}, ids)
}

func TestRank_StableAndInputOrderIndependent(t *testing.T) {
	entries := []Entry{
		{TrackID: "a", Tally: 2, AddedAt: t0},
		{TrackID: "b", Tally: 2, AddedAt: t0},
		{TrackID: "c", Tally: 1, AddedAt: t0.Add(time.Second)},
		{TrackID: "d", Tally: 2, AddedAt: t0.Add(-time.Second)},
		{TrackID: "e", Tally: 0, AddedAt: t0},
	}
	want := Rank(entries)
	require.Len(t, want, len(entries))

	// recomputing with unchanged inputs yields identical positions
	assert.Equal(t, want, Rank(entries))

	r := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Entry(nil), entries...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Rank(shuffled))
	}
}

func TestRank_DoesNotModifyInput(t *testing.T) {
	entries := []Entry{
		{TrackID: "a", Tally: 0, AddedAt: t0},
		{TrackID: "b", Tally: 3, AddedAt: t0},
	}
	_ = Rank(entries)
	assert.Equal(t, "a", entries[0].TrackID)
}

func TestRank_Empty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestEntriesOf_SkipsPlayed(t *testing.T) {
	tracks := []model.Track{
		{ID: "a", Status: model.TrackUnplayed, Tally: 1},
		{ID: "b", Status: model.TrackPlayed, Tally: 9},
	}
	got := entriesOf(tracks)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].TrackID)
}

func TestChanged(t *testing.T) {
	tracks := []model.Track{{ID: "a", Position: 1}, {ID: "b", Position: 2}}
	assert.False(t, changed(tracks, []model.Placement{{TrackID: "a", Position: 1}, {TrackID: "b", Position: 2}}))
	assert.True(t, changed(tracks, []model.Placement{{TrackID: "b", Position: 1}, {TrackID: "a", Position: 2}}))
}
