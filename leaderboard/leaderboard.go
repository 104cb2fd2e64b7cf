/*
Package leaderboard keeps one cumulative score per identity.

PURPOSE:
  UpdateScore adds to an identity's score, creating its entry on first use.
  Snapshot returns every entry in the order identities first scored; it
  does not sort. Ranked is the sorted view.

LOOKUP:
  Entries live in an insertion-ordered generic.Store keyed by identity, so
  an update is O(1) and the snapshot order is the same one a linear list
  would have had.

OVERFLOW:
  Scores saturate at math.MaxUint64.
*/
package leaderboard

import (
	"sort"

	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
)

type Entry struct {
	Identity generic.Identity
	Score    uint64
}

const MsgUpdated = "Leaderboard updated!"

type Board struct {
	entries generic.Store[generic.Identity, Entry]
}

func NewBoard() *Board {
	return &Board{entries: store.NewMemory[generic.Identity, Entry]()}
}

// UpdateScore adds delta to id's score and returns the new total.
func (b *Board) UpdateScore(id generic.Identity, delta uint64) uint64 {
	var total uint64
	b.entries.GetOrCreate(id, func(e *Entry) {
		e.Identity = id
		e.Score = generic.SaturatingAdd(e.Score, delta)
		total = e.Score
	})
	return total
}

// Snapshot returns a copy of all entries in first-scored order.
func (b *Board) Snapshot() []Entry {
	return b.entries.Values()
}

// Ranked returns entries by descending score. Equal scores keep
// first-scored order. limit <= 0 returns every entry.
func (b *Board) Ranked(limit int) []Entry {
	entries := b.entries.Values()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}

// Score returns id's score and whether it has an entry.
func (b *Board) Score(id generic.Identity) (uint64, bool) {
	e, ok := b.entries.Get(id)
	return e.Score, ok
}

func (b *Board) Len() int {
	return b.entries.Len()
}
