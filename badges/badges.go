// Package badges records the badges each identity has earned.
//
// Badges are append-only and not deduplicated: awarding the same badge twice
// stores it twice.
package badges

import (
	"slices"

	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
)

type Badge struct {
	Name        string
	Description string
}

const MsgAwarded = "Badge awarded!"

// Book stores badges per identity.
type Book struct {
	badges generic.Store[generic.Identity, []Badge]
}

func NewBook() *Book {
	return &Book{badges: store.NewMemory[generic.Identity, []Badge]()}
}

// Award appends a badge to id's list and returns how many badges id now has.
func (b *Book) Award(id generic.Identity, name, description string) int {
	var n int
	b.badges.GetOrCreate(id, func(list *[]Badge) {
		*list = append(*list, Badge{Name: name, Description: description})
		n = len(*list)
	})
	return n
}

// List returns a copy of id's badges, or an empty slice.
func (b *Book) List(id generic.Identity) []Badge {
	list, ok := b.badges.Get(id)
	if !ok {
		return []Badge{}
	}
	return slices.Clone(list)
}

func (b *Book) Count(id generic.Identity) int {
	list, _ := b.badges.Get(id)
	return len(list)
}
