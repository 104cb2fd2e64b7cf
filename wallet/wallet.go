// Package wallet keeps one token wallet per identity.
package wallet

import (
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
)

type Wallet struct {
	Tokens uint64

	opened bool
}

var ErrNotFound = generic.NewError(generic.ErrNotFound, "Wallet not found.")

const (
	MsgCreated       = "Wallet created successfully!"
	MsgAlreadyExists = "Wallet already exists."
	MsgCredited      = "Wallet credited."
)

type Store struct {
	wallets generic.Store[generic.Identity, Wallet]
}

func NewStore() *Store {
	return &Store{wallets: store.NewMemory[generic.Identity, Wallet]()}
}

// Create opens an empty wallet for id. A second call is not an error: it
// reports created == false and leaves the existing wallet alone.
func (s *Store) Create(id generic.Identity) (created bool) {
	s.wallets.GetOrCreate(id, func(w *Wallet) {
		if !w.opened {
			w.opened = true
			created = true
		}
	})
	return created
}

func (s *Store) Balance(id generic.Identity) (uint64, error) {
	w, ok := s.wallets.Get(id)
	if !ok {
		return 0, ErrNotFound
	}
	return w.Tokens, nil
}

// Credit adds amount to an existing wallet, saturating, and returns the new balance.
func (s *Store) Credit(id generic.Identity, amount uint64) (uint64, error) {
	var balance uint64
	err := s.wallets.Mutate(id, func(current Wallet, exists bool) (Wallet, error) {
		if !exists {
			return current, ErrNotFound
		}
		current.Tokens = generic.SaturatingAdd(current.Tokens, amount)
		balance = current.Tokens
		return current, nil
	})
	return balance, err
}

// Count returns the number of wallets.
func (s *Store) Count() int {
	return s.wallets.Len()
}

// Message returns the user-facing confirmation for a Create outcome.
func Message(created bool) string {
	if created {
		return MsgCreated
	}
	return MsgAlreadyExists
}
