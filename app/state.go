// Package app owns the engine state: one store per feature, built once at
// start-up and handed to the call boundary. Tests build a fresh State each.
package app

import (
	"github.com/learnify/state-engine/badges"
	"github.com/learnify/state-engine/leaderboard"
	"github.com/learnify/state-engine/roles"
	"github.com/learnify/state-engine/savings"
	"github.com/learnify/state-engine/staking"
	"github.com/learnify/state-engine/wallet"
)

type State struct {
	Roles       *roles.Registry
	Wallets     *wallet.Store
	Savings     *savings.Tracker
	Staking     *staking.Simulator
	Badges      *badges.Book
	Leaderboard *leaderboard.Board
}

// NewState returns a State with every store empty.
func NewState() *State {
	return &State{
		Roles:       roles.NewRegistry(),
		Wallets:     wallet.NewStore(),
		Savings:     savings.NewTracker(),
		Staking:     staking.NewSimulator(),
		Badges:      badges.NewBook(),
		Leaderboard: leaderboard.NewBoard(),
	}
}
