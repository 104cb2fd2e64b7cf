/*
Package savings tracks per-identity savings goals.

PURPOSE:
  Each identity owns an ordered list of goals, addressed by position.
  Goals are only ever appended; CurrentAmount only ever grows.

PROGRESS RESULT:
  UpdateProgress has two success outcomes, modelled as one tagged value
  rather than two error paths:
    - Achieved: CurrentAmount >= TargetAmount
    - In progress: carries current/target/description

OVERFLOW:
  Progress additions saturate at math.MaxUint64 (generic.SaturatingAdd).

SEE ALSO:
  - generic/store.go: Store the goals live in
*/
package savings

import (
	"fmt"
	"slices"

	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
)

// Goal is one savings target.
type Goal struct {
	Description   string
	TargetAmount  uint64
	CurrentAmount uint64
}

// Achieved reports whether the goal has reached its target.
func (g Goal) Achieved() bool {
	return g.CurrentAmount >= g.TargetAmount
}

// Progress is the result of a progress update.
type Progress struct {
	Index    int
	Goal     Goal
	Achieved bool
}

// Message renders the progress as the user-facing confirmation.
func (p Progress) Message() string {
	if p.Achieved {
		return fmt.Sprintf("Goal achieved: %s!", p.Goal.Description)
	}
	return fmt.Sprintf("Progress updated: %d/%d for '%s'.",
		p.Goal.CurrentAmount, p.Goal.TargetAmount, p.Goal.Description)
}

var ErrInvalidGoal = generic.NewError(generic.ErrInvalidIndex, "Invalid goal or user.")

const MsgGoalAdded = "Savings goal added successfully!"

// Tracker stores goals per identity.
type Tracker struct {
	goals generic.Store[generic.Identity, []Goal]
}

func NewTracker() *Tracker {
	return &Tracker{goals: store.NewMemory[generic.Identity, []Goal]()}
}

// SetGoal appends a new goal with no progress and returns its index.
func (t *Tracker) SetGoal(id generic.Identity, description string, target uint64) int {
	var index int
	t.goals.GetOrCreate(id, func(goals *[]Goal) {
		*goals = append(*goals, Goal{Description: description, TargetAmount: target})
		index = len(*goals) - 1
	})
	return index
}

// UpdateProgress adds amount to the goal at index.
func (t *Tracker) UpdateProgress(id generic.Identity, index int, amount uint64) (Progress, error) {
	var result Progress
	err := t.goals.Mutate(id, func(goals []Goal, exists bool) ([]Goal, error) {
		if !exists || index < 0 || index >= len(goals) {
			return goals, ErrInvalidGoal
		}
		// Copy on write: readers may still hold the previous slice.
		next := slices.Clone(goals)
		g := &next[index]
		g.CurrentAmount = generic.SaturatingAdd(g.CurrentAmount, amount)
		result = Progress{Index: index, Goal: *g, Achieved: g.Achieved()}
		return next, nil
	})
	if err != nil {
		return Progress{}, err
	}
	return result, nil
}

// Goals returns a copy of id's goals, or an empty slice.
func (t *Tracker) Goals(id generic.Identity) []Goal {
	goals, ok := t.goals.Get(id)
	if !ok {
		return []Goal{}
	}
	return slices.Clone(goals)
}
