/*
Package staking implements the staking reward simulator.

PURPOSE:
  An identity can open exactly one staking session. A session records the
  staked amount, a reward rate per second and the start time; it is never
  closed. A summary reports the reward accrued since the start.

REWARD FORMULA:
  elapsed = max(0, now - start)           (seconds; a regressing clock yields 0)
  reward  = round(amount * rate * elapsed)

  The product is a float64 multiplication in that order, so 1 * 0.7 * 45
  is 31.499999999999996 and rounds to 31. The float result is rounded with
  shopspring/decimal, half away from zero (2.5 -> 3). Rewards larger than
  math.MaxUint64 saturate.

EXAMPLE:
  sim := staking.NewSimulator()
  _ = sim.Open("alice", 1000, 0.1, t0)
  s, _ := sim.Summary("alice", t0.Add(10*time.Second))
  // s.Reward == 1000

SEE ALSO:
  - generic/time.go: Clock and UnixSeconds
*/
package staking

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/generic/store"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SESSION
// =============================================================================

// Session is an open staking position.
type Session struct {
	Amount     uint64
	StartTime  uint64 // unix seconds
	RewardRate float64
}

// Summary is the state of a session at a point in time.
type Summary struct {
	Amount     uint64
	Reward     uint64
	Elapsed    uint64
	RewardRate float64
	StartTime  uint64
}

// Message renders the summary as the user-facing confirmation.
func (s Summary) Message() string {
	return fmt.Sprintf("Staked: %d, Reward: %d.00", s.Amount, s.Reward)
}

var (
	ErrSessionAlreadyActive = generic.NewError(generic.ErrAlreadyExists, "An active staking session already exists.")
	ErrNoActiveSession      = generic.NewError(generic.ErrUnavailable, "No active staking session.")
	ErrInvalidRate          = generic.NewError(generic.ErrInvalidInput, "Reward rate must be a finite, non-negative number.")
)

const MsgStarted = "Staking simulation started."

var (
	maxReward      = uint64Decimal(math.MaxUint64)
	maxRewardFloat = math.Ldexp(1, 64)
)

// =============================================================================
// SIMULATOR
// =============================================================================

// Simulator stores at most one session per identity.
type Simulator struct {
	sessions generic.Store[generic.Identity, Session]
}

func NewSimulator() *Simulator {
	return &Simulator{sessions: store.NewMemory[generic.Identity, Session]()}
}

// Open starts a session for id at now.
func (s *Simulator) Open(id generic.Identity, amount uint64, rate float64, now time.Time) (Session, error) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return Session{}, ErrInvalidRate
	}
	session := Session{
		Amount:     amount,
		StartTime:  generic.UnixSeconds(now),
		RewardRate: rate,
	}
	err := s.sessions.Mutate(id, func(current Session, exists bool) (Session, error) {
		if exists {
			return current, ErrSessionAlreadyActive
		}
		return session, nil
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Summary computes the reward accrued by id's session as of now.
func (s *Simulator) Summary(id generic.Identity, now time.Time) (Summary, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return Summary{}, ErrNoActiveSession
	}

	var elapsed uint64
	if current := generic.UnixSeconds(now); current > session.StartTime {
		elapsed = current - session.StartTime
	}

	return Summary{
		Amount:     session.Amount,
		Reward:     Reward(session.Amount, session.RewardRate, elapsed),
		Elapsed:    elapsed,
		RewardRate: session.RewardRate,
		StartTime:  session.StartTime,
	}, nil
}

// Session returns id's session, if any.
func (s *Simulator) Session(id generic.Identity) (Session, bool) {
	return s.sessions.Get(id)
}

// Count returns the number of sessions.
func (s *Simulator) Count() int {
	return s.sessions.Len()
}

// Reward returns round(amount * rate * elapsed), half away from zero,
// saturating at math.MaxUint64. rate must be finite and non-negative.
func Reward(amount uint64, rate float64, elapsed uint64) uint64 {
	product := float64(amount) * rate * float64(elapsed)
	if !(product > 0) {
		return 0
	}
	if math.IsInf(product, 1) || product >= maxRewardFloat {
		return math.MaxUint64
	}
	rounded := decimal.NewFromFloat(product).Round(0)
	if rounded.GreaterThan(maxReward) {
		return math.MaxUint64
	}
	return rounded.BigInt().Uint64()
}

func uint64Decimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
