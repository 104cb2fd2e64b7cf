/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Required numeric fields are pointers so a missing field is told apart
  from zero. Unsigned fields reject negative numbers at decode time.
*/
package api

import (
	"time"

	"github.com/learnify/state-engine/badges"
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/leaderboard"
	"github.com/learnify/state-engine/savings"
	"github.com/learnify/state-engine/staking"
)

// =============================================================================
// REQUESTS
// =============================================================================

type RegisterRequest struct {
	Role string `json:"role"`
}

type SetGoalRequest struct {
	Description  string  `json:"description"`
	TargetAmount *uint64 `json:"target_amount"`
}

type ProgressRequest struct {
	Amount *uint64 `json:"amount"`
}

type StakeRequest struct {
	Amount     *uint64  `json:"amount"`
	RewardRate *float64 `json:"reward_rate"`
}

type CreditRequest struct {
	Amount *uint64 `json:"amount"`
}

type AwardBadgeRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ScoreRequest struct {
	Score *uint64 `json:"score"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// MessageDTO is the response for operations whose result is a confirmation.
type MessageDTO struct {
	Message string `json:"message"`
}

type RoleDTO struct {
	Role string `json:"role"`
}

type RegisteredDTO struct {
	Registered bool `json:"registered"`
}

type GoalDTO struct {
	Index         int    `json:"index"`
	Description   string `json:"description"`
	TargetAmount  uint64 `json:"target_amount"`
	CurrentAmount uint64 `json:"current_amount"`
	Achieved      bool   `json:"achieved"`
}

type ProgressDTO struct {
	GoalDTO
	Message string `json:"message"`
}

type SessionDTO struct {
	Amount     uint64  `json:"amount"`
	RewardRate float64 `json:"reward_rate"`
	StartTime  uint64  `json:"start_time"`
	Message    string  `json:"message"`
}

type SummaryDTO struct {
	Amount         uint64  `json:"amount"`
	Reward         uint64  `json:"reward"`
	ElapsedSeconds uint64  `json:"elapsed_seconds"`
	RewardRate     float64 `json:"reward_rate"`
	StartTime      uint64  `json:"start_time"`
	Message        string  `json:"message"`
}

type WalletDTO struct {
	Created bool   `json:"created"`
	Message string `json:"message"`
}

type BalanceDTO struct {
	Identity string `json:"identity,omitempty"`
	Tokens   uint64 `json:"tokens"`
}

type BadgeDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LeaderboardEntryDTO struct {
	Identity string `json:"identity"`
	Score    uint64 `json:"score"`
}

type ScoreDTO struct {
	Score   uint64 `json:"score"`
	Message string `json:"message"`
}

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Caller    string         `json:"caller"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toGoalDTOs(goals []savings.Goal) []GoalDTO {
	dtos := make([]GoalDTO, len(goals))
	for i, g := range goals {
		dtos[i] = toGoalDTO(i, g)
	}
	return dtos
}

func toGoalDTO(index int, g savings.Goal) GoalDTO {
	return GoalDTO{
		Index:         index,
		Description:   g.Description,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Achieved:      g.Achieved(),
	}
}

func toSummaryDTO(s staking.Summary) SummaryDTO {
	return SummaryDTO{
		Amount:         s.Amount,
		Reward:         s.Reward,
		ElapsedSeconds: s.Elapsed,
		RewardRate:     s.RewardRate,
		StartTime:      s.StartTime,
		Message:        s.Message(),
	}
}

func toBadgeDTOs(list []badges.Badge) []BadgeDTO {
	dtos := make([]BadgeDTO, len(list))
	for i, b := range list {
		dtos[i] = BadgeDTO{Name: b.Name, Description: b.Description}
	}
	return dtos
}

func toLeaderboardDTOs(entries []leaderboard.Entry) []LeaderboardEntryDTO {
	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{Identity: string(e.Identity), Score: e.Score}
	}
	return dtos
}

func toAuditDTOs(entries []generic.AuditEntry) []AuditEntryDTO {
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:        e.ID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Caller:    string(e.Caller),
			Action:    string(e.Action),
			Outcome:   e.Outcome,
			Payload:   e.Payload,
		}
	}
	return dtos
}
