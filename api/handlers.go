/*
handlers.go - HTTP API handlers for the Learnify state engine

PURPOSE:
  The call-dispatch boundary around the engine. Each handler resolves the
  caller (from the request context), reads the clock where time matters,
  validates and decodes input, invokes exactly one engine operation and
  maps the tagged result to an HTTP response.

ENDPOINTS:
  Roles:
    POST   /api/users                  Register {role}
    GET    /api/users/me/role          Caller's role
    GET    /api/users/me/registered    Whether the caller is registered

  Admin:
    POST   /api/admin/actions                     Restricted action
    POST   /api/admin/wallets/{identity}/credit   Credit a wallet {amount}
    GET    /api/audit                             Audit trail

  Savings:
    POST   /api/savings/goals                   Set goal {description, target_amount}
    POST   /api/savings/goals/{index}/progress  Update progress {amount}
    GET    /api/savings/goals                   List goals

  Staking:
    POST   /api/staking/sessions   Open session {amount, reward_rate}
    GET    /api/staking/summary    Reward so far

  Wallet:
    POST   /api/wallet             Create (200 with notice if it exists)
    GET    /api/wallet/balance     Token balance

  Gamification:
    POST   /api/badges             Award {name, description}
    GET    /api/badges             List badges
    POST   /api/leaderboard/score  Add to score {score}
    GET    /api/leaderboard        Snapshot (?ranked=true&limit=n for ranking)

ERROR HANDLING:
  Errors are classified by category (generic/errors.go):
  - 400: ErrInvalidInput, ErrInvalidIndex, malformed JSON
  - 401: no resolvable caller
  - 403: ErrNotAuthorized
  - 404: ErrNotFound, ErrUnavailable
  - 409: ErrAlreadyExists
  - 500: anything else

RETRIES:
  None. Register, SetGoal, OpenStake, AwardBadge and UpdateScore are not
  idempotent; a client retrying them gets either a conflict or a second
  append.

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Caller resolution
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/learnify/state-engine/app"
	"github.com/learnify/state-engine/badges"
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/leaderboard"
	"github.com/learnify/state-engine/metrics"
	"github.com/learnify/state-engine/roles"
	"github.com/learnify/state-engine/savings"
	"github.com/learnify/state-engine/staking"
	"github.com/learnify/state-engine/wallet"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	State *app.State
	Clock generic.Clock
	Audit generic.AuditLog // optional
	Log   logrus.FieldLogger
}

// NewHandler creates a handler over state. audit may be nil.
func NewHandler(state *app.State, clock generic.Clock, audit generic.AuditLog, log logrus.FieldLogger) *Handler {
	if clock == nil {
		clock = generic.SystemClock{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{State: state, Clock: clock, Audit: audit, Log: log}
}

// =============================================================================
// ROLE HANDLERS
// =============================================================================

// Register assigns the caller a role.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	op := h.begin("roles", "register", generic.AuditUserRegistered)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	role, err := roles.ParseRole(req.Role)
	if err == nil {
		err = h.State.Roles.Register(caller, role)
	}
	h.finish(r, op, caller, err, logrus.Fields{"role": req.Role})
	if err != nil {
		writeOpError(w, err)
		return
	}

	metrics.RegisteredUsers.Set(float64(h.State.Roles.Count()))
	writeJSON(w, http.StatusCreated, MessageDTO{Message: roles.MsgRegistered})
}

// GetRole returns the caller's role.
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	op := h.begin("roles", "get_role", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	role, err := h.State.Roles.Role(caller)
	h.finish(r, op, caller, err, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleDTO{Role: role.String()})
}

// IsRegistered reports whether the caller has a role.
func (h *Handler) IsRegistered(w http.ResponseWriter, r *http.Request) {
	op := h.begin("roles", "is_registered", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	registered := h.State.Roles.IsRegistered(caller)
	h.finish(r, op, caller, nil, nil)
	writeJSON(w, http.StatusOK, RegisteredDTO{Registered: registered})
}

// RestrictedAction succeeds only for admins.
func (h *Handler) RestrictedAction(w http.ResponseWriter, r *http.Request) {
	op := h.begin("roles", "restricted_action", generic.AuditRestrictedAction)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	msg, err := h.State.Roles.RestrictedAction(caller)
	h.finish(r, op, caller, err, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageDTO{Message: msg})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// CreditWallet adds tokens to another identity's wallet. Admin only.
// The registry lock is released before the wallet lock is taken.
func (h *Handler) CreditWallet(w http.ResponseWriter, r *http.Request) {
	op := h.begin("wallet", "credit", generic.AuditWalletCredited)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	target := generic.Identity(chi.URLParam(r, "identity"))
	var req CreditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "amount", Reason: "is required"})
		return
	}

	_, err := h.State.Roles.RestrictedAction(caller)
	var balance uint64
	if err == nil {
		balance, err = h.State.Wallets.Credit(target, *req.Amount)
	}
	h.finish(r, op, caller, err, logrus.Fields{"target": string(target), "amount": *req.Amount})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Identity: string(target), Tokens: balance})
}

// ListAudit returns recorded write operations. Admin only.
//
// Query params: caller, action (comma-separated), limit.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	op := h.begin("audit", "list", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	if _, err := h.State.Roles.RestrictedAction(caller); err != nil {
		h.finish(r, op, caller, err, nil)
		writeOpError(w, err)
		return
	}
	if h.Audit == nil {
		h.finish(r, op, caller, nil, nil)
		writeJSON(w, http.StatusOK, []AuditEntryDTO{})
		return
	}

	q := r.URL.Query()
	var filter generic.AuditFilter
	if c := q.Get("caller"); c != "" {
		id := generic.Identity(c)
		filter.Caller = &id
	}
	if a := q.Get("action"); a != "" {
		for _, action := range strings.Split(a, ",") {
			filter.Actions = append(filter.Actions, generic.AuditAction(strings.TrimSpace(action)))
		}
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.finish(r, op, caller, err, nil)
		writeOpError(w, err)
		return
	}
	filter.Limit = limit

	entries, err := h.Audit.Query(r.Context(), filter)
	h.finish(r, op, caller, err, nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit trail", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditDTOs(entries))
}

// =============================================================================
// SAVINGS HANDLERS
// =============================================================================

// SetGoal appends a savings goal for the caller.
func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	op := h.begin("savings", "set_goal", generic.AuditGoalSet)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req SetGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TargetAmount == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "target_amount", Reason: "is required"})
		return
	}

	goal := savings.Goal{Description: req.Description, TargetAmount: *req.TargetAmount}
	index := h.State.Savings.SetGoal(caller, goal.Description, goal.TargetAmount)
	h.finish(r, op, caller, nil, logrus.Fields{"index": index, "target_amount": goal.TargetAmount})

	writeJSON(w, http.StatusCreated, ProgressDTO{
		GoalDTO: toGoalDTO(index, goal),
		Message: savings.MsgGoalAdded,
	})
}

// UpdateProgress adds to the goal at {index}.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	op := h.begin("savings", "update_progress", generic.AuditGoalProgress)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeOpError(w, &generic.InvalidInputError{Field: "index", Reason: "must be an integer"})
		return
	}
	var req ProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "amount", Reason: "is required"})
		return
	}

	progress, err := h.State.Savings.UpdateProgress(caller, index, *req.Amount)
	h.finish(r, op, caller, err, logrus.Fields{"index": index, "amount": *req.Amount})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProgressDTO{
		GoalDTO: toGoalDTO(progress.Index, progress.Goal),
		Message: progress.Message(),
	})
}

// ListGoals returns the caller's goals in creation order.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	op := h.begin("savings", "list_goals", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	goals := h.State.Savings.Goals(caller)
	h.finish(r, op, caller, nil, nil)
	writeJSON(w, http.StatusOK, toGoalDTOs(goals))
}

// =============================================================================
// STAKING HANDLERS
// =============================================================================

// OpenStake starts the caller's staking session.
func (h *Handler) OpenStake(w http.ResponseWriter, r *http.Request) {
	op := h.begin("staking", "open_session", generic.AuditStakeOpened)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req StakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Amount == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "amount", Reason: "is required"})
		return
	}
	if req.RewardRate == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "reward_rate", Reason: "is required"})
		return
	}

	session, err := h.State.Staking.Open(caller, *req.Amount, *req.RewardRate, h.Clock.Now())
	h.finish(r, op, caller, err, logrus.Fields{"amount": *req.Amount, "reward_rate": *req.RewardRate})
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionDTO{
		Amount:     session.Amount,
		RewardRate: session.RewardRate,
		StartTime:  session.StartTime,
		Message:    staking.MsgStarted,
	})
}

// StakingSummary reports the caller's reward as of now.
func (h *Handler) StakingSummary(w http.ResponseWriter, r *http.Request) {
	op := h.begin("staking", "summary", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	summary, err := h.State.Staking.Summary(caller, h.Clock.Now())
	h.finish(r, op, caller, err, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// WALLET HANDLERS
// =============================================================================

// CreateWallet opens the caller's wallet. An existing wallet is a notice (200), not an error.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	op := h.begin("wallet", "create", generic.AuditWalletCreated)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	created := h.State.Wallets.Create(caller)
	h.finish(r, op, caller, nil, logrus.Fields{"created": created})

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, WalletDTO{Created: created, Message: wallet.Message(created)})
}

// GetBalance returns the caller's token balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	op := h.begin("wallet", "get_balance", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	tokens, err := h.State.Wallets.Balance(caller)
	h.finish(r, op, caller, err, nil)
	if err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{Tokens: tokens})
}

// =============================================================================
// BADGE & LEADERBOARD HANDLERS
// =============================================================================

// AwardBadge appends a badge to the caller's list.
func (h *Handler) AwardBadge(w http.ResponseWriter, r *http.Request) {
	op := h.begin("badges", "award", generic.AuditBadgeAwarded)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req AwardBadgeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	count := h.State.Badges.Award(caller, req.Name, req.Description)
	h.finish(r, op, caller, nil, logrus.Fields{"badge": req.Name, "count": count})
	writeJSON(w, http.StatusCreated, MessageDTO{Message: badges.MsgAwarded})
}

// ListBadges returns the caller's badges.
func (h *Handler) ListBadges(w http.ResponseWriter, r *http.Request) {
	op := h.begin("badges", "list", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	list := h.State.Badges.List(caller)
	h.finish(r, op, caller, nil, nil)
	writeJSON(w, http.StatusOK, toBadgeDTOs(list))
}

// UpdateScore adds to the caller's leaderboard score.
func (h *Handler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	op := h.begin("leaderboard", "update_score", generic.AuditScoreUpdated)
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req ScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Score == nil {
		writeOpError(w, &generic.InvalidInputError{Field: "score", Reason: "is required"})
		return
	}

	total := h.State.Leaderboard.UpdateScore(caller, *req.Score)
	h.finish(r, op, caller, nil, logrus.Fields{"delta": *req.Score, "score": total})

	metrics.LeaderboardEntries.Set(float64(h.State.Leaderboard.Len()))
	writeJSON(w, http.StatusOK, ScoreDTO{Score: total, Message: leaderboard.MsgUpdated})
}

// GetLeaderboard returns every entry in first-scored order, or ranked by
// score with ?ranked=true (optionally &limit=n).
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	op := h.begin("leaderboard", "snapshot", "")
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var entries []leaderboard.Entry
	if ranked, _ := strconv.ParseBool(q.Get("ranked")); ranked {
		limit, err := parseLimit(q.Get("limit"))
		if err != nil {
			h.finish(r, op, caller, err, nil)
			writeOpError(w, err)
			return
		}
		entries = h.State.Leaderboard.Ranked(limit)
	} else {
		entries = h.State.Leaderboard.Snapshot()
	}
	h.finish(r, op, caller, nil, nil)
	writeJSON(w, http.StatusOK, toLeaderboardDTOs(entries))
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, MessageDTO{Message: "ok"})
}

// =============================================================================
// DISPATCH HELPERS
// =============================================================================

type operation struct {
	feature string
	name    string
	action  generic.AuditAction // empty for reads
	start   time.Time
}

func (h *Handler) begin(feature, name string, action generic.AuditAction) operation {
	return operation{feature: feature, name: name, action: action, start: time.Now()}
}

// finish records metrics, a log line and, for writes, an audit entry.
// Audit failures are logged and counted; they never fail the operation.
func (h *Handler) finish(r *http.Request, op operation, caller generic.Identity, err error, fields logrus.Fields) {
	metrics.Observe(op.feature, op.name, err, time.Since(op.start).Seconds())

	entry := h.Log.WithFields(logrus.Fields{
		"caller":    string(caller),
		"feature":   op.feature,
		"operation": op.name,
	}).WithFields(fields)
	switch {
	case err == nil:
		entry.Debug("operation completed")
	case statusFor(err) < http.StatusInternalServerError:
		entry.WithField("reason", generic.Message(err)).Info("operation refused")
	default:
		entry.WithError(err).Error("operation failed")
	}

	if op.action == "" || h.Audit == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = generic.Message(err)
	}
	payload := make(map[string]any, len(fields))
	for k, v := range fields {
		payload[k] = v
	}
	auditErr := h.Audit.Append(r.Context(), generic.AuditEntry{
		Timestamp: h.Clock.Now(),
		Caller:    caller,
		Action:    op.action,
		Outcome:   outcome,
		Payload:   payload,
	})
	if auditErr != nil {
		metrics.AuditFailures.Inc()
		h.Log.WithError(auditErr).WithField("action", op.action).Warn("failed to record audit entry")
	}
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (generic.Identity, bool) {
	id, ok := CallerFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized", ErrMissingCaller)
		return "", false
	}
	return id, true
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, &generic.InvalidInputError{Field: "limit", Reason: "must be a non-negative integer"}
	}
	return n, nil
}

// statusFor maps an engine error to its HTTP status by category.
func statusFor(err error) int {
	switch {
	case generic.IsConflict(err):
		return http.StatusConflict
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsNotAuthorized(err):
		return http.StatusForbidden
	case generic.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeOpError writes an engine error with its stable message.
func writeOpError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var fe *generic.Error
	if errors.As(err, &fe) {
		writeJSON(w, status, ErrorResponse{Error: fe.Message, Details: fe.Category.Error()})
		return
	}
	if status == http.StatusInternalServerError {
		writeError(w, status, "Internal error", err)
		return
	}
	writeError(w, status, err.Error(), nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
