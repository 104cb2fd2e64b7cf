/*
handlers_test.go - HTTP boundary tests

Tests for:
- Each route end to end through the router (auth, decode, engine, response)
- Error category to status mapping
- Audit entries recorded for writes
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/learnify/state-engine/api"
	"github.com/learnify/state-engine/app"
	"github.com/learnify/state-engine/generic"
	"github.com/learnify/state-engine/metrics"
	"github.com/learnify/state-engine/store/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type testServer struct {
	router http.Handler
	state  *app.State
	clock  *generic.FixedClock
	audit  *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	audit, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { audit.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	state := app.NewState()
	clock := generic.NewFixedClock(time.Unix(1_700_000_000, 0))
	h := api.NewHandler(state, clock, audit, log)

	return &testServer{
		router: api.NewRouter(h, api.HeaderResolver{}, []string{"http://localhost:5173"}),
		state:  state,
		clock:  clock,
		audit:  audit,
	}
}

func (s *testServer) do(t *testing.T, caller, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != "" {
		req.Header.Set(api.CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestAPI_MissingCallerIsUnauthorized(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodGet, "/api/users/me/registered", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HealthzNeedsNoCaller(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "", http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

// =============================================================================
// ROLES
// =============================================================================

func TestAPI_RegisterTwice(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/users", map[string]string{"role": "learner"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "User registered successfully.", decode[api.MessageDTO](t, rec).Message)

	rec = s.do(t, "alice", http.MethodPost, "/api/users", map[string]string{"role": "admin"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User already registered.", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, "alice", http.MethodGet, "/api/users/me/role", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "learner", decode[api.RoleDTO](t, rec).Role)
}

func TestAPI_RegisterUnknownRole(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/users", map[string]string{"role": "Admin"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, s.state.Roles.IsRegistered("alice"))
}

func TestAPI_RoleOfUnregistered(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "ghost", http.MethodGet, "/api/users/me/role", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "ghost", http.MethodGet, "/api/users/me/registered", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[api.RegisteredDTO](t, rec).Registered)
}

func TestAPI_RestrictedAction(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "root", http.MethodPost, "/api/users", map[string]string{"role": "admin"})
	s.do(t, "alice", http.MethodPost, "/api/users", map[string]string{"role": "learner"})

	assert.Equal(t, http.StatusOK, s.do(t, "root", http.MethodPost, "/api/admin/actions", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, "alice", http.MethodPost, "/api/admin/actions", nil).Code)

	rec := s.do(t, "ghost", http.MethodPost, "/api/admin/actions", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User not registered.", decode[api.ErrorResponse](t, rec).Error)
}

func TestAPI_CreditWallet_AdminOnly(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "root", http.MethodPost, "/api/users", map[string]string{"role": "admin"})
	s.do(t, "alice", http.MethodPost, "/api/users", map[string]string{"role": "learner"})
	s.do(t, "alice", http.MethodPost, "/api/wallet", nil)

	rec := s.do(t, "alice", http.MethodPost, "/api/admin/wallets/alice/credit", map[string]uint64{"amount": 50})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, "root", http.MethodPost, "/api/admin/wallets/alice/credit", map[string]uint64{"amount": 50})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(50), decode[api.BalanceDTO](t, rec).Tokens)

	rec = s.do(t, "root", http.MethodPost, "/api/admin/wallets/bob/credit", map[string]uint64{"amount": 50})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "alice", http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, uint64(50), decode[api.BalanceDTO](t, rec).Tokens)
}

// =============================================================================
// SAVINGS
// =============================================================================

func TestAPI_SavingsFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/savings/goals",
		map[string]any{"description": "Car", "target_amount": 1000})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Savings goal added successfully!", decode[api.ProgressDTO](t, rec).Message)

	rec = s.do(t, "alice", http.MethodPost, "/api/savings/goals/0/progress", map[string]any{"amount": 400})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[api.ProgressDTO](t, rec)
	assert.False(t, p.Achieved)
	assert.Equal(t, uint64(400), p.CurrentAmount)
	assert.Equal(t, "Progress updated: 400/1000 for 'Car'.", p.Message)

	rec = s.do(t, "alice", http.MethodPost, "/api/savings/goals/0/progress", map[string]any{"amount": 600})
	require.Equal(t, http.StatusOK, rec.Code)
	p = decode[api.ProgressDTO](t, rec)
	assert.True(t, p.Achieved)
	assert.Equal(t, "Goal achieved: Car!", p.Message)

	rec = s.do(t, "alice", http.MethodPost, "/api/savings/goals/1/progress", map[string]any{"amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid goal or user.", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, "alice", http.MethodGet, "/api/savings/goals", nil)
	goals := decode[[]api.GoalDTO](t, rec)
	require.Len(t, goals, 1)
	assert.Equal(t, uint64(1000), goals[0].CurrentAmount)
}

func TestAPI_SavingsMalformedInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"negative target", "/api/savings/goals", map[string]any{"description": "Car", "target_amount": -1}},
		{"missing target", "/api/savings/goals", map[string]any{"description": "Car"}},
		{"unknown field", "/api/savings/goals", map[string]any{"description": "Car", "target_amount": 1, "x": 1}},
		{"non-numeric index", "/api/savings/goals/first/progress", map[string]any{"amount": 1}},
		{"missing amount", "/api/savings/goals/0/progress", map[string]any{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, "alice", http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, s.state.Savings.Goals("alice"))
}

func TestAPI_EmptyStringsAreAccepted(t *testing.T) {
	s := newTestServer(t)

	// GIVEN: well-formed bodies whose strings are empty
	rec := s.do(t, "alice", http.MethodPost, "/api/savings/goals",
		map[string]any{"description": "", "target_amount": 10})

	// THEN: goal and badge are stored like any other
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, decode[api.ProgressDTO](t, rec).Index)

	rec = s.do(t, "alice", http.MethodPost, "/api/badges", map[string]string{"name": ""})
	require.Equal(t, http.StatusCreated, rec.Code)

	goals := s.state.Savings.Goals("alice")
	require.Len(t, goals, 1)
	assert.Equal(t, "", goals[0].Description)
	assert.Equal(t, 1, s.state.Badges.Count("alice"))
}

func TestAPI_ListGoals_EmptyIsArray(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodGet, "/api/savings/goals", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

// =============================================================================
// STAKING
// =============================================================================

func TestAPI_StakingFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodGet, "/api/staking/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No active staking session.", decode[api.ErrorResponse](t, rec).Error)

	rec = s.do(t, "alice", http.MethodPost, "/api/staking/sessions", map[string]any{"amount": 1000, "reward_rate": 0.1})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(1_700_000_000), decode[api.SessionDTO](t, rec).StartTime)

	rec = s.do(t, "alice", http.MethodPost, "/api/staking/sessions", map[string]any{"amount": 1, "reward_rate": 0.1})
	assert.Equal(t, http.StatusConflict, rec.Code)

	s.clock.Advance(10 * time.Second)
	rec = s.do(t, "alice", http.MethodGet, "/api/staking/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.SummaryDTO](t, rec)
	assert.Equal(t, uint64(1000), summary.Amount)
	assert.Equal(t, uint64(1000), summary.Reward)
	assert.Equal(t, "Staked: 1000, Reward: 1000.00", summary.Message)
}

func TestAPI_StakingInvalidRate(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodPost, "/api/staking/sessions", map[string]any{"amount": 1000, "reward_rate": -0.5})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// WALLET, BADGES, LEADERBOARD
// =============================================================================

func TestAPI_WalletCreateTwice(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, "alice", http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, "alice", http.MethodPost, "/api/wallet", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, decode[api.WalletDTO](t, rec).Created)

	rec = s.do(t, "alice", http.MethodPost, "/api/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	w := decode[api.WalletDTO](t, rec)
	assert.False(t, w.Created)
	assert.Equal(t, "Wallet already exists.", w.Message)

	rec = s.do(t, "alice", http.MethodGet, "/api/wallet/balance", nil)
	assert.Equal(t, uint64(0), decode[api.BalanceDTO](t, rec).Tokens)
}

func TestAPI_Badges(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := s.do(t, "alice", http.MethodPost, "/api/badges",
			map[string]string{"name": "Staking Master", "description": "Staked for 30 days"})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Badge awarded!", decode[api.MessageDTO](t, rec).Message)
	}

	rec := s.do(t, "alice", http.MethodGet, "/api/badges", nil)
	assert.Len(t, decode[[]api.BadgeDTO](t, rec), 2)

	rec = s.do(t, "bob", http.MethodGet, "/api/badges", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestAPI_Leaderboard(t *testing.T) {
	s := newTestServer(t)

	s.do(t, "alice", http.MethodPost, "/api/leaderboard/score", map[string]uint64{"score": 5})
	rec := s.do(t, "alice", http.MethodPost, "/api/leaderboard/score", map[string]uint64{"score": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(8), decode[api.ScoreDTO](t, rec).Score)
	s.do(t, "bob", http.MethodPost, "/api/leaderboard/score", map[string]uint64{"score": 20})

	rec = s.do(t, "carol", http.MethodGet, "/api/leaderboard", nil)
	assert.Equal(t, []api.LeaderboardEntryDTO{
		{Identity: "alice", Score: 8},
		{Identity: "bob", Score: 20},
	}, decode[[]api.LeaderboardEntryDTO](t, rec))

	rec = s.do(t, "carol", http.MethodGet, "/api/leaderboard?ranked=true&limit=1", nil)
	assert.Equal(t, []api.LeaderboardEntryDTO{
		{Identity: "bob", Score: 20},
	}, decode[[]api.LeaderboardEntryDTO](t, rec))

	rec = s.do(t, "carol", http.MethodGet, "/api/leaderboard?ranked=true&limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_RefusedReadsAreCounted(t *testing.T) {
	s := newTestServer(t)
	s.do(t, "root", http.MethodPost, "/api/users", map[string]string{"role": "admin"})

	snapshotErrors := metrics.OperationsTotal.WithLabelValues("leaderboard", "snapshot", metrics.OutcomeError)
	auditErrors := metrics.OperationsTotal.WithLabelValues("audit", "list", metrics.OutcomeError)
	beforeSnapshot := testutil.ToFloat64(snapshotErrors)
	beforeAudit := testutil.ToFloat64(auditErrors)

	// WHEN: both limit parsers reject their input
	rec := s.do(t, "carol", http.MethodGet, "/api/leaderboard?ranked=true&limit=x", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, "root", http.MethodGet, "/api/audit?limit=-3", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// THEN: each refusal reaches the operation metrics
	assert.Equal(t, beforeSnapshot+1, testutil.ToFloat64(snapshotErrors))
	assert.Equal(t, beforeAudit+1, testutil.ToFloat64(auditErrors))
}

func TestAPI_ListAuditWithoutAuditLog(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	state := app.NewState()
	require.NoError(t, state.Roles.Register("root", "admin"))
	router := api.NewRouter(api.NewHandler(state, nil, nil, log), api.HeaderResolver{}, nil)

	okCount := metrics.OperationsTotal.WithLabelValues("audit", "list", metrics.OutcomeOK)
	before := testutil.ToFloat64(okCount)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	req.Header.Set(api.CallerHeader, "root")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(okCount))
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAPI_AuditRecordsWritesOnly(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	s.do(t, "root", http.MethodPost, "/api/users", map[string]string{"role": "admin"})
	s.do(t, "root", http.MethodPost, "/api/users", map[string]string{"role": "admin"})
	s.do(t, "root", http.MethodGet, "/api/users/me/role", nil)
	s.do(t, "alice", http.MethodPost, "/api/leaderboard/score", map[string]uint64{"score": 1})

	n, err := s.audit.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n, "two registrations and one score update; reads are not audited")

	rec := s.do(t, "root", http.MethodGet, "/api/audit?caller=root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]api.AuditEntryDTO](t, rec)
	require.Len(t, entries, 2)
	assert.Equal(t, "ok", entries[0].Outcome)
	assert.Equal(t, "User already registered.", entries[1].Outcome)
	assert.Equal(t, string(generic.AuditUserRegistered), entries[1].Action)

	rec = s.do(t, "alice", http.MethodGet, "/api/audit", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
