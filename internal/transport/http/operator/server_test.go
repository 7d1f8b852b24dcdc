package operatorhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"conductor/internal/optimizer"
	"conductor/internal/orchestrator"
	"conductor/internal/pkg/circuit"
	"conductor/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockController struct {
	mock.Mock
}

func (m *MockController) GetStatus() orchestrator.Status {
	return m.Called().Get(0).(orchestrator.Status)
}

func (m *MockController) GetSafetyStatus() circuit.SafetyStatus {
	return m.Called().Get(0).(circuit.SafetyStatus)
}

func (m *MockController) TriggerEmergencyStop(reason string) { m.Called(reason) }

func (m *MockController) ResetCircuitBreaker() { m.Called() }

func (m *MockController) EnableModule(name string) error { return m.Called(name).Error(0) }

func (m *MockController) DisableModule(name string) error { return m.Called(name).Error(0) }

func (m *MockController) UpdateModuleConfig(ctx context.Context, name string, values map[string]any) error {
	return m.Called(ctx, name, values).Error(0)
}

func (m *MockController) ResetModuleHealth(name string) error { return m.Called(name).Error(0) }

func (m *MockController) EnableOptimization() { m.Called() }

func (m *MockController) DisableOptimization() { m.Called() }

func (m *MockController) RunOptimization(ctx context.Context) types.OptimizationSummary {
	return m.Called(ctx).Get(0).(types.OptimizationSummary)
}

func (m *MockController) LastCycle() (types.CycleResult, bool) {
	args := m.Called()
	return args.Get(0).(types.CycleResult), args.Bool(1)
}

type staticHistory []types.CycleResult

func (h staticHistory) CycleHistory(_ context.Context, limit int) ([]types.CycleResult, error) {
	if limit < len(h) {
		return h[:limit], nil
	}
	return h, nil
}

func newTestServer(t *testing.T, ctl *MockController, history CycleHistory) http.Handler {
	t.Helper()
	tunables := optimizer.NewTunables([]optimizer.Tunable{
		{Name: "risk_multiplier", Kind: optimizer.KindContinuous, Lower: 0.5, Upper: 2},
	}, true)
	srv, err := NewServer(ServerConfig{Controller: ctl, History: history, ConfigSchema: tunables.ConfigSchema()})
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestNewServerRequiresController(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestHealthAndStatus(t *testing.T) {
	ctl := &MockController{}
	ctl.On("GetStatus").Return(orchestrator.Status{Running: true, Cycles: 7})
	h := newTestServer(t, ctl, nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/healthz", "").Code)

	w := do(h, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, true, st["running"])
	assert.Equal(t, 7.0, st["cycles"])
}

func TestSafetyRoutes(t *testing.T) {
	ctl := &MockController{}
	tripped := circuit.SafetyStatus{State: circuit.StateTripped, Active: true, Reason: "emergency stop: drawdown"}
	ctl.On("TriggerEmergencyStop", "drawdown").Once()
	ctl.On("ResetCircuitBreaker").Once()
	ctl.On("GetSafetyStatus").Return(tripped)
	h := newTestServer(t, ctl, nil)

	w := do(h, http.MethodPost, "/api/safety/emergency-stop", `{"reason":"drawdown"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":true`)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/safety/reset", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/safety", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/safety/emergency-stop", `{"reason":`).Code)
	ctl.AssertExpectations(t)
}

func TestModuleRoutes(t *testing.T) {
	ctl := &MockController{}
	ctl.On("EnableModule", "alpha").Return(nil)
	ctl.On("DisableModule", "ghost").Return(fmt.Errorf("%w: ghost", orchestrator.ErrUnknownModule))
	ctl.On("ResetModuleHealth", "alpha").Return(nil)
	h := newTestServer(t, ctl, nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/modules/alpha/enable", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodPost, "/api/modules/ghost/disable", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/modules/alpha/health/reset", "").Code)
	ctl.AssertExpectations(t)
}

func TestUpdateConfigValidatesBody(t *testing.T) {
	ctl := &MockController{}
	ctl.On("UpdateModuleConfig", mock.Anything, "alpha", mock.MatchedBy(func(v map[string]any) bool {
		return v["confidence_threshold"] == json.Number("0.7") && v["risk_multiplier"] == json.Number("1.5")
	})).Return(nil).Once()
	ctl.On("UpdateModuleConfig", mock.Anything, "alpha", mock.Anything).Return(errors.New("rejected")).Once()
	h := newTestServer(t, ctl, nil)

	w := do(h, http.MethodPut, "/api/modules/alpha/config", `{"confidence_threshold":0.7,"risk_multiplier":1.5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, body := range []string{
		`{"confidence_threshold":1.5}`,
		`{"max_positions":2.5}`,
		`{"risk_multiplier":9}`,
		`{"nested":{"a":1}}`,
		`{}`,
		`[1,2]`,
		`not json`,
	} {
		assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPut, "/api/modules/alpha/config", body).Code, body)
	}

	w = do(h, http.MethodPut, "/api/modules/alpha/config", `{"style":"aggressive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "rejected")
	ctl.AssertNumberOfCalls(t, "UpdateModuleConfig", 2)
}

func TestCycleRoutes(t *testing.T) {
	ctl := &MockController{}
	ctl.On("LastCycle").Return(types.CycleResult{}, false).Once()
	ctl.On("LastCycle").Return(types.CycleResult{ID: "c-2", Number: 2, Success: true}, true)
	history := staticHistory{{ID: "c-2", Number: 2}, {ID: "c-1", Number: 1}}
	h := newTestServer(t, ctl, history)

	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/cycles/last", "").Code)
	w := do(h, http.MethodGet, "/api/cycles/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"c-2"`)

	w = do(h, http.MethodGet, "/api/cycles?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Cycles []types.CycleResult `json:"cycles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Cycles, 1)
	assert.Equal(t, "c-2", body.Cycles[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/api/cycles?limit=-3", "").Code)
	assert.Equal(t, http.StatusNotImplemented, do(newTestServer(t, ctl, nil), http.MethodGet, "/api/cycles", "").Code)
}

func TestOptimizationRoutes(t *testing.T) {
	ctl := &MockController{}
	ctl.On("EnableOptimization").Once()
	ctl.On("DisableOptimization").Once()
	ctl.On("RunOptimization", mock.Anything).Return(types.OptimizationSummary{ModulesAnalyzed: 2, OptimizationsApplied: 1})
	h := newTestServer(t, ctl, nil)

	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/optimization/enable", "").Code)
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/optimization/disable", "").Code)
	w := do(h, http.MethodPost, "/api/optimization/run", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"optimizations_applied":1`)
	ctl.AssertExpectations(t)
}
