package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"conductor/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseConfig = `
app:
  log_level: warn
  http_addr: ""
store:
  path: {{DB}}
orchestrator:
  cycle_delay: 1s
  parallel: false
optimization:
  enabled: true
modules:
  - name: alpha
    symbols: [aapl, msft]
    confidence_threshold: 0.7
    params:
      risk_multiplier: 1.2
  - name: beta
    enabled: false
`

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingNotifier) SendText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingNotifier) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func writeConfig(t *testing.T, dir, body string) *config.Config {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body = strings.ReplaceAll(body, "{{DB}}", filepath.Join(dir, "data", "conductor.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func buildTestApp(t *testing.T, cfg *config.Config, n *recordingNotifier) *App {
	t.Helper()
	a, err := NewApp(cfg, WithNotifier(n), WithSeed(1))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestBuildWiresModulesFromConfig(t *testing.T) {
	dir := t.TempDir()
	a := buildTestApp(t, writeConfig(t, dir, baseConfig), &recordingNotifier{})
	orch := a.Orchestrator()
	require.NotNil(t, orch)
	assert.Nil(t, a.server, "empty http_addr disables the operator api")

	st := orch.GetStatus()
	require.Len(t, st.Modules, 2)
	alpha := st.Modules[0]
	assert.Equal(t, "alpha", alpha.Name)
	assert.True(t, alpha.Enabled)
	assert.Equal(t, 0.7, alpha.Config.ConfidenceThreshold)
	assert.Equal(t, 1.2, alpha.Config.Params["risk_multiplier"])
	assert.False(t, st.Modules[1].Enabled)
	assert.True(t, st.OptimizationEnabled)
	assert.True(t, st.PersistenceConnected)
	require.Len(t, orch.ActiveModules(), 1)

	res := orch.RunCycle(context.Background())
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Summary.ModulesRun)

	params, err := a.store.GetCurrentModuleParameters(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, 0.7, params["confidence_threshold"])
	assert.FileExists(t, filepath.Join(dir, "data", "conductor.db"))
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, baseConfig)
	cfg.Modules[0].Kind = "martingale"
	_, err := NewApp(cfg, WithNotifier(&recordingNotifier{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown module kind "martingale"`)
}

func TestReloadAppliesOnlyFileChanges(t *testing.T) {
	dir := t.TempDir()
	a := buildTestApp(t, writeConfig(t, dir, baseConfig), &recordingNotifier{})
	orch := a.Orchestrator()
	ctx := context.Background()

	// Simulates a value the optimizer moved after startup.
	require.NoError(t, orch.UpdateModuleConfig(ctx, "alpha", map[string]any{"risk_multiplier": 1.5}))

	next := strings.NewReplacer(
		"confidence_threshold: 0.7", "confidence_threshold: 0.8",
		"    enabled: false", "    enabled: true",
		"optimization:\n  enabled: true", "optimization:\n  enabled: false",
	).Replace(baseConfig) + "  - name: gamma\n    symbols: [tsla]\n"
	a.Reload(ctx, writeConfig(t, dir, next))

	alpha, ok := orch.Registry().Get("alpha")
	require.True(t, ok)
	assert.Equal(t, 0.8, alpha.Config().ConfidenceThreshold)
	assert.Equal(t, 1.5, alpha.Config().Params["risk_multiplier"])

	beta, _ := orch.Registry().Get("beta")
	assert.True(t, beta.Enabled())
	_, ok = orch.Registry().Get("gamma")
	assert.True(t, ok)
	assert.Len(t, orch.ActiveModules(), 3)
	assert.False(t, orch.GetStatus().OptimizationEnabled)

	// Dropping a module from the file disables it.
	a.Reload(ctx, writeConfig(t, dir, baseConfig))
	gamma, _ := orch.Registry().Get("gamma")
	assert.False(t, gamma.Enabled())
}

func TestConfigChanges(t *testing.T) {
	old := config.ModuleConfig{Name: "m", ConfidenceThreshold: 0.6, Params: map[string]any{"a": 1, "b": "x"}}
	next := config.ModuleConfig{Name: "m", ConfidenceThreshold: 0.6, Params: map[string]any{"a": 2, "c": true}}
	got := configChanges(old, next)
	assert.Equal(t, map[string]any{"a": 2.0, "b": nil, "c": true}, got)
	assert.Empty(t, configChanges(old, old))
}

func TestSafetyTripIsNotified(t *testing.T) {
	n := &recordingNotifier{}
	a := buildTestApp(t, writeConfig(t, t.TempDir(), baseConfig), n)
	a.Orchestrator().TriggerEmergencyStop("drill")

	assert.Eventually(t, func() bool {
		for _, text := range n.all() {
			if strings.Contains(text, "emergency stop: drill") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSummaryRender(t *testing.T) {
	a := buildTestApp(t, writeConfig(t, t.TempDir(), baseConfig), &recordingNotifier{})
	var buf bytes.Buffer
	a.Summary.Render(&buf)
	out := buf.String()
	assert.Contains(t, out, "STARTUP SUMMARY")
	assert.Contains(t, out, "> alpha (idle, enabled)")
	assert.Contains(t, out, "symbols: AAPL, MSFT")
	assert.Contains(t, out, "> beta (idle, disabled)")
	assert.Contains(t, out, "confidence_threshold [0.4, 0.9]")
	assert.Contains(t, out, "operator api: -")
}

func TestRunStopsWithContext(t *testing.T) {
	a := buildTestApp(t, writeConfig(t, t.TempDir(), baseConfig), &recordingNotifier{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Orchestrator().GetStatus().Cycles >= 1 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
