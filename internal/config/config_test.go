package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
modules:
  - name: equities
    symbols: [aapl, " msft "]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9991", cfg.App.HTTPAddr)
	assert.True(t, cfg.Orchestrator.Parallel)
	assert.Equal(t, 3, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 300*time.Second, cfg.Orchestrator.ModuleTimeout)
	assert.Equal(t, 120*time.Second, cfg.Orchestrator.CycleDelay)
	assert.Equal(t, 10, cfg.Orchestrator.OptimizeEveryNCycles)

	assert.Equal(t, 8, cfg.Safety.MaxTradesPerWindow)
	assert.Equal(t, 5*time.Minute, cfg.Safety.TradeWindow)
	assert.Equal(t, 5000.0, cfg.Safety.MaxLossPerWindow)
	assert.Equal(t, 10*time.Minute, cfg.Safety.LossWindow)
	assert.Equal(t, 100.0, cfg.Safety.LossPerFailedTrade)
	assert.Equal(t, 50.0, cfg.Safety.LossPerUnprofitableTrade)

	assert.True(t, cfg.Optimization.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Optimization.Cooldown)
	assert.Equal(t, 0.6, cfg.Optimization.MinConfidence)
	assert.Equal(t, 3, cfg.Optimization.MaxChangesPerCycle)
	assert.Equal(t, DefaultTunables(), cfg.Optimization.Tunables)

	require.Len(t, cfg.Modules, 1)
	m := cfg.Modules[0]
	assert.Equal(t, "idle", m.Kind)
	assert.True(t, m.IsEnabled())
	assert.Equal(t, []string{"AAPL", "MSFT"}, m.Symbols)
	assert.Equal(t, 0.6, m.ConfidenceThreshold)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
orchestrator:
  parallel: false
  cycle_delay: 30s
  max_concurrency: 5
optimization:
  enabled: false
  discover_by_name: false
modules:
  - name: options
    kind: idle
    enabled: false
    confidence_threshold: 0.75
    params:
      momentum_weight: 1.5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Orchestrator.Parallel)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.CycleDelay)
	assert.Equal(t, 5, cfg.Orchestrator.MaxConcurrency)
	assert.False(t, cfg.Optimization.Enabled)
	assert.False(t, cfg.Optimization.DiscoverByName)

	m, ok := cfg.Module("options")
	require.True(t, ok)
	assert.False(t, m.IsEnabled())
	assert.Equal(t, 0.75, m.ConfidenceThreshold)
	assert.Equal(t, 1.5, m.Params["momentum_weight"])
}

func TestLoadMergesIncludesAndTunablesFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
app:
  http_addr: ":8080"
safety:
  max_trades_per_window: 4
`)
	writeFile(t, dir, "tunables.yaml", `
tunables:
  - name: confidence_threshold
    kind: continuous
    lower: 0.5
    upper: 0.8
  - name: strategy_variant
    kind: discrete
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
safety:
  max_trades_per_window: 6
optimization:
  tunables_path: tunables.yaml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, 6, cfg.Safety.MaxTradesPerWindow)
	require.Len(t, cfg.Optimization.Tunables, 2)
	assert.Equal(t, 0.5, cfg.Optimization.Tunables[0].Lower)
	assert.True(t, cfg.Optimization.Tunables[0].Continuous())
	assert.False(t, cfg.Optimization.Tunables[1].Continuous())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"duplicate module": `
modules:
  - name: a
  - name: a
`,
		"bad tunable bounds": `
optimization:
  tunables:
    - name: weight
      kind: continuous
      lower: 2
      upper: 1
`,
		"telegram without token": `
notify:
  telegram:
    enabled: true
`,
		"threshold above one": `
modules:
  - name: a
    confidence_threshold: 1.2
`,
		"include cycle": `
include:
  - config.yaml
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadTunablesRejectsUnknownFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tunables.yaml", `
tunables:
  - name: weight
    kind: continuous
    lower: 0
    upper: 1
    step: 0.1
`)
	_, err := LoadTunables(path)
	assert.Error(t, err)
}
