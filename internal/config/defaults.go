package config

import (
	"fmt"
	"strings"
	"time"

	"conductor/internal/pkg/symbol"
)

const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppLogFormat = "console"
	defaultAppHTTPAddr  = ":9991"

	defaultMaxConcurrency = 3
	defaultModuleTimeout  = 300 * time.Second
	defaultCycleDelay     = 120 * time.Second
	defaultOptimizeEvery  = 10

	defaultMaxTrades        = 8
	defaultTradeWindow      = 5 * time.Minute
	defaultMaxLoss          = 5000.0
	defaultLossWindow       = 10 * time.Minute
	defaultLossFailed       = 100.0
	defaultLossUnprofitable = 50.0

	defaultCooldown       = 6 * time.Hour
	defaultMinSamples     = 10
	defaultLookbackDays   = 7
	defaultMinDelta       = 0.05
	defaultMinImprovement = 0.02
	defaultMinConfidence  = 0.6
	defaultMaxChanges     = 3
	defaultMaxConfidence  = 0.85

	defaultStorePath  = "data/conductor.db"
	defaultModuleKind = "idle"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Orchestrator.applyDefaults(keys)
	c.Safety.applyDefaults(keys)
	c.Optimization.applyDefaults(keys)
	applyFieldDefaults(keys, stringFieldDefault("store.path", &c.Store.Path, defaultStorePath))
	for i := range c.Modules {
		c.Modules[i].applyDefaults(keys, i)
	}
}

func (a *AppConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (o *OrchestratorConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("orchestrator.parallel", &o.Parallel, true),
		intFieldDefault("orchestrator.max_concurrency", &o.MaxConcurrency, defaultMaxConcurrency),
		durationFieldDefault("orchestrator.module_timeout", &o.ModuleTimeout, defaultModuleTimeout),
		durationFieldDefault("orchestrator.cycle_delay", &o.CycleDelay, defaultCycleDelay),
		intFieldDefault("orchestrator.optimize_every_n_cycles", &o.OptimizeEveryNCycles, defaultOptimizeEvery),
	)
}

func (s *SafetyConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		intFieldDefault("safety.max_trades_per_window", &s.MaxTradesPerWindow, defaultMaxTrades),
		durationFieldDefault("safety.trade_window", &s.TradeWindow, defaultTradeWindow),
		floatFieldDefault("safety.max_loss_per_window", &s.MaxLossPerWindow, defaultMaxLoss),
		durationFieldDefault("safety.loss_window", &s.LossWindow, defaultLossWindow),
		floatFieldDefault("safety.loss_per_failed_trade", &s.LossPerFailedTrade, defaultLossFailed),
		floatFieldDefault("safety.loss_per_unprofitable_trade", &s.LossPerUnprofitableTrade, defaultLossUnprofitable),
	)
}

func (o *OptimizationConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		boolFieldDefault("optimization.enabled", &o.Enabled, true),
		durationFieldDefault("optimization.cooldown", &o.Cooldown, defaultCooldown),
		intFieldDefault("optimization.min_samples", &o.MinSamples, defaultMinSamples),
		intFieldDefault("optimization.lookback_days", &o.LookbackDays, defaultLookbackDays),
		floatFieldDefault("optimization.min_delta", &o.MinDelta, defaultMinDelta),
		floatFieldDefault("optimization.min_improvement", &o.MinImprovement, defaultMinImprovement),
		floatFieldDefault("optimization.min_confidence", &o.MinConfidence, defaultMinConfidence),
		intFieldDefault("optimization.max_changes_per_cycle", &o.MaxChangesPerCycle, defaultMaxChanges),
		floatFieldDefault("optimization.max_confidence", &o.MaxConfidence, defaultMaxConfidence),
		boolFieldDefault("optimization.discover_by_name", &o.DiscoverByName, true),
		fieldDefault{
			key:  "optimization.tunables",
			need: func() bool { return len(o.Tunables) == 0 && strings.TrimSpace(o.TunablesPath) == "" },
			apply: func() {
				o.Tunables = DefaultTunables()
			},
		},
	)
}

// DefaultTunables is used when neither tunables nor tunables_path is set.
func DefaultTunables() []TunableConfig {
	return []TunableConfig{
		{Name: "confidence_threshold", Kind: TunableContinuous, Lower: 0.4, Upper: 0.9},
	}
}

// Module entries are keyed by list position, which viper flattens away, so
// only zero values are filled in here.
func (m *ModuleConfig) applyDefaults(_ keySet, _ int) {
	m.Name = strings.TrimSpace(m.Name)
	if strings.TrimSpace(m.Kind) == "" {
		m.Kind = defaultModuleKind
	}
	if m.ConfidenceThreshold <= 0 {
		m.ConfidenceThreshold = 0.6
	}
	if m.MaxPositions <= 0 {
		m.MaxPositions = 5
	}
	m.Symbols = symbol.NormalizeList(m.Symbols)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return strings.TrimSpace(*target) == "" },
		apply: func() { *target = def },
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:   key,
		apply: func() { *target = def },
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func durationFieldDefault(key string, target *time.Duration, def time.Duration) fieldDefault {
	return fieldDefault{
		key:   key,
		need:  func() bool { return *target <= 0 },
		apply: func() { *target = def },
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("env=%s modules=%d parallel=%v cycle_delay=%s", c.App.Env, len(c.Modules), c.Orchestrator.Parallel, c.Orchestrator.CycleDelay)
}
