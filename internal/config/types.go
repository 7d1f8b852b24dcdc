package config

import (
	"strings"
	"time"
)

// Config is the root of the YAML configuration file.
type Config struct {
	App          AppConfig          `toml:"app"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Safety       SafetyConfig       `toml:"safety"`
	Optimization OptimizationConfig `toml:"optimization"`
	Store        StoreConfig        `toml:"store"`
	Notify       NotifyConfig       `toml:"notify"`
	Modules      []ModuleConfig     `toml:"modules"`
}

type AppConfig struct {
	Env          string `toml:"env"`
	LogLevel     string `toml:"log_level"`
	LogFormat    string `toml:"log_format"`
	HTTPAddr     string `toml:"http_addr"`
	LogPath      string `toml:"log_path"`
	AuditLogPath string `toml:"audit_log_path"`
}

type OrchestratorConfig struct {
	Parallel             bool          `toml:"parallel"`
	MaxConcurrency       int           `toml:"max_concurrency"`
	ModuleTimeout        time.Duration `toml:"module_timeout"`
	CycleDelay           time.Duration `toml:"cycle_delay"`
	OptimizeEveryNCycles int           `toml:"optimize_every_n_cycles"`
}

type SafetyConfig struct {
	MaxTradesPerWindow       int           `toml:"max_trades_per_window"`
	TradeWindow              time.Duration `toml:"trade_window"`
	MaxLossPerWindow         float64       `toml:"max_loss_per_window"`
	LossWindow               time.Duration `toml:"loss_window"`
	LossPerFailedTrade       float64       `toml:"loss_per_failed_trade"`
	LossPerUnprofitableTrade float64       `toml:"loss_per_unprofitable_trade"`
}

type OptimizationConfig struct {
	Enabled            bool            `toml:"enabled"`
	Cooldown           time.Duration   `toml:"cooldown"`
	MinSamples         int             `toml:"min_samples"`
	LookbackDays       int             `toml:"lookback_days"`
	MinDelta           float64         `toml:"min_delta"`
	MinImprovement     float64         `toml:"min_improvement"`
	MinConfidence      float64         `toml:"min_confidence"`
	MaxChangesPerCycle int             `toml:"max_changes_per_cycle"`
	MaxConfidence      float64         `toml:"max_confidence"`
	DiscoverByName     bool            `toml:"discover_by_name"`
	TunablesPath       string          `toml:"tunables_path"`
	Tunables           []TunableConfig `toml:"tunables"`
}

// TunableConfig declares one optimisable parameter. Continuous tunables
// carry bounds; discrete ones are searched over observed values.
type TunableConfig struct {
	Name  string  `toml:"name" yaml:"name"`
	Kind  string  `toml:"kind" yaml:"kind"`
	Lower float64 `toml:"lower" yaml:"lower"`
	Upper float64 `toml:"upper" yaml:"upper"`
}

const (
	TunableContinuous = "continuous"
	TunableDiscrete   = "discrete"
)

func (t TunableConfig) Continuous() bool {
	return strings.EqualFold(strings.TrimSpace(t.Kind), TunableContinuous)
}

type StoreConfig struct {
	Path string `toml:"path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// ModuleConfig declares one module instance.
type ModuleConfig struct {
	Name                string         `toml:"name"`
	Kind                string         `toml:"kind"`
	Enabled             *bool          `toml:"enabled"`
	Symbols             []string       `toml:"symbols"`
	AllocationLimit     float64        `toml:"allocation_limit"`
	ConfidenceThreshold float64        `toml:"confidence_threshold"`
	MaxPositions        int            `toml:"max_positions"`
	MaxPositionSize     float64        `toml:"max_position_size"`
	Params              map[string]any `toml:"params"`
}

// IsEnabled defaults to true when the entry omits enabled.
func (m ModuleConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// Module returns the module declared under name.
func (c *Config) Module(name string) (ModuleConfig, bool) {
	for _, m := range c.Modules {
		if m.Name == name {
			return m, true
		}
	}
	return ModuleConfig{}, false
}

// keySet tracks the key paths explicitly present in the file, so defaults
// never override a deliberate zero or false.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
