package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Orchestrator.validate(); err != nil {
		return err
	}
	if err := c.Safety.validate(); err != nil {
		return err
	}
	if err := c.Optimization.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return validateModules(c.Modules)
}

func (a *AppConfig) validate() error {
	switch strings.ToLower(a.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("app.log_format must be console or json, got %q", a.LogFormat)
	}
	return nil
}

func (o *OrchestratorConfig) validate() error {
	if o.MaxConcurrency < 1 {
		return fmt.Errorf("orchestrator.max_concurrency must be >= 1")
	}
	if o.ModuleTimeout <= 0 {
		return fmt.Errorf("orchestrator.module_timeout must be > 0")
	}
	if o.CycleDelay < 0 {
		return fmt.Errorf("orchestrator.cycle_delay must be >= 0")
	}
	if o.OptimizeEveryNCycles < 0 {
		return fmt.Errorf("orchestrator.optimize_every_n_cycles must be >= 0")
	}
	return nil
}

func (s *SafetyConfig) validate() error {
	if s.MaxTradesPerWindow < 1 {
		return fmt.Errorf("safety.max_trades_per_window must be >= 1")
	}
	if s.TradeWindow <= 0 || s.LossWindow <= 0 {
		return fmt.Errorf("safety windows must be > 0")
	}
	if s.MaxLossPerWindow <= 0 {
		return fmt.Errorf("safety.max_loss_per_window must be > 0")
	}
	if s.LossPerFailedTrade < 0 || s.LossPerUnprofitableTrade < 0 {
		return fmt.Errorf("safety loss estimates must be >= 0")
	}
	return nil
}

func (o *OptimizationConfig) validate() error {
	if o.MinConfidence < 0 || o.MinConfidence > 1 {
		return fmt.Errorf("optimization.min_confidence must be in [0,1]")
	}
	if o.MaxConfidence <= 0 || o.MaxConfidence > 1 {
		return fmt.Errorf("optimization.max_confidence must be in (0,1]")
	}
	if o.MinSamples < 1 {
		return fmt.Errorf("optimization.min_samples must be >= 1")
	}
	if o.LookbackDays < 1 {
		return fmt.Errorf("optimization.lookback_days must be >= 1")
	}
	return validateTunables(o.Tunables)
}

func validateTunables(list []TunableConfig) error {
	seen := make(map[string]bool, len(list))
	for i, t := range list {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return fmt.Errorf("optimization.tunables[%d] missing name", i)
		}
		if seen[name] {
			return fmt.Errorf("optimization.tunables: duplicate %s", name)
		}
		seen[name] = true
		switch strings.ToLower(strings.TrimSpace(t.Kind)) {
		case TunableContinuous:
			if t.Lower >= t.Upper {
				return fmt.Errorf("optimization.tunables.%s: lower must be < upper", name)
			}
		case TunableDiscrete:
		default:
			return fmt.Errorf("optimization.tunables.%s: kind must be continuous or discrete", name)
		}
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	return nil
}

func validateModules(mods []ModuleConfig) error {
	seen := make(map[string]bool, len(mods))
	for i, m := range mods {
		if m.Name == "" {
			return fmt.Errorf("modules[%d] missing name", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("modules: duplicate name %s", m.Name)
		}
		seen[m.Name] = true
		if m.ConfidenceThreshold > 1 {
			return fmt.Errorf("modules.%s.confidence_threshold must be in [0,1]", m.Name)
		}
		if m.AllocationLimit < 0 || m.MaxPositionSize < 0 {
			return fmt.Errorf("modules.%s: limits must be >= 0", m.Name)
		}
	}
	return nil
}
