package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"conductor/internal/config"
)

type StartupSummary struct {
	Env          string
	HTTPAddr     string
	StorePath    string
	Kinds        []string
	Orchestrator config.OrchestratorConfig
	Safety       config.SafetyConfig
	Optimization OptimizationSummary
	Modules      []ModuleSummary
}

type OptimizationSummary struct {
	Enabled       bool
	MinConfidence float64
	MaxChanges    int
	Cooldown      string
	Tunables      []string
}

type ModuleSummary struct {
	Name      string
	Kind      string
	Enabled   bool
	Symbols   []string
	Threshold float64
	Params    int
}

func buildSummary(cfg *config.Config, kinds []string) *StartupSummary {
	s := &StartupSummary{
		Env:          cfg.App.Env,
		HTTPAddr:     cfg.App.HTTPAddr,
		StorePath:    cfg.Store.Path,
		Kinds:        kinds,
		Orchestrator: cfg.Orchestrator,
		Safety:       cfg.Safety,
		Optimization: OptimizationSummary{
			Enabled:       cfg.Optimization.Enabled,
			MinConfidence: cfg.Optimization.MinConfidence,
			MaxChanges:    cfg.Optimization.MaxChangesPerCycle,
			Cooldown:      cfg.Optimization.Cooldown.String(),
		},
	}
	for _, t := range cfg.Optimization.Tunables {
		if t.Continuous() {
			s.Optimization.Tunables = append(s.Optimization.Tunables, fmt.Sprintf("%s [%g, %g]", t.Name, t.Lower, t.Upper))
		} else {
			s.Optimization.Tunables = append(s.Optimization.Tunables, t.Name+" (discrete)")
		}
	}
	for _, m := range cfg.Modules {
		s.Modules = append(s.Modules, ModuleSummary{
			Name:      m.Name,
			Kind:      m.Kind,
			Enabled:   m.IsEnabled(),
			Symbols:   m.Symbols,
			Threshold: m.ConfidenceThreshold,
			Params:    len(m.Params),
		})
	}
	return s
}

func (s *StartupSummary) Print() {
	s.Render(os.Stdout)
}

func (s *StartupSummary) Render(w io.Writer) {
	title := "STARTUP SUMMARY"
	fmt.Fprintln(w, strings.Repeat("=", 80))
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, strings.Repeat("=", 80))

	fmt.Fprintln(w, "[RUNTIME]")
	fmt.Fprintf(w, "  env: %s\n", s.Env)
	fmt.Fprintf(w, "  operator api: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintf(w, "  store: %s\n", s.StorePath)
	fmt.Fprintf(w, "  module kinds: %s\n", formatList(s.Kinds))
	fmt.Fprintln(w)

	o := s.Orchestrator
	fmt.Fprintln(w, "[CYCLE]")
	fmt.Fprintf(w, "  parallel: %v (max %d)\n", o.Parallel, o.MaxConcurrency)
	fmt.Fprintf(w, "  module timeout: %s\n", o.ModuleTimeout)
	fmt.Fprintf(w, "  cycle delay: %s\n", o.CycleDelay)
	fmt.Fprintf(w, "  optimize every: %d cycles\n", o.OptimizeEveryNCycles)
	fmt.Fprintln(w)

	sf := s.Safety
	fmt.Fprintln(w, "[SAFETY]")
	fmt.Fprintf(w, "  trades: %d per %s\n", sf.MaxTradesPerWindow, sf.TradeWindow)
	fmt.Fprintf(w, "  loss: %.2f per %s\n", sf.MaxLossPerWindow, sf.LossWindow)
	fmt.Fprintln(w)

	op := s.Optimization
	fmt.Fprintln(w, "[OPTIMIZATION]")
	fmt.Fprintf(w, "  enabled: %v\n", op.Enabled)
	fmt.Fprintf(w, "  min confidence: %.2f, max changes: %d, cooldown: %s\n", op.MinConfidence, op.MaxChanges, op.Cooldown)
	fmt.Fprintf(w, "  tunables: %s\n", formatList(op.Tunables))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[MODULES]")
	if len(s.Modules) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	for _, m := range s.Modules {
		state := "enabled"
		if !m.Enabled {
			state = "disabled"
		}
		fmt.Fprintf(w, "  > %s (%s, %s)\n", m.Name, m.Kind, state)
		fmt.Fprintf(w, "    symbols: %s\n", formatList(m.Symbols))
		fmt.Fprintf(w, "    confidence threshold: %.2f, params: %d\n", m.Threshold, m.Params)
	}
	fmt.Fprintln(w, strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
