package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conductor/internal/config"
	"conductor/internal/gateway/notifier"
	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/optimizer"
	"conductor/internal/optimizer/bayes"
	"conductor/internal/orchestrator"
	"conductor/internal/pkg/circuit"
	"conductor/internal/ports"
	"conductor/internal/registry"
	"conductor/internal/store/sqlite"
	"conductor/internal/types"
	operatorhttp "conductor/internal/transport/http/operator"
)

type AppBuilder struct {
	cfg        *config.Config
	configPath string
	factories  *module.Factories
	risk       ports.RiskChecker
	orders     ports.OrderExecutor

	storeFn    func(path string) (persistence, error)
	notifierFn func(config.NotifyConfig) notifier.TextNotifier
	seed       int64
}

// persistence is what the builder needs from a store: the port plus Close.
type persistence interface {
	ports.Persistence
	io.Closer
}

type AppBuilderOption func(*AppBuilder)

// WithConfigPath enables hot reload of the given file.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.configPath = path }
}

// WithFactories replaces the module kinds available to the config file.
func WithFactories(f *module.Factories) AppBuilderOption {
	return func(b *AppBuilder) { b.factories = f }
}

// WithBroker hands every module a risk checker and an order executor.
func WithBroker(risk ports.RiskChecker, orders ports.OrderExecutor) AppBuilderOption {
	return func(b *AppBuilder) {
		b.risk = risk
		b.orders = orders
	}
}

func WithNotifier(n notifier.TextNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) notifier.TextNotifier { return n }
	}
}

// WithSeed fixes the Bayesian optimizer's random source.
func WithSeed(seed int64) AppBuilderOption {
	return func(b *AppBuilder) { b.seed = seed }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    openStore,
		notifierFn: newNotifier,
		seed:       time.Now().UnixNano(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	if b.factories == nil {
		b.factories = module.NewFactories()
		b.factories.RegisterDefaults()
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	closers, err := configureLogging(cfg.App)
	if err != nil {
		return nil, err
	}
	app := &App{cfg: cfg, configPath: b.configPath, factories: b.factories, closers: closers}

	store, err := b.storeFn(cfg.Store.Path)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	app.store = store
	app.closers = append(app.closers, store)
	logger.Infof("✓ store ready at %s", cfg.Store.Path)

	notify := b.notifierFn(cfg.Notify)
	breaker := circuit.NewSafetyBreaker(safetyConfig(cfg.Safety))
	breaker.SetStateChangeHandler(func(from, to circuit.SafetyState, reason string) {
		notifier.Deliver(notify, notifier.SafetyMessage(from, to, reason, breaker.Status(), time.Now()))
	})

	tunables := buildTunables(cfg.Optimization)
	tuner := optimizer.NewParameterOptimizer(store, tunables, bayes.New(b.seed), optimizerSettings(cfg.Optimization))
	engine := optimizer.NewEngine(optimizer.EngineParams{
		Tuner:              tuner,
		Recorder:           store,
		MinConfidence:      cfg.Optimization.MinConfidence,
		MaxChangesPerCycle: cfg.Optimization.MaxChangesPerCycle,
		Enabled:            cfg.Optimization.Enabled,
		OnApplied: func(rec types.OptimizationRecord) {
			go notifier.Deliver(notify, notifier.OptimizationMessage(rec))
		},
	})

	orch := orchestrator.New(orchestrator.Params{
		Registry:    registry.New(),
		Breaker:     breaker,
		Persistence: store,
		Optimizer:   engine,
		Options:     orchestratorOptions(cfg.Orchestrator, cfg.Safety),
	})
	engine.SetSource(orch)
	app.orch = orch
	app.deps = module.Deps{Persistence: store, Risk: b.risk, Orders: b.orders}

	for _, mc := range cfg.Modules {
		if err := app.addModule(ctx, mc); err != nil {
			app.Close()
			return nil, err
		}
	}
	logger.Infof("✓ registered %d modules (kinds: %s)", len(cfg.Modules), strings.Join(b.factories.Kinds(), ", "))

	if addr := strings.TrimSpace(cfg.App.HTTPAddr); addr != "" {
		var history operatorhttp.CycleHistory
		if h, ok := store.(operatorhttp.CycleHistory); ok {
			history = h
		}
		srv, err := operatorhttp.NewServer(operatorhttp.ServerConfig{
			Addr:         addr,
			Controller:   orch,
			History:      history,
			ConfigSchema: tunables.ConfigSchema(),
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("build operator api: %w", err)
		}
		app.server = srv
	}

	app.Summary = buildSummary(cfg, b.factories.Kinds())
	return app, nil
}

func openStore(path string) (persistence, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	s, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func newNotifier(cfg config.NotifyConfig) notifier.TextNotifier {
	if !cfg.Telegram.Enabled {
		return notifier.Nop{}
	}
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

// configureLogging applies level, format and file sinks. The returned
// closers own the opened files.
func configureLogging(cfg config.AppConfig) ([]io.Closer, error) {
	logger.SetLevel(cfg.LogLevel)
	logger.SetFormat(cfg.LogFormat)
	var closers []io.Closer
	if path := strings.TrimSpace(cfg.LogPath); path != "" {
		f, err := openAppend(path)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		closers = append(closers, f)
		logger.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	if path := strings.TrimSpace(cfg.AuditLogPath); path != "" {
		f, err := openAppend(path)
		if err != nil {
			closeAll(closers)
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		closers = append(closers, f)
		logger.SetAuditWriter(f)
	}
	return closers, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warnf("close: %v", err)
		}
	}
}

func safetyConfig(c config.SafetyConfig) circuit.SafetyConfig {
	return circuit.SafetyConfig{
		MaxTrades:   c.MaxTradesPerWindow,
		TradeWindow: c.TradeWindow,
		MaxLoss:     c.MaxLossPerWindow,
		LossWindow:  c.LossWindow,
	}
}

func orchestratorOptions(o config.OrchestratorConfig, s config.SafetyConfig) orchestrator.Options {
	return orchestrator.Options{
		Parallel:                 o.Parallel,
		MaxConcurrency:           o.MaxConcurrency,
		ModuleTimeout:            o.ModuleTimeout,
		CycleDelay:               o.CycleDelay,
		OptimizeEvery:            o.OptimizeEveryNCycles,
		LossPerFailedTrade:       s.LossPerFailedTrade,
		LossPerUnprofitableTrade: s.LossPerUnprofitableTrade,
	}
}

func optimizerSettings(o config.OptimizationConfig) optimizer.Settings {
	s := optimizer.DefaultSettings()
	s.Cooldown = o.Cooldown
	s.MinSamples = o.MinSamples
	s.LookbackDays = o.LookbackDays
	s.MinDelta = o.MinDelta
	s.MinImprovement = o.MinImprovement
	s.MaxConfidence = o.MaxConfidence
	return s
}

func buildTunables(o config.OptimizationConfig) *optimizer.Tunables {
	list := make([]optimizer.Tunable, 0, len(o.Tunables))
	for _, t := range o.Tunables {
		kind := optimizer.KindDiscrete
		if t.Continuous() {
			kind = optimizer.KindContinuous
		}
		list = append(list, optimizer.Tunable{Name: t.Name, Kind: kind, Lower: t.Lower, Upper: t.Upper})
	}
	return optimizer.NewTunables(list, o.DiscoverByName)
}

// moduleConfig maps a file entry onto the live module configuration.
func moduleConfig(mc config.ModuleConfig) (module.Config, error) {
	cfg := module.DefaultConfig()
	if mc.AllocationLimit > 0 {
		cfg.AllocationLimit = mc.AllocationLimit
	}
	if mc.ConfidenceThreshold > 0 {
		cfg.ConfidenceThreshold = mc.ConfidenceThreshold
	}
	if mc.MaxPositions > 0 {
		cfg.MaxPositions = mc.MaxPositions
	}
	cfg.MaxPositionSize = mc.MaxPositionSize
	if err := cfg.Merge(mc.Params); err != nil {
		return module.Config{}, fmt.Errorf("module %s params: %w", mc.Name, err)
	}
	return cfg, nil
}
