package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"conductor/internal/config"
	"conductor/internal/logger"
	"conductor/internal/module"
	"conductor/internal/orchestrator"
	operatorhttp "conductor/internal/transport/http/operator"

	"golang.org/x/sync/errgroup"
)

// App owns the wired orchestrator, its store and the operator API.
type App struct {
	configPath string
	factories  *module.Factories
	deps       module.Deps
	orch       *orchestrator.Orchestrator
	server     *operatorhttp.Server
	store      persistence
	closers    []io.Closer
	closeOnce  sync.Once
	Summary    *StartupSummary

	// cfgMu guards cfg, the last applied file configuration.
	cfgMu sync.Mutex
	cfg   *config.Config
}

// NewApp builds the application from cfg without starting it.
func NewApp(cfg *config.Config, opts ...AppBuilderOption) (*App, error) {
	return NewAppBuilder(cfg, opts...).Build(context.Background())
}

// Run starts the cycle loop, the operator API and, when a config path was
// given, the config watcher. It returns when ctx is done or a component fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.orch == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.configPath != "" {
		if err := config.Watch(a.configPath, func(next *config.Config) { a.Reload(ctx, next) }); err != nil {
			logger.Warnf("config hot reload disabled: %v", err)
		}
	}

	group, ctx := errgroup.WithContext(ctx)
	if a.server != nil {
		group.Go(func() error {
			if err := a.server.Start(ctx); err != nil {
				return fmt.Errorf("operator http server error: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		return a.orch.Run(ctx)
	})
	return group.Wait()
}

func (a *App) Orchestrator() *orchestrator.Orchestrator {
	if a == nil {
		return nil
	}
	return a.orch
}

// Close releases the store and log files. It is safe to call twice.
func (a *App) Close() {
	if a == nil {
		return
	}
	a.closeOnce.Do(func() {
		closeAll(a.closers)
		logger.Sync()
	})
}

func (a *App) addModule(ctx context.Context, mc config.ModuleConfig) error {
	cfg, err := moduleConfig(mc)
	if err != nil {
		return err
	}
	m, err := a.factories.Build(mc.Kind, module.Spec{
		Name:    mc.Name,
		Symbols: mc.Symbols,
		Config:  cfg,
		Deps:    a.deps,
	})
	if err != nil {
		return err
	}
	m.SetEnabled(mc.IsEnabled())
	a.orch.RegisterModule(ctx, m)
	logger.Infof("✓ module %s (%s) registered, enabled=%v", mc.Name, mc.Kind, mc.IsEnabled())
	return nil
}
