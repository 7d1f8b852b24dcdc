// Package operatorhttp serves the operator API: status, safety controls,
// module controls and optimization controls.
package operatorhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"conductor/internal/logger"
	"conductor/internal/orchestrator"
	"conductor/internal/pkg/circuit"
	"conductor/internal/types"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Controller is the orchestrator surface the API drives.
type Controller interface {
	GetStatus() orchestrator.Status
	GetSafetyStatus() circuit.SafetyStatus
	TriggerEmergencyStop(reason string)
	ResetCircuitBreaker()
	EnableModule(name string) error
	DisableModule(name string) error
	UpdateModuleConfig(ctx context.Context, name string, values map[string]any) error
	ResetModuleHealth(name string) error
	EnableOptimization()
	DisableOptimization()
	RunOptimization(ctx context.Context) types.OptimizationSummary
	LastCycle() (types.CycleResult, bool)
}

// CycleHistory lists stored cycles, newest first.
type CycleHistory interface {
	CycleHistory(ctx context.Context, limit int) ([]types.CycleResult, error)
}

type ServerConfig struct {
	Addr       string
	Controller Controller
	History    CycleHistory
	// ConfigSchema validates PUT /api/modules/:name/config bodies. Nil skips validation.
	ConfigSchema map[string]any
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("operator http server requires a controller")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	var schema *jsonschema.Schema
	if cfg.ConfigSchema != nil {
		compiled, err := compileSchema(cfg.ConfigSchema)
		if err != nil {
			return nil, err
		}
		schema = compiled
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h := &handler{ctl: cfg.Controller, history: cfg.History, schema: schema}
	h.register(router.Group("/api"))
	return &Server{addr: cfg.Addr, router: router}, nil
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("operator api listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
