package operatorhttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"conductor/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const maxHistory = 200

type handler struct {
	ctl     Controller
	history CycleHistory
	schema  *jsonschema.Schema
}

func (h *handler) register(api *gin.RouterGroup) {
	api.GET("/status", h.status)
	api.GET("/cycles/last", h.lastCycle)
	api.GET("/cycles", h.cycles)

	safety := api.Group("/safety")
	safety.GET("", h.safety)
	safety.POST("/emergency-stop", h.emergencyStop)
	safety.POST("/reset", h.resetSafety)

	mods := api.Group("/modules/:name")
	mods.POST("/enable", h.moduleAction(h.ctl.EnableModule))
	mods.POST("/disable", h.moduleAction(h.ctl.DisableModule))
	mods.POST("/health/reset", h.moduleAction(h.ctl.ResetModuleHealth))
	mods.PUT("/config", h.updateConfig)

	opt := api.Group("/optimization")
	opt.POST("/enable", func(c *gin.Context) {
		h.ctl.EnableOptimization()
		c.JSON(http.StatusOK, gin.H{"optimization_enabled": true})
	})
	opt.POST("/disable", func(c *gin.Context) {
		h.ctl.DisableOptimization()
		c.JSON(http.StatusOK, gin.H{"optimization_enabled": false})
	})
	opt.POST("/run", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"summary": h.ctl.RunOptimization(c.Request.Context())})
	})
}

func (h *handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.GetStatus())
}

func (h *handler) safety(c *gin.Context) {
	c.JSON(http.StatusOK, h.ctl.GetSafetyStatus())
}

func (h *handler) emergencyStop(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	h.ctl.TriggerEmergencyStop(req.Reason)
	c.JSON(http.StatusOK, h.ctl.GetSafetyStatus())
}

func (h *handler) resetSafety(c *gin.Context) {
	h.ctl.ResetCircuitBreaker()
	c.JSON(http.StatusOK, h.ctl.GetSafetyStatus())
}

func (h *handler) lastCycle(c *gin.Context) {
	last, ok := h.ctl.LastCycle()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	c.JSON(http.StatusOK, last)
}

func (h *handler) cycles(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "cycle history is not available"})
		return
	}
	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistory)
	}
	list, err := h.history.CycleHistory(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": list})
}

func (h *handler) moduleAction(fn func(name string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		if err := fn(name); err != nil {
			writeModuleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"module": name, "ok": true})
	}
}

func (h *handler) updateConfig(c *gin.Context) {
	name := c.Param("name")
	values, err := decodeObject(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.schema != nil {
		if err := h.schema.Validate(values); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config: " + err.Error()})
			return
		}
	}
	if err := h.ctl.UpdateModuleConfig(c.Request.Context(), name, values); err != nil {
		writeModuleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"module": name, "updated": values})
}

func writeModuleError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, orchestrator.ErrUnknownModule) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// decodeObject keeps numbers as json.Number so integer checks in the
// schema see the literal the client sent.
func decodeObject(r io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("body must be a JSON object: %w", err)
	}
	if out == nil {
		return nil, errors.New("body must be a JSON object")
	}
	return out, nil
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("module-config.json", bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile("module-config.json")
}
