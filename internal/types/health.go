package types

import "time"

// HealthStatus gates a module's eligibility to run.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthError    HealthStatus = "error"
	HealthDisabled HealthStatus = "disabled"
)

const maxHealthMessages = 10

// ModuleHealth is the per-module operational state kept by the registry.
type ModuleHealth struct {
	Status         HealthStatus `json:"status"`
	LastUpdate     time.Time    `json:"last_update"`
	ErrorCount     int          `json:"error_count"`
	RecentWarnings []string     `json:"recent_warnings,omitempty"`
	RecentErrors   []string     `json:"recent_errors,omitempty"`
}

func NewModuleHealth(now time.Time) ModuleHealth {
	return ModuleHealth{Status: HealthHealthy, LastUpdate: now}
}

// Apply transitions the health to status. Errors bump the counter and are
// remembered along with warnings; both lists keep only the latest entries.
func (h *ModuleHealth) Apply(status HealthStatus, message string, now time.Time) {
	h.Status = status
	h.LastUpdate = now
	switch status {
	case HealthError:
		h.ErrorCount++
		h.RecentErrors = appendBounded(h.RecentErrors, message)
	case HealthWarning:
		h.RecentWarnings = appendBounded(h.RecentWarnings, message)
	}
}

// Runnable reports whether the status allows the module into a cycle.
func (h ModuleHealth) Runnable() bool {
	return h.Status == HealthHealthy
}

func (h ModuleHealth) Clone() ModuleHealth {
	out := h
	out.RecentWarnings = append([]string(nil), h.RecentWarnings...)
	out.RecentErrors = append([]string(nil), h.RecentErrors...)
	return out
}

func appendBounded(list []string, msg string) []string {
	if msg == "" {
		return list
	}
	list = append(list, msg)
	if len(list) > maxHealthMessages {
		list = append([]string(nil), list[len(list)-maxHealthMessages:]...)
	}
	return list
}
