package notifier

import (
	"fmt"
	"time"

	"conductor/internal/logger"
	"conductor/internal/pkg/circuit"
	"conductor/internal/types"
)

// SafetyMessage describes a safety breaker transition.
func SafetyMessage(from, to circuit.SafetyState, reason string, st circuit.SafetyStatus, at time.Time) StructuredMessage {
	icon, title := "🛑", "Trading halted"
	if to == circuit.StateArmed {
		icon, title = "✅", "Trading resumed"
	}
	lines := []string{
		fmt.Sprintf("state: %s -> %s", from, to),
		fmt.Sprintf("trades in window: %d / %d (%s)", st.TradesInWindow, st.MaxTrades, st.TradeWindow),
		fmt.Sprintf("loss in window: %.2f / %.2f (%s)", st.LossInWindow, st.MaxLoss, st.LossWindow),
	}
	if reason != "" {
		lines = append([]string{"reason: " + reason}, lines...)
	}
	return StructuredMessage{
		Icon:      icon,
		Title:     title,
		Sections:  []MessageSection{{Title: "Safety breaker", Lines: lines}},
		Timestamp: at,
	}
}

// OptimizationMessage describes one applied parameter change.
func OptimizationMessage(rec types.OptimizationRecord) StructuredMessage {
	r := rec.Result
	return StructuredMessage{
		Icon:  "🔧",
		Title: "Parameter updated: " + r.ModuleName,
		Sections: []MessageSection{{
			Title: r.Parameter,
			Lines: []string{
				fmt.Sprintf("%v -> %v", r.OldValue, r.NewValue),
				fmt.Sprintf("method: %s (%d samples)", r.Method, r.SampleCount),
				fmt.Sprintf("expected improvement: %.2f%%", r.ExpectedImprovement*100),
				fmt.Sprintf("confidence: %.2f", r.Confidence),
			},
		}},
		Footer:    "id " + rec.ID,
		Timestamp: rec.AppliedAt,
	}
}

// Deliver sends msg and logs a failure instead of returning it.
func Deliver(n TextNotifier, msg StructuredMessage) {
	if n == nil {
		return
	}
	if err := n.SendText(msg.RenderMarkdown()); err != nil {
		logger.Warnf("notify %q failed: %v", msg.Title, err)
	}
}
