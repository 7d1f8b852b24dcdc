package logger

import (
	"io"
	"sort"
	"sync"
	"time"
)

var (
	auditMu     sync.Mutex
	auditWriter io.Writer
)

// SetAuditWriter sets a dedicated sink for audit entries (parameter changes,
// emergency stops). A nil writer disables the sink; entries still reach the
// main log at info level.
func SetAuditWriter(w io.Writer) {
	auditMu.Lock()
	defer auditMu.Unlock()
	auditWriter = w
}

// Audit records an operator-relevant event.
func Audit(kind string, fields map[string]any) {
	line := formatFields(fields)
	Infof("[audit] %s %s", kind, line)

	auditMu.Lock()
	w := auditWriter
	auditMu.Unlock()
	if w == nil {
		return
	}
	entry := time.Now().UTC().Format(time.RFC3339) + " " + kind
	if line != "" {
		entry += " " + line
	}
	auditMu.Lock()
	_, _ = io.WriteString(w, entry+"\n")
	auditMu.Unlock()
}

func sortStrings(items []string) {
	sort.Strings(items)
}
