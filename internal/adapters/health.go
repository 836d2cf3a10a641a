package adapters

import (
	"sync"
	"time"

	"github.com/Rajchodisetti/stock-tracker/internal/observ"
)

// SourceStatus represents the health state of a quote source
type SourceStatus string

const (
	SourceHealthy  SourceStatus = "healthy"
	SourceDegraded SourceStatus = "degraded"
	SourceFailed   SourceStatus = "failed"
)

// maxConsecutiveErrors moves a degraded source to failed.
const maxConsecutiveErrors = 5

// SourceHealth tracks reliability of one source inside a chain.
type SourceHealth struct {
	mu                sync.RWMutex
	name              string
	status            SourceStatus
	consecutiveErrors int
	successCount      int64
	errorCount        int64
	lastSuccess       time.Time
	lastError         string
}

// HealthSnapshot is a read-only copy of SourceHealth.
type HealthSnapshot struct {
	Source            string       `json:"source"`
	Status            SourceStatus `json:"status"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	Successes         int64        `json:"successes"`
	Errors            int64        `json:"errors"`
	LastSuccess       time.Time    `json:"last_success,omitempty"`
	LastError         string       `json:"last_error,omitempty"`
}

func newSourceHealth(name string) *SourceHealth {
	return &SourceHealth{name: name, status: SourceHealthy}
}

// RecordSuccess resets the error streak.
func (h *SourceHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.successCount++
	h.consecutiveErrors = 0
	h.lastSuccess = time.Now()
	if h.status != SourceHealthy {
		observ.Log("source_recovered", map[string]any{
			"source": h.name,
			"from":   string(h.status),
		})
		h.status = SourceHealthy
	}
	observ.QuoteFetches.WithLabelValues(h.name, "success").Inc()
}

// RecordError extends the error streak and degrades the status.
func (h *SourceHealth) RecordError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errorCount++
	h.consecutiveErrors++
	if err != nil {
		h.lastError = err.Error()
	}

	prev := h.status
	switch {
	case h.consecutiveErrors >= maxConsecutiveErrors:
		h.status = SourceFailed
	default:
		h.status = SourceDegraded
	}
	if prev != h.status {
		observ.Warn("source_status_change", map[string]any{
			"source":             h.name,
			"from":               string(prev),
			"to":                 string(h.status),
			"consecutive_errors": h.consecutiveErrors,
		})
	}
	observ.QuoteFetches.WithLabelValues(h.name, ErrorType(err)).Inc()
}

// Snapshot returns the current health counters.
func (h *SourceHealth) Snapshot() HealthSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HealthSnapshot{
		Source:            h.name,
		Status:            h.status,
		ConsecutiveErrors: h.consecutiveErrors,
		Successes:         h.successCount,
		Errors:            h.errorCount,
		LastSuccess:       h.lastSuccess,
		LastError:         h.lastError,
	}
}
