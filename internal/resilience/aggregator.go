package resilience

import (
	"sync"
	"time"
)

// maxRecordsPerOperation caps the rolling error log; the oldest records are
// evicted first.
const maxRecordsPerOperation = 1000

// ErrorRecord is one captured failure with its context.
type ErrorRecord struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      string            `json:"error_kind"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}

// KindCount pairs an error kind with its occurrence count.
type KindCount struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// OperationSummary summarizes the errors recorded for one operation.
type OperationSummary struct {
	Count       int            `json:"count"`
	RecentCount int            `json:"recent_count"`
	ErrorTypes  map[string]int `json:"error_types,omitempty"`
	MostCommon  *KindCount     `json:"most_common,omitempty"`
}

// GlobalSummary is the rollup across every operation with errors.
type GlobalSummary struct {
	TotalErrors          int                         `json:"total_errors"`
	OperationsWithErrors int                         `json:"operations_with_errors"`
	Operations           map[string]OperationSummary `json:"operations"`
}

// ErrorAggregator is the process-wide rolling error log keyed by operation
// name. All mutation happens under one lock; no lock is held across I/O.
type ErrorAggregator struct {
	now func() time.Time

	mu      sync.Mutex
	records map[string][]ErrorRecord
}

// NewErrorAggregator creates an empty aggregator.
func NewErrorAggregator() *ErrorAggregator {
	return &ErrorAggregator{now: time.Now, records: make(map[string][]ErrorRecord)}
}

// Record appends a failure to the operation's log, evicting the oldest
// entries beyond the per-operation cap.
func (a *ErrorAggregator) Record(operation string, err error, context map[string]string) {
	if err == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	log := append(a.records[operation], ErrorRecord{
		Timestamp: a.now(),
		Kind:      Kind(err),
		Message:   err.Error(),
		Context:   context,
	})
	if over := len(log) - maxRecordsPerOperation; over > 0 {
		log = append(log[:0:0], log[over:]...)
	}
	a.records[operation] = log
}

// Summarize returns the per-operation summary: total count, count within the
// last hour, counts by kind, and the most common kind.
func (a *ErrorAggregator) Summarize(operation string) OperationSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.summarizeLocked(a.records[operation])
}

// SummarizeAll returns the global rollup across all operations.
func (a *ErrorAggregator) SummarizeAll() GlobalSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := GlobalSummary{Operations: make(map[string]OperationSummary, len(a.records))}
	for op, log := range a.records {
		summary.TotalErrors += len(log)
		summary.Operations[op] = a.summarizeLocked(log)
	}
	summary.OperationsWithErrors = len(a.records)
	return summary
}

func (a *ErrorAggregator) summarizeLocked(log []ErrorRecord) OperationSummary {
	if len(log) == 0 {
		return OperationSummary{}
	}

	types := make(map[string]int)
	recentCutoff := a.now().Add(-time.Hour)
	recent := 0
	for _, rec := range log {
		types[rec.Kind]++
		if rec.Timestamp.After(recentCutoff) {
			recent++
		}
	}

	var top *KindCount
	for kind, count := range types {
		if top == nil || count > top.Count || (count == top.Count && kind < top.Kind) {
			top = &KindCount{Kind: kind, Count: count}
		}
	}

	return OperationSummary{
		Count:       len(log),
		RecentCount: recent,
		ErrorTypes:  types,
		MostCommon:  top,
	}
}
