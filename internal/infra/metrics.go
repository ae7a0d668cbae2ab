package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	eventsProcessed atomic.Uint64
	refetches       atomic.Uint64
	staleDropped    atomic.Uint64
	txSucceeded     atomic.Uint64
	txFailed        atomic.Uint64
	ledgerErrors    atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	activeConnections atomic.Int32
	circuitOpen       atomic.Int32 // 1 = open, 0 = closed
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordEvent records a market loop event with its processing latency.
func (m *Metrics) RecordEvent(latencyNs int64) {
	m.eventsProcessed.Add(1)
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordRefetch records a ledger read issued for reconciliation.
func (m *Metrics) RecordRefetch() {
	m.refetches.Add(1)
}

// RecordStaleResult records a read result dropped because a newer generation superseded it.
func (m *Metrics) RecordStaleResult() {
	m.staleDropped.Add(1)
}

// RecordTx records the outcome of a marketplace action.
func (m *Metrics) RecordTx(err error) {
	if err != nil {
		m.txFailed.Add(1)
		return
	}
	m.txSucceeded.Add(1)
}

// RecordLedgerError records a failed ledger read or write.
func (m *Metrics) RecordLedgerError() {
	m.ledgerErrors.Add(1)
}

// IncrementConnections increments active connections by 1.
func (m *Metrics) IncrementConnections() {
	m.activeConnections.Add(1)
}

// DecrementConnections decrements active connections by 1.
func (m *Metrics) DecrementConnections() {
	m.activeConnections.Add(-1)
}

// SetCircuitState sets the circuit breaker state (true = open).
func (m *Metrics) SetCircuitState(open bool) {
	if open {
		m.circuitOpen.Store(1)
	} else {
		m.circuitOpen.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	EventsProcessed   uint64    `json:"events_processed"`
	Refetches         uint64    `json:"refetches"`
	StaleDropped      uint64    `json:"stale_dropped"`
	TxSucceeded       uint64    `json:"tx_succeeded"`
	TxFailed          uint64    `json:"tx_failed"`
	LedgerErrors      uint64    `json:"ledger_errors"`
	AvgLatencyNs      int64     `json:"avg_latency_ns"`
	ActiveConnections int32     `json:"active_connections"`
	CircuitOpen       bool      `json:"circuit_open"`
	Timestamp         time.Time `json:"timestamp"`
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		EventsProcessed:   m.eventsProcessed.Load(),
		Refetches:         m.refetches.Load(),
		StaleDropped:      m.staleDropped.Load(),
		TxSucceeded:       m.txSucceeded.Load(),
		TxFailed:          m.txFailed.Load(),
		LedgerErrors:      m.ledgerErrors.Load(),
		AvgLatencyNs:      avgLatency,
		ActiveConnections: m.activeConnections.Load(),
		CircuitOpen:       m.circuitOpen.Load() == 1,
		Timestamp:         time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.eventsProcessed.Store(0)
	m.refetches.Store(0)
	m.staleDropped.Store(0)
	m.txSucceeded.Store(0)
	m.txFailed.Store(0)
	m.ledgerErrors.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.activeConnections.Store(0)
	m.circuitOpen.Store(0)
}
