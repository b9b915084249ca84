package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects relay traffic counters
type Metrics struct {
	mu sync.RWMutex

	// Counters
	MessagesPosted    int64
	MessagesFetched   int64
	MessagesDelivered int64
	ChannelsCreated   int64
	APIRequests       int64
	MCPRequests       int64

	// Gauges
	SSEClients     int64
	ActiveSessions int64

	// Histograms (simplified)
	deliveryLags []time.Duration

	// Exporter (optional)
	exporter MetricsExporter
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		deliveryLags: make([]time.Duration, 0, 1000),
	}
}

// IncMessagesPosted increments the posted messages counter
func (m *Metrics) IncMessagesPosted() {
	atomic.AddInt64(&m.MessagesPosted, 1)
}

// IncMessagesFetched increments the fetch calls counter
func (m *Metrics) IncMessagesFetched() {
	atomic.AddInt64(&m.MessagesFetched, 1)
}

// AddMessagesDelivered adds to the count of messages handed to fetchers
func (m *Metrics) AddMessagesDelivered(n int64) {
	atomic.AddInt64(&m.MessagesDelivered, n)
}

// IncChannelsCreated increments the created channels counter
func (m *Metrics) IncChannelsCreated() {
	atomic.AddInt64(&m.ChannelsCreated, 1)
}

// IncAPIRequests increments the web API requests counter
func (m *Metrics) IncAPIRequests() {
	atomic.AddInt64(&m.APIRequests, 1)
}

// IncMCPRequests increments the MCP requests counter
func (m *Metrics) IncMCPRequests() {
	atomic.AddInt64(&m.MCPRequests, 1)
}

// IncSSEClients increments the connected SSE clients gauge
func (m *Metrics) IncSSEClients() {
	atomic.AddInt64(&m.SSEClients, 1)
}

// DecSSEClients decrements the connected SSE clients gauge
func (m *Metrics) DecSSEClients() {
	atomic.AddInt64(&m.SSEClients, -1)
}

// IncActiveSessions increments the MCP sessions gauge
func (m *Metrics) IncActiveSessions() {
	atomic.AddInt64(&m.ActiveSessions, 1)
}

// DecActiveSessions decrements the MCP sessions gauge
func (m *Metrics) DecActiveSessions() {
	atomic.AddInt64(&m.ActiveSessions, -1)
}

// RecordDeliveryLag records how long a message sat in the store before a
// fetch first returned it
func (m *Metrics) RecordDeliveryLag(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryLags = append(m.deliveryLags, d)
}

// GetSummary returns a summary of collected metrics
func (m *Metrics) GetSummary() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := map[string]interface{}{
		"messages_posted":    atomic.LoadInt64(&m.MessagesPosted),
		"messages_fetched":   atomic.LoadInt64(&m.MessagesFetched),
		"messages_delivered": atomic.LoadInt64(&m.MessagesDelivered),
		"channels_created":   atomic.LoadInt64(&m.ChannelsCreated),
		"api_requests":       atomic.LoadInt64(&m.APIRequests),
		"mcp_requests":       atomic.LoadInt64(&m.MCPRequests),
		"sse_clients":        atomic.LoadInt64(&m.SSEClients),
		"active_sessions":    atomic.LoadInt64(&m.ActiveSessions),
	}

	// Add lag stats
	if len(m.deliveryLags) > 0 {
		var total time.Duration
		for _, d := range m.deliveryLags {
			total += d
		}
		summary["avg_delivery_lag_ms"] = total.Milliseconds() / int64(len(m.deliveryLags))
	}

	return summary
}

// Reset resets all metrics
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.MessagesPosted, 0)
	atomic.StoreInt64(&m.MessagesFetched, 0)
	atomic.StoreInt64(&m.MessagesDelivered, 0)
	atomic.StoreInt64(&m.ChannelsCreated, 0)
	atomic.StoreInt64(&m.APIRequests, 0)
	atomic.StoreInt64(&m.MCPRequests, 0)
	atomic.StoreInt64(&m.SSEClients, 0)
	atomic.StoreInt64(&m.ActiveSessions, 0)

	m.deliveryLags = m.deliveryLags[:0]
}

// SetExporter attaches a metrics exporter.
func (m *Metrics) SetExporter(e MetricsExporter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exporter = e
}

// Flush exports the current metrics snapshot with the given event label.
func (m *Metrics) Flush(event string, labels map[string]string) {
	m.mu.RLock()
	exporter := m.exporter
	m.mu.RUnlock()

	if exporter == nil {
		return
	}

	snapshot := MetricsSnapshot{
		Timestamp: time.Now(),
		Event:     event,
		Metrics:   m.GetSummary(),
		Labels:    labels,
	}
	// Best-effort export.
	_ = exporter.Export(snapshot)
}
