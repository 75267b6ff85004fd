package fraud

import "sync"

// DefaultTelemetryWindow is the number of recent transactions kept for live stats
const DefaultTelemetryWindow = 200

type telemetrySample struct {
	latencyMS int64
	alerted   bool
}

// Telemetry is a bounded ring of the most recent pipeline samples. Safe for concurrent use.
type Telemetry struct {
	mu      sync.Mutex
	samples []telemetrySample
	next    int
	full    bool
}

// TelemetrySnapshot summarises the ring; averages are nil when it is empty
type TelemetrySnapshot struct {
	Samples         int      `json:"samples"`
	AvgLatencyMS    *float64 `json:"avg_latency_ms"`
	RecentAlertRate *float64 `json:"recent_alert_rate"`
}

// NewTelemetry creates a ring holding up to size samples
func NewTelemetry(size int) *Telemetry {
	if size <= 0 {
		size = DefaultTelemetryWindow
	}
	return &Telemetry{samples: make([]telemetrySample, size)}
}

// Record adds one processed transaction, evicting the oldest when full
func (t *Telemetry) Record(latencyMS int64, alerted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.samples[t.next] = telemetrySample{latencyMS: latencyMS, alerted: alerted}
	t.next = (t.next + 1) % len(t.samples)
	if t.next == 0 {
		t.full = true
	}
}

// Snapshot returns the current averages
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := t.next
	if t.full {
		n = len(t.samples)
	}
	if n == 0 {
		return TelemetrySnapshot{}
	}

	var latency int64
	alerts := 0
	for _, s := range t.samples[:n] {
		latency += s.latencyMS
		if s.alerted {
			alerts++
		}
	}

	avg := round2(float64(latency) / float64(n))
	rate := round2(float64(alerts) / float64(n))
	return TelemetrySnapshot{
		Samples:         n,
		AvgLatencyMS:    &avg,
		RecentAlertRate: &rate,
	}
}
