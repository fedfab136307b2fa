// Package metrics provides Prometheus metrics for go-node-harness.
//
// Every Collector owns its instruments and registers them on the registry it
// is given, so tests and concurrent harnesses never share counters.
package metrics

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric name.
const Namespace = "node_harness"

// Launch modes.
const (
	ModeDaemon         = "daemon"
	ModeDumpConfig     = "dump_config"
	ModeGenerateWallet = "generate_wallet"
	ModeRecoverWallet  = "recover_wallet"
)

// Kill outcomes.
const (
	KillGraceful      = "graceful"
	KillForced        = "forced"
	KillAlreadyExited = "already_exited"
)

// Timeout kinds.
const (
	TimeoutReadiness = "readiness"
	TimeoutExit      = "exit"
	TimeoutBarrier   = "barrier"
)

// Collector records harness events. A nil *Collector is valid and records
// nothing.
type Collector struct {
	info      *prometheus.GaugeVec
	launches  *prometheus.CounterVec
	kills     *prometheus.CounterVec
	exits     *prometheus.CounterVec
	timeouts  *prometheus.CounterVec
	readiness prometheus.Histogram
	uptime    prometheus.Histogram
	active    prometheus.Gauge

	startTime time.Time

	mu            sync.Mutex
	readyDigest   *tdigest.TDigest
	readyCount    int64
	totalLaunches int64
	activeCount   int
	peakActive    int
	exitCodes     map[int]int64
	signaled      int64
}

// NewCollector creates a collector registered on the default registry.
func NewCollector() *Collector {
	return NewCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(registry prometheus.Registerer) *Collector {
	c := &Collector{
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "info",
			Help:      "Harness build and platform information (value always 1)",
		}, []string{"version", "strategy"}),

		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "launches_total",
			Help:      "Node processes spawned, by invocation mode",
		}, []string{"mode"}),

		kills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "kills_total",
			Help:      "Node terminations requested, by outcome",
		}, []string{"outcome"}),

		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "exits_total",
			Help:      "Node process exits, by category (success, error, signal)",
		}, []string{"category"}),

		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "timeouts_total",
			Help:      "Bounded waits that hit their deadline, by kind",
		}, []string{"kind"}),

		readiness: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "readiness_seconds",
			Help:      "Time from spawn until the readiness pattern matched",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		uptime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "node_uptime_seconds",
			Help:      "Node process lifetime from spawn to reaped exit",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_nodes",
			Help:      "Node processes currently running",
		}),

		startTime:   time.Now(),
		readyDigest: tdigest.NewWithCompression(100),
		exitCodes:   make(map[int]int64),
	}

	registry.MustRegister(
		c.info,
		c.launches,
		c.kills,
		c.exits,
		c.timeouts,
		c.readiness,
		c.uptime,
		c.active,
	)

	return c
}

// =============================================================================
// Event Recording Methods
// =============================================================================

// SetInfo publishes the info gauge.
func (c *Collector) SetInfo(version, strategy string) {
	if c == nil {
		return
	}
	c.info.WithLabelValues(version, strategy).Set(1)
}

// NodeLaunched records a spawned process.
func (c *Collector) NodeLaunched(mode string) {
	if c == nil {
		return
	}
	c.launches.WithLabelValues(mode).Inc()
	c.active.Inc()

	c.mu.Lock()
	c.totalLaunches++
	c.activeCount++
	if c.activeCount > c.peakActive {
		c.peakActive = c.activeCount
	}
	c.mu.Unlock()
}

// NodeKilled records a termination request and its outcome.
func (c *Collector) NodeKilled(outcome string) {
	if c == nil {
		return
	}
	c.kills.WithLabelValues(outcome).Inc()
}

// RecordExit records a reaped process. A nil code means the process was
// terminated by a signal.
func (c *Collector) RecordExit(code *int, uptime time.Duration) {
	if c == nil {
		return
	}

	category := exitCategory(code)
	c.exits.WithLabelValues(category).Inc()
	c.uptime.Observe(uptime.Seconds())
	c.active.Dec()

	c.mu.Lock()
	if c.activeCount > 0 {
		c.activeCount--
	}
	if code == nil {
		c.signaled++
	} else {
		c.exitCodes[*code]++
	}
	c.mu.Unlock()
}

// RecordTimeout records a wait that hit its deadline.
func (c *Collector) RecordTimeout(kind string) {
	if c == nil {
		return
	}
	c.timeouts.WithLabelValues(kind).Inc()
}

// RecordReadiness records the spawn-to-ready latency.
func (c *Collector) RecordReadiness(d time.Duration) {
	if c == nil {
		return
	}
	c.readiness.Observe(d.Seconds())

	c.mu.Lock()
	c.readyDigest.Add(d.Seconds(), 1)
	c.readyCount++
	c.mu.Unlock()
}

func exitCategory(code *int) string {
	switch {
	case code == nil:
		return "signal"
	case *code == 0:
		return "success"
	case *code > 128:
		return "signal"
	default:
		return "error"
	}
}

// =============================================================================
// Summary Generation
// =============================================================================

// Summary holds the data for an exit summary.
type Summary struct {
	Duration       time.Duration
	TotalLaunches  int64
	PeakActive     int
	ExitCodes      map[int]int64
	Signaled       int64
	ReadinessCount int64
	ReadinessP50   time.Duration
	ReadinessP95   time.Duration
	ReadinessP99   time.Duration
}

// GenerateSummary creates a summary of the run.
func (c *Collector) GenerateSummary() *Summary {
	if c == nil {
		return &Summary{ExitCodes: map[int]int64{}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Summary{
		Duration:       time.Since(c.startTime),
		TotalLaunches:  c.totalLaunches,
		PeakActive:     c.peakActive,
		ExitCodes:      make(map[int]int64, len(c.exitCodes)),
		Signaled:       c.signaled,
		ReadinessCount: c.readyCount,
	}

	for code, count := range c.exitCodes {
		s.ExitCodes[code] = count
	}

	if c.readyCount > 0 {
		s.ReadinessP50 = seconds(c.readyDigest.Quantile(0.50))
		s.ReadinessP95 = seconds(c.readyDigest.Quantile(0.95))
		s.ReadinessP99 = seconds(c.readyDigest.Quantile(0.99))
	}

	return s
}

// Active returns the number of processes launched and not yet reaped.
func (c *Collector) Active() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeCount
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
