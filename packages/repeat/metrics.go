package repeat

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Latencies are recorded in microseconds, 1us to 60s.
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics aggregates the outcome of repeated requests. Safe for concurrent use.
type Metrics struct {
	mu sync.Mutex

	total    atomic.Int64
	success  atomic.Int64
	errors   atomic.Int64
	timeouts atomic.Int64

	statusCodes map[int]int64
	bytes       atomic.Int64

	histogram *hdrhistogram.Histogram

	startTime time.Time
	endTime   time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram:   hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statusCodes: make(map[int]int64),
	}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record records one exchange. A response outside 2xx counts as an error.
func (m *Metrics) Record(status int, bodySize int, duration time.Duration, err error, timeout bool) {
	m.total.Add(1)

	switch {
	case timeout:
		m.timeouts.Add(1)
		m.errors.Add(1)
	case err != nil || status < 200 || status >= 300:
		m.errors.Add(1)
	default:
		m.success.Add(1)
	}
	m.bytes.Add(int64(bodySize))

	m.mu.Lock()
	defer m.mu.Unlock()
	if status > 0 {
		m.statusCodes[status]++
	}
	if err == nil {
		_ = m.histogram.RecordValue(clampLatency(duration))
	}
}

func clampLatency(d time.Duration) int64 {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}
	return us
}

// Summary returns the final metrics summary
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64
	BytesReceived int64
	StatusCodes   map[int]int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// SortedStatusCodes returns the observed status codes in ascending order.
func (s *Summary) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.total.Load()
	success := m.success.Load()
	errors := m.errors.Load()

	rps := float64(0)
	if duration.Seconds() > 0 {
		rps = float64(total) / duration.Seconds()
	}

	successRate := float64(0)
	errorRate := float64(0)
	if total > 0 {
		successRate = float64(success) / float64(total)
		errorRate = float64(errors) / float64(total)
	}

	codes := make(map[int]int64, len(m.statusCodes))
	for code, n := range m.statusCodes {
		codes[code] = n
	}

	return &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errors,
		TimeoutCount:  m.timeouts.Load(),
		BytesReceived: m.bytes.Load(),
		StatusCodes:   codes,
		RPS:           rps,
		SuccessRate:   successRate,
		ErrorRate:     errorRate,
		P50:           time.Duration(m.histogram.ValueAtQuantile(50)) * time.Microsecond,
		P95:           time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond,
		P99:           time.Duration(m.histogram.ValueAtQuantile(99)) * time.Microsecond,
		Min:           time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:           time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:          time.Duration(m.histogram.Mean()) * time.Microsecond,
	}
}

// Thresholds are pass/fail limits checked against a Summary. Zero disables a check.
type Thresholds struct {
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	ErrorRate float64
	MinRPS    float64
}

type ThresholdResult struct {
	Name     string
	Passed   bool
	Expected string
	Actual   string
}

// Evaluate checks s against t.
func (t Thresholds) Evaluate(s *Summary) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   actual <= limit,
				Expected: "< " + limit.String(),
				Actual:   actual.String(),
			})
		}
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
