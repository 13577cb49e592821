package drift

import (
	"fmt"
	"math"
	"sort"
)

// Severity classifies how far recent market statistics have departed
// from the trained baseline. Values are ordered, so the worst of a set
// of severities is the numeric maximum.
type Severity uint8

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityModerate
	SeveritySevere
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "None"
	case SeverityLow:
		return "Low"
	case SeverityModerate:
		return "Moderate"
	case SeveritySevere:
		return "Severe"
	case SeverityCritical:
		return "Critical"
	default:
		return "Unknown"
	}
}

// PositionMultiplier scales desired position size for this severity.
func (s Severity) PositionMultiplier() float64 {
	switch s {
	case SeverityNone:
		return 1.0
	case SeverityLow:
		return 0.9
	case SeverityModerate:
		return 0.5
	default:
		return 0.0
	}
}

// ShouldHalt reports whether new positions must stop.
func (s Severity) ShouldHalt() bool {
	return s >= SeveritySevere
}

// ShouldClose reports whether existing positions must be closed.
func (s Severity) ShouldClose() bool {
	return s >= SeverityCritical
}

// Thresholds are the drift-score cutoffs for each severity tier.
type Thresholds struct {
	Low      float64 `json:"low"`
	Moderate float64 `json:"moderate"`
	Severe   float64 `json:"severe"`
	Critical float64 `json:"critical"`
}

// DefaultThresholds matches the trained baseline calibration.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: 1.0, Moderate: 2.0, Severe: 3.0, Critical: 4.0}
}

func (t Thresholds) classify(score float64) Severity {
	switch {
	case score < t.Low:
		return SeverityNone
	case score < t.Moderate:
		return SeverityLow
	case score < t.Severe:
		return SeverityModerate
	case score < t.Critical:
		return SeveritySevere
	default:
		return SeverityCritical
	}
}

// window is a bounded rolling window with O(1) mean/variance via
// Welford updates on insert and removal.
type window struct {
	maxSize int
	values  []float64
	head    int
	count   int
	n       uint64
	mean    float64
	m2      float64
}

func newWindow(maxSize int) *window {
	if maxSize < 1 {
		maxSize = 1
	}
	return &window{maxSize: maxSize, values: make([]float64, maxSize)}
}

func (w *window) push(value float64) {
	if w.count >= w.maxSize {
		// Overwrite the oldest slot in place; the count stays full.
		old := w.values[w.head]
		w.values[w.head] = value
		w.head = (w.head + 1) % w.maxSize
		w.removeStats(old)
	} else {
		w.values[(w.head+w.count)%w.maxSize] = value
		w.count++
	}
	w.addStats(value)
}

func (w *window) addStats(value float64) {
	w.n++
	delta := value - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (value - w.mean)
}

func (w *window) removeStats(value float64) {
	if w.n <= 1 {
		w.n, w.mean, w.m2 = 0, 0, 0
		return
	}
	delta := value - w.mean
	w.mean = (w.mean*float64(w.n) - value) / float64(w.n-1)
	w.m2 -= delta * (value - w.mean)
	w.n--
	if w.m2 < 0 {
		w.m2 = 0
	}
}

func (w *window) full() bool { return w.count >= w.maxSize }

func (w *window) variance() float64 {
	if w.n > 1 {
		return w.m2 / float64(w.n-1)
	}
	return 0
}

func (w *window) std() float64 { return math.Sqrt(w.variance()) }

func (w *window) percentile(p float64) float64 {
	if w.count == 0 {
		return 0
	}
	sorted := make([]float64, w.count)
	for i := 0; i < w.count; i++ {
		sorted[i] = w.values[(w.head+i)%w.maxSize]
	}
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * p)
	if idx > len(sorted)-1 {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Report is the drift assessment for one tracked metric.
type Report struct {
	Metric       string
	Score        float64
	Severity     Severity
	BaselineMean float64
	BaselineStd  float64
	RecentMean   float64
	RecentStd    float64
	MeanShiftZ   float64
	PSI          float64
}

// metricTracker pairs a long baseline window with a short recent one.
type metricTracker struct {
	name       string
	baseline   *window
	recent     *window
	thresholds Thresholds
}

func (m *metricTracker) push(value float64) {
	m.baseline.push(value)
	m.recent.push(value)
}

func (m *metricTracker) ready() bool {
	return m.baseline.full() && m.recent.full()
}

func (m *metricTracker) report() Report {
	baselineMean := m.baseline.mean
	baselineStd := m.baseline.std()
	recentMean := m.recent.mean

	var meanShiftZ float64
	if baselineStd > 1e-9 {
		meanShiftZ = math.Abs(recentMean-baselineMean) / baselineStd
	}

	psi := m.psi()
	score := meanShiftZ*0.6 + psi*0.4

	return Report{
		Metric:       m.name,
		Score:        score,
		Severity:     m.thresholds.classify(score),
		BaselineMean: baselineMean,
		BaselineStd:  baselineStd,
		RecentMean:   recentMean,
		RecentStd:    m.recent.std(),
		MeanShiftZ:   meanShiftZ,
		PSI:          psi,
	}
}

// psi approximates a population stability index from quartile shifts.
func (m *metricTracker) psi() float64 {
	if !m.ready() {
		return 0
	}
	var sum float64
	for _, q := range []float64{0.25, 0.50, 0.75} {
		baseQ := m.baseline.percentile(q)
		recentQ := m.recent.percentile(q)
		if math.Abs(baseQ) <= 1e-9 {
			continue
		}
		ratio := recentQ / baseQ
		if ratio <= 0 {
			continue
		}
		diff := (recentQ - baseQ) / math.Abs(baseQ)
		sum += math.Abs(diff) * math.Abs(math.Log(ratio))
	}
	return sum
}

// Standard metric names tracked against the baseline.
const (
	MetricVolatility = "volatility"
	MetricReturns    = "returns"
	MetricSpread     = "spread"
	MetricFunding    = "funding"
	MetricZScore     = "z_score"
)

// Tracker watches the standard metrics for regime drift. Observations
// accumulate through Push/UpdateFromMarket; the aggregate severity is
// only recomputed by ComputeOverall, never on the push path, so a tick
// never pays aggregation cost.
type Tracker struct {
	metrics      []*metricTracker
	overall      Severity
	lastUpdateTs uint64
}

// NewTracker creates a tracker with the given window sizes for every
// standard metric.
func NewTracker(baselineSize, recentSize int) *Tracker {
	return NewTrackerWithThresholds(baselineSize, recentSize, DefaultThresholds())
}

// NewTrackerWithThresholds overrides the severity cutoffs.
func NewTrackerWithThresholds(baselineSize, recentSize int, th Thresholds) *Tracker {
	names := []string{MetricVolatility, MetricReturns, MetricSpread, MetricFunding, MetricZScore}
	metrics := make([]*metricTracker, 0, len(names))
	for _, name := range names {
		metrics = append(metrics, &metricTracker{
			name:       name,
			baseline:   newWindow(baselineSize),
			recent:     newWindow(recentSize),
			thresholds: th,
		})
	}
	return &Tracker{metrics: metrics}
}

// DefaultWindows returns a tracker with a 100-sample baseline and a
// 20-sample recent window.
func DefaultWindows() *Tracker {
	return NewTracker(100, 20)
}

// Push records one observation for the named metric. Unknown names are
// dropped; producers own validation.
func (t *Tracker) Push(name string, value float64, ts uint64) {
	for _, m := range t.metrics {
		if m.name == name {
			m.push(value)
			break
		}
	}
	t.lastUpdateTs = ts
}

// UpdateFromMarket pushes one snapshot across all standard metrics.
func (t *Tracker) UpdateFromMarket(volatility, returns, spread, funding, zScore float64, ts uint64) {
	t.Push(MetricVolatility, volatility, ts)
	t.Push(MetricReturns, returns, ts)
	t.Push(MetricSpread, spread, ts)
	t.Push(MetricFunding, funding, ts)
	t.Push(MetricZScore, zScore, ts)
}

// Reports returns assessments for every metric with full windows.
func (t *Tracker) Reports() []Report {
	out := make([]Report, 0, len(t.metrics))
	for _, m := range t.metrics {
		if m.ready() {
			out = append(out, m.report())
		}
	}
	return out
}

// ComputeOverall recomputes and returns the aggregate severity as the
// worst per-metric severity.
func (t *Tracker) ComputeOverall() Severity {
	overall := SeverityNone
	for _, r := range t.Reports() {
		if r.Severity > overall {
			overall = r.Severity
		}
	}
	t.overall = overall
	return overall
}

// Overall returns the severity as of the last ComputeOverall.
func (t *Tracker) Overall() Severity {
	return t.overall
}

// LastUpdateTs returns the timestamp of the newest observation.
func (t *Tracker) LastUpdateTs() uint64 {
	return t.lastUpdateTs
}

// PositionMultiplier scales desired position size by the aggregate
// severity as of the last ComputeOverall.
func (t *Tracker) PositionMultiplier() float64 {
	return t.overall.PositionMultiplier()
}

// ActionKind discriminates recommended drift actions.
type ActionKind uint8

const (
	ActionLog ActionKind = iota
	ActionAlert
	ActionReduceExposure
	ActionWidenNoTradeZone
	ActionHaltNewPositions
	ActionCloseExisting
)

// Action is advice for the risk guard; the tracker holds no authority
// over order flow itself.
type Action struct {
	Kind       ActionKind
	Msg        string
	Multiplier float64
	Factor     float64
	Urgency    float64
}

// RecommendedActions derives advice from the current severity tier.
func (t *Tracker) RecommendedActions() []Action {
	var actions []Action
	for _, r := range t.Reports() {
		if r.Severity != SeverityNone {
			actions = append(actions, Action{
				Kind: ActionLog,
				Msg: fmt.Sprintf("drift in %s: score=%.2f z=%.2f severity=%s",
					r.Metric, r.Score, r.MeanShiftZ, r.Severity),
			})
		}
	}

	switch t.overall {
	case SeverityLow:
		actions = append(actions, Action{Kind: ActionLog, Msg: "low drift detected, monitoring"})
	case SeverityModerate:
		actions = append(actions,
			Action{Kind: ActionReduceExposure, Multiplier: 0.5},
			Action{Kind: ActionWidenNoTradeZone, Factor: 1.5},
		)
	case SeveritySevere:
		actions = append(actions,
			Action{Kind: ActionHaltNewPositions},
			Action{Kind: ActionAlert, Msg: "severe drift: halting new positions"},
		)
	case SeverityCritical:
		actions = append(actions,
			Action{Kind: ActionHaltNewPositions},
			Action{Kind: ActionCloseExisting, Urgency: 1.0},
			Action{Kind: ActionAlert, Msg: "critical drift: closing positions"},
		)
	}
	return actions
}
