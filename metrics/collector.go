// Package metrics keeps in-process counters for a compression session.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// maxHistory bounds the observations a histogram keeps.
const maxHistory = 100

// Metric types.
const (
	TypeCounter   = "counter"
	TypeGauge     = "gauge"
	TypeHistogram = "histogram"
)

// Collector stores metrics keyed by name and labels.
type Collector struct {
	metrics map[string]*Metric
	mu      sync.RWMutex
}

// Metric is one named series.
type Metric struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	History   []float64         `json:"history,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		metrics: make(map[string]*Metric),
	}
}

// IncCounter adds one to a counter.
func (c *Collector) IncCounter(name string, labels map[string]string) {
	c.AddCounter(name, 1, labels)
}

// AddCounter adds value to a counter.
func (c *Collector) AddCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, TypeCounter, labels)
	m.Value += value
}

// SetGauge replaces a gauge's value.
func (c *Collector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, TypeGauge, labels)
	m.Value = value
}

// ObserveHistogram records one observation. Value holds the latest one.
func (c *Collector) ObserveHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.series(name, TypeHistogram, labels)
	m.Value = value
	m.History = append(m.History, value)
	if len(m.History) > maxHistory {
		m.History = m.History[1:]
	}
}

// series returns the metric for name and labels, creating it. Callers hold mu.
func (c *Collector) series(name, typ string, labels map[string]string) *Metric {
	key := buildKey(name, labels)
	m, ok := c.metrics[key]
	if !ok {
		m = &Metric{Name: name, Type: typ, Labels: copyLabels(labels)}
		c.metrics[key] = m
	}
	m.Timestamp = time.Now().Unix()
	return m
}

// GetMetric returns a copy of one series, or nil.
func (c *Collector) GetMetric(name string, labels map[string]string) *Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.metrics[buildKey(name, labels)]
	if !ok {
		return nil
	}
	cp := *m
	cp.History = append([]float64(nil), m.History...)
	return &cp
}

// Value returns a series' value, or 0 when it does not exist.
func (c *Collector) Value(name string, labels map[string]string) float64 {
	if m := c.GetMetric(name, labels); m != nil {
		return m.Value
	}
	return 0
}

// Snapshot returns copies of every series sorted by key.
func (c *Collector) Snapshot() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.metrics))
	for k := range c.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Metric, 0, len(keys))
	for _, k := range keys {
		m := *c.metrics[k]
		m.History = append([]float64(nil), m.History...)
		out = append(out, m)
	}
	return out
}

// Reset drops every series.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = make(map[string]*Metric)
}

// WriteText writes the series in Prometheus text style. Histograms are
// reported as _avg and _count of the kept observations.
func (c *Collector) WriteText(w io.Writer) error {
	var sb strings.Builder
	for _, m := range c.Snapshot() {
		labels := formatLabels(m.Labels)
		switch m.Type {
		case TypeHistogram:
			if len(m.History) == 0 {
				continue
			}
			var sum float64
			for _, v := range m.History {
				sum += v
			}
			fmt.Fprintf(&sb, "%s_avg%s %.2f\n", m.Name, labels, sum/float64(len(m.History)))
			fmt.Fprintf(&sb, "%s_count%s %d\n", m.Name, labels, len(m.History))
		default:
			fmt.Fprintf(&sb, "%s%s %.2f\n", m.Name, labels, m.Value)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func buildKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	return name + formatLabels(labels)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		pairs = append(pairs, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return "{" + strings.Join(pairs, ",") + "}"
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}
