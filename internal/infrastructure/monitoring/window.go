package monitoring

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary describes recent samples of one series, in milliseconds
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_ms"`
	StdDev float64 `json:"stddev_ms"`
	P50    float64 `json:"p50_ms"`
	P95    float64 `json:"p95_ms"`
	Max    float64 `json:"max_ms"`
}

// Window keeps the most recent durations per series
type Window struct {
	size    int
	mu      sync.Mutex
	samples map[string][]float64
	next    map[string]int
}

// NewWindow creates a window holding size samples per series
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		size:    size,
		samples: make(map[string][]float64),
		next:    make(map[string]int),
	}
}

// Add records a sample, evicting the oldest once the series is full
func (w *Window) Add(series string, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.samples[series]
	if len(buf) < w.size {
		w.samples[series] = append(buf, ms)
		return
	}
	i := w.next[series]
	buf[i] = ms
	w.next[series] = (i + 1) % w.size
}

// Summary summarizes one series; ok is false when it has no samples
func (w *Window) Summary(series string) (Summary, bool) {
	w.mu.Lock()
	data := append([]float64(nil), w.samples[series]...)
	w.mu.Unlock()

	if len(data) == 0 {
		return Summary{}, false
	}
	return summarize(data), true
}

// Summaries summarizes every series
func (w *Window) Summaries() map[string]Summary {
	w.mu.Lock()
	series := make(map[string][]float64, len(w.samples))
	for k, v := range w.samples {
		series[k] = append([]float64(nil), v...)
	}
	w.mu.Unlock()

	out := make(map[string]Summary, len(series))
	for k, v := range series {
		out[k] = summarize(v)
	}
	return out
}

func summarize(data []float64) Summary {
	sort.Float64s(data)
	mean, std := stat.MeanStdDev(data, nil)
	if len(data) < 2 {
		std = 0
	}
	return Summary{
		Count:  len(data),
		Mean:   mean,
		StdDev: std,
		P50:    stat.Quantile(0.5, stat.Empirical, data, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, data, nil),
		Max:    data[len(data)-1],
	}
}
