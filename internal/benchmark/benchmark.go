// Package benchmark measures per-stage prediction latency.
package benchmark

import (
	"encoding/json"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64  `json:"alloc_bytes"`       // Currently allocated bytes
	TotalAllocBytes uint64  `json:"total_alloc_bytes"` // Total allocated bytes (cumulative)
	SysBytes        uint64  `json:"sys_bytes"`         // Total bytes from system
	NumGC           uint32  `json:"num_gc"`            // Number of GC runs
	GCCPUFraction   float64 `json:"gc_cpu_fraction"`   // Fraction of CPU time spent in GC
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		SysBytes:        m.Sys,
		NumGC:           m.NumGC,
		GCCPUFraction:   m.GCCPUFraction,
	}
}

// String returns a formatted string representation of memory stats.
func (m MemoryStats) String() string {
	return fmt.Sprintf("Alloc: %d KB, Total: %d KB, Sys: %d KB, GC: %d (%.2f%% CPU)",
		m.AllocBytes/1024,
		m.TotalAllocBytes/1024,
		m.SysBytes/1024,
		m.NumGC,
		m.GCCPUFraction*100)
}

// Result holds the result of one benchmark.
type Result struct {
	Name       string          `json:"name"`
	Iterations int             `json:"iterations"`
	Total      time.Duration   `json:"total_ns"`
	Min        time.Duration   `json:"min_ns"`
	Mean       time.Duration   `json:"mean_ns"`
	P50        time.Duration   `json:"p50_ns"`
	P95        time.Duration   `json:"p95_ns"`
	Max        time.Duration   `json:"max_ns"`
	AllocBytes uint64          `json:"alloc_bytes"` // cumulative bytes allocated during the run
	Samples    []time.Duration `json:"-"`
	Error      error           `json:"-"`
	ErrorText  string          `json:"error,omitempty"`
}

// PerSecond returns the mean throughput.
func (r Result) PerSecond() float64 {
	if r.Mean <= 0 {
		return 0
	}
	return float64(time.Second) / float64(r.Mean)
}

// String returns a formatted string representation of the result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, mean: %v, p95: %v, total: %v, alloc: %d KB",
		r.Name, r.Iterations, r.Mean, r.P95, r.Total, r.AllocBytes/1024)
}

// summarize fills the latency statistics from r.Samples.
func (r *Result) summarize() {
	n := len(r.Samples)
	r.Iterations = n
	if n == 0 {
		return
	}
	sorted := slices.Clone(r.Samples)
	slices.Sort(sorted)

	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	r.Total = total
	r.Min = sorted[0]
	r.Max = sorted[n-1]
	r.Mean = total / time.Duration(n)
	r.P50 = percentile(sorted, 0.50)
	r.P95 = percentile(sorted, 0.95)
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(p*float64(len(sorted)) + 0.5)
	rank = min(max(rank, 1), len(sorted))
	return sorted[rank-1]
}

// Benchmark is a named function timed once per iteration.
type Benchmark struct {
	Name string
	Func func() error
}

// Suite manages multiple benchmarks.
type Suite struct {
	benchmarks []Benchmark
	results    []Result
	warmup     int
	mu         sync.Mutex
}

// NewSuite creates a new benchmark suite. Each benchmark runs warmup
// untimed iterations first.
func NewSuite(warmup int) *Suite {
	return &Suite{warmup: max(warmup, 0)}
}

// Add adds a benchmark to the suite.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benchmarks = append(s.benchmarks, Benchmark{Name: name, Func: fn})
}

// Run runs a single benchmark with the specified number of iterations.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	idx := slices.IndexFunc(s.benchmarks, func(b Benchmark) bool { return b.Name == name })
	var b Benchmark
	if idx >= 0 {
		b = s.benchmarks[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		err := fmt.Errorf("benchmark '%s' not found", name)
		return Result{Name: name, Error: err, ErrorText: err.Error()}
	}
	return s.runBenchmark(b, iterations)
}

// RunAll runs all benchmarks in the order they were added.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	benchmarks := slices.Clone(s.benchmarks)
	s.mu.Unlock()

	results := make([]Result, 0, len(benchmarks))
	for _, b := range benchmarks {
		results = append(results, s.runBenchmark(b, iterations))
	}

	s.mu.Lock()
	s.results = results
	s.mu.Unlock()
	return results
}

// runBenchmark executes a single benchmark. The first error stops the run.
func (s *Suite) runBenchmark(b Benchmark, iterations int) Result {
	result := Result{Name: b.Name}
	for range s.warmup {
		if err := b.Func(); err != nil {
			result.Error = fmt.Errorf("warmup: %w", err)
			result.ErrorText = result.Error.Error()
			return result
		}
	}

	runtime.GC()
	before := GetMemoryStats()

	result.Samples = make([]time.Duration, 0, iterations)
	for range iterations {
		start := time.Now()
		err := b.Func()
		elapsed := time.Since(start)
		if err != nil {
			result.Error = err
			result.ErrorText = err.Error()
			break
		}
		result.Samples = append(result.Samples, elapsed)
	}

	after := GetMemoryStats()
	result.AllocBytes = after.TotalAllocBytes - before.TotalAllocBytes
	result.summarize()
	return result
}

// Results returns the last RunAll results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.results)
}

// Format renders results as a text table or JSON.
func Format(results []Result, format string) (string, error) {
	switch format {
	case "json":
		bts, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", err
		}
		return string(bts) + "\n", nil
	case "text", "":
		var b strings.Builder
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
		_, _ = fmt.Fprintln(tw, "stage\titerations\tmin\tmean\tp50\tp95\tmax\tper sec\t")
		for _, r := range results {
			if r.Error != nil {
				_, _ = fmt.Fprintf(tw, "%s\t%d\terror: %v\t\t\t\t\t\t\n", r.Name, r.Iterations, r.Error)
				continue
			}
			_, _ = fmt.Fprintf(tw, "%s\t%d\t%v\t%v\t%v\t%v\t%v\t%.1f\t\n",
				r.Name, r.Iterations, r.Min, r.Mean, r.P50, r.P95, r.Max, r.PerSecond())
		}
		_ = tw.Flush()
		return b.String(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
