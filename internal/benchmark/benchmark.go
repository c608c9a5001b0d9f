// Package benchmark times the solver and renderer hot paths.
package benchmark

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/homography"
	"github.com/MeKo-Tech/keystone/internal/warp"
)

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 `json:"alloc_bytes"`
	TotalAllocBytes uint64 `json:"total_alloc_bytes"`
	Mallocs         uint64 `json:"mallocs"`
	NumGC           uint32 `json:"num_gc"`
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{
		AllocBytes:      m.Alloc,
		TotalAllocBytes: m.TotalAlloc,
		Mallocs:         m.Mallocs,
		NumGC:           m.NumGC,
	}
}

// Result holds the outcome of one benchmark.
type Result struct {
	Name       string        `json:"name"`
	Iterations int           `json:"iterations"`
	Duration   time.Duration `json:"duration_ns"`
	// BytesPerOp and AllocsPerOp are averaged over the iterations.
	BytesPerOp  uint64 `json:"bytes_per_op"`
	AllocsPerOp uint64 `json:"allocs_per_op"`
	Error       error  `json:"-"`
}

// PerOp returns the mean duration of one iteration.
func (r Result) PerOp() time.Duration {
	if r.Iterations <= 0 {
		return 0
	}
	return r.Duration / time.Duration(r.Iterations)
}

// String returns a formatted string representation of the benchmark result.
func (r Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Error)
	}
	return fmt.Sprintf("%s: %d iterations, avg: %v, %d B/op, %d allocs/op",
		r.Name, r.Iterations, r.PerOp(), r.BytesPerOp, r.AllocsPerOp)
}

type benchmark struct {
	name string
	fn   func() error
}

// Suite runs named benchmarks in insertion order.
type Suite struct {
	mu         sync.Mutex
	benchmarks []benchmark
	results    []Result
}

// NewSuite creates an empty suite.
func NewSuite() *Suite {
	return &Suite{}
}

// Add registers fn under name.
func (s *Suite) Add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.benchmarks = append(s.benchmarks, benchmark{name: name, fn: fn})
}

// Names lists the registered benchmarks.
func (s *Suite) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.benchmarks))
	for i, b := range s.benchmarks {
		names[i] = b.name
	}
	return names
}

// Run runs a single benchmark.
func (s *Suite) Run(name string, iterations int) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.benchmarks {
		if b.name == name {
			return measure(b, iterations)
		}
	}
	return Result{Name: name, Error: fmt.Errorf("benchmark '%s' not found", name)}
}

// RunAll runs every benchmark and keeps the results.
func (s *Suite) RunAll(iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]Result, 0, len(s.benchmarks))
	for _, b := range s.benchmarks {
		s.results = append(s.results, measure(b, iterations))
	}
	return s.results
}

// Results returns the results of the last RunAll.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

func measure(b benchmark, iterations int) Result {
	if iterations <= 0 {
		return Result{Name: b.name, Error: errors.New("iterations must be positive")}
	}

	runtime.GC()
	before := GetMemoryStats()
	start := time.Now()

	var err error
	done := 0
	for range iterations {
		if err = b.fn(); err != nil {
			break
		}
		done++
	}

	elapsed := time.Since(start)
	after := GetMemoryStats()

	r := Result{Name: b.name, Iterations: done, Duration: elapsed, Error: err}
	if done > 0 {
		r.BytesPerOp = (after.TotalAllocBytes - before.TotalAllocBytes) / uint64(done)
		r.AllocsPerOp = (after.Mallocs - before.Mallocs) / uint64(done)
	}
	return r
}

// WriteResults prints one line per result.
func WriteResults(w io.Writer, results []Result) {
	for _, r := range results {
		_, _ = fmt.Fprintln(w, r.String())
	}
}

// AddSolver registers a solve of corners onto the unit square.
func (s *Suite) AddSolver(method homography.Method, corners geom.CornerSet) {
	solver := homography.NewSolver(method)
	s.Add("solve/"+string(method), func() error {
		_, err := solver.Solve(corners, geom.Canonical())
		return err
	})
}

// AddWarp registers a full-frame CPU warp of a calibration grid at
// width x height.
func (s *Suite) AddWarp(h geom.Matrix, params effect.Params, width, height int) {
	img := warp.Grid(width, height, 8)
	s.Add(fmt.Sprintf("warp/%dx%d", width, height), func() error {
		out := warp.Warp(img, h, params, width, height)
		if out.Bounds().Dx() != width {
			return fmt.Errorf("warp produced width %d", out.Bounds().Dx())
		}
		return nil
	})
}
