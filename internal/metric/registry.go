package metric

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

const DefaultName = "squared_euclidean"

var (
	ErrMetricExists   = errors.New("metric already registered")
	ErrMetricNotFound = errors.New("metric not found")
)

var metricRegistry = struct {
	mu sync.RWMutex
	m  map[string]Metric
}{
	m: make(map[string]Metric),
}

func init() {
	initializeBuiltInMetrics()
}

func initializeBuiltInMetrics() {
	MustRegister(DefaultName, SquaredEuclidean{})
	MustRegister("euclidean", Euclidean{})
	MustRegister("manhattan", Manhattan{})
	MustRegister("cosine", Cosine{})
}

func Register(name string, m Metric) error {
	if name == "" {
		return errors.New("metric name is required")
	}
	if m == nil {
		return errors.New("metric implementation is required")
	}

	metricRegistry.mu.Lock()
	defer metricRegistry.mu.Unlock()

	if _, exists := metricRegistry.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrMetricExists, name)
	}
	metricRegistry.m[name] = m
	return nil
}

func MustRegister(name string, m Metric) {
	if err := Register(name, m); err != nil {
		panic(err)
	}
}

// Lookup resolves a registered metric. An empty name selects the default.
func Lookup(name string) (Metric, error) {
	if name == "" {
		name = DefaultName
	}
	metricRegistry.mu.RLock()
	m, ok := metricRegistry.m[name]
	metricRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMetricNotFound, name)
	}
	return m, nil
}

// Resolve looks up name and wraps it in Parallel when workers > 1.
func Resolve(name string, workers int) (Metric, error) {
	m, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if workers > 1 {
		return Parallel{Base: m, Workers: workers}, nil
	}
	return m, nil
}

func Names() []string {
	metricRegistry.mu.RLock()
	defer metricRegistry.mu.RUnlock()

	names := make([]string, 0, len(metricRegistry.m))
	for name := range metricRegistry.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resetRegistryForTests() {
	metricRegistry.mu.Lock()
	metricRegistry.m = make(map[string]Metric)
	metricRegistry.mu.Unlock()
	initializeBuiltInMetrics()
}
