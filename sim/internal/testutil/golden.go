// Package testutil provides shared test infrastructure for the pathway simulator.
// It consolidates golden spike logs and assertion helpers used across
// sim/ and its sub-packages' tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// GoldenSpike is one delivered spike, identified by destination name.
type GoldenSpike struct {
	Destination string  `json:"destination"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
}

// GoldenLog represents the structure of testdata/<name>.json.
type GoldenLog struct {
	Description string        `json:"description"`
	Spikes      []GoldenSpike `json:"spikes"`
}

// LoadGoldenLog loads a golden spike log from the testdata directory.
// The path is resolved relative to this source file: sim/internal/testutil/testdata/.
func LoadGoldenLog(t *testing.T, name string) *GoldenLog {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "testdata", name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden log: %v", err)
	}

	var log GoldenLog
	if err := json.Unmarshal(data, &log); err != nil {
		t.Fatalf("Failed to parse golden log: %v", err)
	}
	return &log
}

// WriteFile writes content to name inside a fresh temp dir and returns the path.
func WriteFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}
