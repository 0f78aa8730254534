package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

// Baseline is a recorded set of accepted violations. Entries match by file,
// reference and context so that line shifts don't resurrect them.
type Baseline struct {
	Version     string                `json:"version"`
	GeneratedAt time.Time             `json:"generated_at"`
	Violations  []typecheck.Violation `json:"violations"`
}

type baselineKey struct {
	file      string
	reference string
	context   string
}

// NewBaseline captures the violations of report.
func NewBaseline(report *typecheck.Report) *Baseline {
	return &Baseline{
		Version:     schemaVersion,
		GeneratedAt: time.Now().UTC(),
		Violations:  report.Violations(),
	}
}

// Apply returns the violations of report not covered by the baseline. Each
// baseline entry suppresses at most as many violations as it was recorded.
func (b *Baseline) Apply(report *typecheck.Report) *typecheck.Report {
	if b == nil || len(b.Violations) == 0 {
		return report
	}

	remaining := make(map[baselineKey]int, len(b.Violations))
	for _, v := range b.Violations {
		remaining[keyOf(v)]++
	}

	out := typecheck.NewReport()
	for _, v := range report.Violations() {
		k := keyOf(v)
		if remaining[k] > 0 {
			remaining[k]--
			continue
		}
		out.Add(v)
	}
	out.Gaps = append(out.Gaps, report.Gaps...)
	return out
}

func keyOf(v typecheck.Violation) baselineKey {
	return baselineKey{file: v.File, reference: v.Reference, context: v.Context}
}

func SaveBaseline(path string, baseline *Baseline) error {
	if baseline == nil {
		return nil
	}

	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeBaseline(file, baseline); err != nil {
		return fmt.Errorf("write baseline %s: %w", path, err)
	}
	return nil
}

// writeBaseline encodes baseline to w and closes it. A close failure is
// reported, since it may mean buffered data never reached the file.
func writeBaseline(w io.WriteCloser, baseline *Baseline) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(baseline); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func LoadBaseline(path string) (*Baseline, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var baseline Baseline
	if err := json.NewDecoder(file).Decode(&baseline); err != nil {
		return nil, fmt.Errorf("decode baseline %s: %w", path, err)
	}
	return &baseline, nil
}
