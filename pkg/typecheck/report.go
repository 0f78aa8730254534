package typecheck

import "sort"

// Violation is a type reference that did not resolve against its manifest.
type Violation struct {
	Reference string `json:"reference"`
	Context   string `json:"context"`
	Scope     string `json:"scope,omitempty"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Column    int    `json:"column,omitempty"`
}

type violationKey struct {
	reference string
	context   string
	file      string
	line      int
	column    int
}

func (v Violation) key() violationKey {
	return violationKey{
		reference: v.Reference,
		context:   v.Context,
		file:      v.File,
		line:      v.Line,
		column:    v.Column,
	}
}

// Report is a set of violations. Two violations are the same when their
// reference text, context text and position all match.
type Report struct {
	violations map[violationKey]Violation
	Gaps       []Gap
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{violations: make(map[violationKey]Violation)}
}

// Add records v, ignoring duplicates. It reports whether v was new.
func (r *Report) Add(v Violation) bool {
	if r.violations == nil {
		r.violations = make(map[violationKey]Violation)
	}
	k := v.key()
	if _, exists := r.violations[k]; exists {
		return false
	}
	r.violations[k] = v
	return true
}

// Merge adds every violation and gap of other to r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for _, v := range other.violations {
		r.Add(v)
	}
	r.Gaps = append(r.Gaps, other.Gaps...)
}

// Len returns the number of distinct violations.
func (r *Report) Len() int {
	if r == nil {
		return 0
	}
	return len(r.violations)
}

// Empty reports whether no violations were recorded.
func (r *Report) Empty() bool {
	return r.Len() == 0
}

// Contains reports whether some violation references the given text.
func (r *Report) Contains(reference string) bool {
	if r == nil {
		return false
	}
	for k := range r.violations {
		if k.reference == reference {
			return true
		}
	}
	return false
}

// Violations returns the violations sorted by file, position, then text.
func (r *Report) Violations() []Violation {
	if r == nil || len(r.violations) == 0 {
		return nil
	}
	out := make([]Violation, 0, len(r.violations))
	for _, v := range r.violations {
		out = append(out, v)
	}
	SortViolations(out)
	return out
}

// Filter returns a new report holding the violations for which keep is true.
func (r *Report) Filter(keep func(Violation) bool) *Report {
	filtered := NewReport()
	if r == nil {
		return filtered
	}
	for _, v := range r.violations {
		if keep(v) {
			filtered.Add(v)
		}
	}
	filtered.Gaps = append(filtered.Gaps, r.Gaps...)
	return filtered
}

// SortViolations orders violations deterministically.
func SortViolations(violations []Violation) {
	sort.Slice(violations, func(i, j int) bool {
		a, b := violations[i], violations[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		if a.Reference != b.Reference {
			return a.Reference < b.Reference
		}
		return a.Context < b.Context
	})
}
