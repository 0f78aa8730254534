// Package ignore implements gitignore-style pattern matching for filtering
// the source files a check walks.
package ignore

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the per-root ignore file picked up by Discover.
const FileName = ".gtsignore"

type pattern struct {
	raw      string
	negated  bool
	dirOnly  bool
	anchored bool
	glob     string
}

// Matcher evaluates file paths against a set of gitignore-style patterns.
type Matcher struct {
	patterns []pattern
}

// Load reads patterns from a file, one per line.
func Load(path string) (*Matcher, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ParsePatterns(lines), nil
}

// Discover loads root/.gtsignore when present and appends extra patterns
// after it, so extra patterns win on conflicts.
func Discover(root string, extra []string) (*Matcher, error) {
	m, err := Load(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		m, err = &Matcher{}, nil
	}
	if err != nil {
		return nil, err
	}
	m.Add(extra...)
	return m, nil
}

// ParsePatterns builds a Matcher from raw pattern lines.
func ParsePatterns(lines []string) *Matcher {
	m := &Matcher{}
	m.Add(lines...)
	return m
}

// Add appends raw pattern lines to the matcher.
func (m *Matcher) Add(lines ...string) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		p := pattern{raw: line}

		if strings.HasPrefix(line, "!") {
			p.negated = true
			line = line[1:]
		}

		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}

		if strings.HasPrefix(line, "/") {
			p.anchored = true
			line = strings.TrimPrefix(line, "/")
		}

		if line == "" {
			continue
		}
		p.glob = line
		m.patterns = append(m.patterns, p)
	}
}

// Len returns the number of active patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}

// Match returns true if the given path should be ignored.
// The path should be slash-separated and relative to the project root.
// isDir indicates whether the path refers to a directory.
func (m *Matcher) Match(path string, isDir bool) bool {
	if m == nil || len(m.patterns) == 0 {
		return false
	}

	path = strings.TrimPrefix(filepath.ToSlash(path), "./")
	ignored := false

	for _, p := range m.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matchPattern(p, path) {
			ignored = !p.negated
		}
	}
	return ignored
}

// matchPattern checks whether a gitignore glob matches the given path.
// Anchored patterns and patterns with a slash match against the full path;
// a leading "**/" lets them match at any depth. Other patterns match any
// single path component.
func matchPattern(p pattern, path string) bool {
	glob := p.glob
	if strings.HasPrefix(glob, "**/") {
		rest := strings.TrimPrefix(glob, "**/")
		parts := strings.Split(path, "/")
		for i := range parts {
			if matched, _ := filepath.Match(rest, strings.Join(parts[i:], "/")); matched {
				return true
			}
		}
		return false
	}

	if p.anchored || strings.Contains(glob, "/") {
		matched, _ := filepath.Match(glob, path)
		return matched
	}

	for _, part := range strings.Split(path, "/") {
		if matched, _ := filepath.Match(glob, part); matched {
			return true
		}
	}
	return false
}
