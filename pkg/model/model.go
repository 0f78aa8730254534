// Package model defines the core data types for a checked workspace: SourceFile, ParseError, and Workspace.
package model

import (
	"time"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// SourceFile is one parsed compilation unit.
type SourceFile struct {
	Path            string         `json:"path"`
	Language        string         `json:"language"`
	SizeBytes       int64          `json:"size_bytes,omitempty"`
	ModTimeUnixNano int64          `json:"mod_time_unix_nano,omitempty"`
	SyntaxErrors    []syntax.Point `json:"syntax_errors,omitempty"`
	Unit            *syntax.Node   `json:"-"`
}

// ParseError records a file that failed to parse.
type ParseError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Workspace is the set of parsed source files under a root directory.
type Workspace struct {
	Version     string       `json:"version"`
	Root        string       `json:"root"`
	GeneratedAt time.Time    `json:"generated_at"`
	Files       []SourceFile `json:"files"`
	Errors      []ParseError `json:"errors,omitempty"`
}

// FileCount returns the number of successfully parsed files in the workspace.
func (ws *Workspace) FileCount() int {
	if ws == nil {
		return 0
	}
	return len(ws.Files)
}

// SyntaxErrorCount returns the total number of recovered syntax errors.
func (ws *Workspace) SyntaxErrorCount() int {
	if ws == nil {
		return 0
	}

	total := 0
	for _, file := range ws.Files {
		total += len(file.SyntaxErrors)
	}
	return total
}

// File returns the source file with the given workspace-relative path.
func (ws *Workspace) File(path string) (*SourceFile, bool) {
	if ws == nil {
		return nil, false
	}
	for i := range ws.Files {
		if ws.Files[i].Path == path {
			return &ws.Files[i], true
		}
	}
	return nil, false
}

// Program joins every compilation unit under one program root. Units are
// re-parented to the returned node.
func (ws *Workspace) Program() *syntax.Node {
	program := syntax.NewProgram()
	if ws == nil {
		return program
	}
	for _, file := range ws.Files {
		if file.Unit != nil {
			program.Append(file.Unit)
		}
	}
	return program
}
