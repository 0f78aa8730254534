// Package lang defines the Parser interface for turning source files into
// generic syntax trees.
package lang

import "github.com/odvcencio/gts-typecheck/pkg/syntax"

// Parser converts source files into syntax trees.
type Parser interface {
	// Language returns the name of the language this parser handles.
	Language() string
	// Parse analyzes a source file and returns its compilation unit node.
	Parse(path string, src []byte) (*syntax.Node, error)
}

// ErrorReporter is implemented by parsers that recover from syntax errors
// and leave error nodes in the tree.
type ErrorReporter interface {
	SyntaxErrors(root *syntax.Node) []syntax.Point
}
