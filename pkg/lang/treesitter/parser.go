// Package treesitter implements the lang.Parser interface using gotreesitter's
// Java grammar, converting tree-sitter nodes into generic syntax trees.
package treesitter

import (
	"fmt"
	"strings"
	"sync"

	"github.com/odvcencio/gotreesitter"
	"github.com/odvcencio/gotreesitter/grammars"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// Parser converts source files into syntax trees with one gotreesitter
// grammar. It is safe for concurrent use; each Parse borrows a pooled
// gotreesitter parser.
type Parser struct {
	entry grammars.LangEntry
	lang  *gotreesitter.Language
	pool  sync.Pool
}

// NewJavaParser returns a parser for the registered Java grammar.
func NewJavaParser() (*Parser, error) {
	entry := grammars.DetectLanguage("Main.java")
	if entry == nil {
		return nil, fmt.Errorf("java grammar is not registered")
	}
	return NewParser(*entry)
}

// NewParser builds a parser for a registered grammar entry.
func NewParser(entry grammars.LangEntry) (*Parser, error) {
	if strings.TrimSpace(entry.Name) == "" {
		return nil, fmt.Errorf("language entry name is required")
	}
	if entry.Language == nil {
		return nil, fmt.Errorf("language loader is required for %q", entry.Name)
	}

	lang := entry.Language()
	if lang == nil {
		return nil, fmt.Errorf("language loader returned nil for %q", entry.Name)
	}

	p := &Parser{
		entry: entry,
		lang:  lang,
	}
	p.pool.New = func() any {
		return gotreesitter.NewParser(lang)
	}
	return p, nil
}

// Language returns the grammar name, "java" for NewJavaParser.
func (p *Parser) Language() string {
	return p.entry.Name
}

// Extensions returns the file extensions the grammar claims.
func (p *Parser) Extensions() []string {
	return append([]string(nil), p.entry.Extensions...)
}

// Parse returns the compilation unit for one source file. Syntax errors do
// not fail the parse; they survive as ERROR nodes, see SyntaxErrors.
func (p *Parser) Parse(path string, src []byte) (*syntax.Node, error) {
	unit := syntax.NewCompilationUnit(path)
	if len(src) == 0 {
		return unit, nil
	}

	tree, err := p.parseTree(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil || tree.RootNode() == nil {
		return unit, nil
	}
	defer tree.Release()

	root := tree.RootNode()
	unit.Text = root.Text(src)
	unit.Start = point(root.StartPoint())
	unit.End = point(root.EndPoint())
	for i := 0; i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil {
			continue
		}
		unit.Append(p.convert(child, src))
	}

	syntax.Inspect(unit, func(node *syntax.Node) bool {
		classify(node)
		return true
	})
	return unit, nil
}

func (p *Parser) parseTree(src []byte) (*gotreesitter.Tree, error) {
	parser := p.pool.Get().(*gotreesitter.Parser)
	defer p.pool.Put(parser)

	if p.entry.TokenSourceFactory != nil {
		ts := p.entry.TokenSourceFactory(src, p.lang)
		if ts != nil {
			return parser.ParseWithTokenSource(src, ts)
		}
	}
	return parser.Parse(src)
}

func (p *Parser) convert(node *gotreesitter.Node, src []byte) *syntax.Node {
	out := &syntax.Node{
		Type:    node.Type(p.lang),
		Text:    node.Text(src),
		Start:   point(node.StartPoint()),
		End:     point(node.EndPoint()),
		Missing: node.IsMissing(),
	}
	for i := 0; i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		out.Append(p.convert(child, src))
	}
	return out
}

func point(pt gotreesitter.Point) syntax.Point {
	return syntax.Point{Line: int(pt.Row) + 1, Column: int(pt.Column) + 1}
}

// classify assigns the generic kind of a converted node. It runs after the
// whole tree is built so parent types are available.
func classify(node *syntax.Node) {
	switch {
	case node.Kind == syntax.KindCompilationUnit:
	case TypeDeclarationNodeTypes[node.Type]:
		node.Kind = syntax.KindTypeDeclaration
		markName(node, "identifier")
	case node.Type == "package_declaration":
		node.Kind = syntax.KindPackageDeclaration
		markDottedName(node)
	case node.Type == "import_declaration":
		node.Kind = syntax.KindImportDeclaration
		markDottedName(node)
		for _, child := range node.Children {
			switch child.Type {
			case "static":
				node.Static = true
			case "asterisk":
				node.OnDemand = true
			}
		}
	case TypeReferenceNodeTypes[node.Type]:
		node.Kind = referenceKind(node)
	}
}

func referenceKind(node *syntax.Node) syntax.Kind {
	parent := node.Parent
	if parent != nil && parent.Type == "scoped_type_identifier" {
		return syntax.KindName
	}
	if node.Type == "type_identifier" {
		if parent != nil && TypeParameterNodeTypes[parent.Type] {
			return syntax.KindName
		}
		if strings.TrimSpace(node.Text) == "var" {
			return syntax.KindName
		}
	}
	return syntax.KindTypeReference
}

func markName(node *syntax.Node, nameType string) {
	for _, child := range node.Children {
		if child.Type == nameType {
			child.Field = syntax.FieldName
			child.Kind = syntax.KindName
			return
		}
	}
}

func markDottedName(node *syntax.Node) {
	for _, child := range node.Children {
		if DottedNameNodeTypes[child.Type] {
			child.Field = syntax.FieldName
			child.Kind = syntax.KindName
			return
		}
	}
}

// SyntaxErrors implements lang.ErrorReporter.
func (p *Parser) SyntaxErrors(root *syntax.Node) []syntax.Point {
	return SyntaxErrors(root)
}

// SyntaxErrors returns the positions of error and missing nodes in a parsed
// tree. Missing nodes carry the type the parser expected, so they are
// recognized by flag rather than by type.
func SyntaxErrors(root *syntax.Node) []syntax.Point {
	var points []syntax.Point
	syntax.Inspect(root, func(node *syntax.Node) bool {
		if node.Type == ErrorNodeType || node.Missing {
			points = append(points, node.Start)
			return false
		}
		return true
	})
	return points
}
