// Package syntax defines the generic, read-only node tree the type checker
// walks. Parsers for concrete grammars produce it; the checker only relies on
// Kind, the "name" field edge, Text and the parent back-reference.
package syntax

import "strings"

// Kind classifies a node for the analyses in this module. Grammar-specific
// node types are kept in Node.Type.
type Kind int

const (
	KindOther Kind = iota
	KindProgram
	KindCompilationUnit
	KindPackageDeclaration
	KindImportDeclaration
	KindTypeDeclaration
	KindTypeReference
	KindName
)

var kindNames = [...]string{
	KindOther:              "other",
	KindProgram:            "program",
	KindCompilationUnit:    "compilation_unit",
	KindPackageDeclaration: "package_declaration",
	KindImportDeclaration:  "import_declaration",
	KindTypeDeclaration:    "type_declaration",
	KindTypeReference:      "type_reference",
	KindName:               "name",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// FieldName is the field label of the child holding a declaration's name.
const FieldName = "name"

// Point is a 1-based line/column position.
type Point struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Node is one element of a syntax tree. Parent is a non-owning back-reference
// and must not be relied on once a node is detached from its tree.
type Node struct {
	Kind     Kind
	Type     string
	Field    string
	Text     string
	File     string
	Start    Point
	End      Point
	Parent   *Node
	Children []*Node

	// Static and OnDemand describe import declarations.
	Static   bool
	OnDemand bool

	// Missing marks a node the parser inserted to recover from an error.
	Missing bool
}

// ChildByField returns the first child attached under the given field label.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, child := range n.Children {
		if child.Field == field {
			return child
		}
	}
	return nil
}

// Name returns the whitespace-free text of the node's "name" child, or "" if
// the node has none.
func (n *Node) Name() string {
	child := n.ChildByField(FieldName)
	if child == nil {
		return ""
	}
	return CompactName(child.Text)
}

// Ancestor returns the nearest proper ancestor satisfying match.
func (n *Node) Ancestor(match func(*Node) bool) *Node {
	if n == nil {
		return nil
	}
	for cur := n.Parent; cur != nil; cur = cur.Parent {
		if match(cur) {
			return cur
		}
	}
	return nil
}

// EnclosingType returns the nearest enclosing type declaration, or nil for
// top-level declarations.
func (n *Node) EnclosingType() *Node {
	return n.Ancestor(func(candidate *Node) bool {
		return candidate.Kind == KindTypeDeclaration
	})
}

// Append attaches children to n, fixing their parent back-references.
func (n *Node) Append(children ...*Node) *Node {
	for _, child := range children {
		if child == nil {
			continue
		}
		child.Parent = n
		n.Children = append(n.Children, child)
	}
	return n
}

// CompactName strips all whitespace from a dotted name as written in source.
func CompactName(text string) string {
	return strings.Join(strings.Fields(text), "")
}

// CompactText collapses whitespace runs to a single space.
func CompactText(text string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(text)), " ")
}
