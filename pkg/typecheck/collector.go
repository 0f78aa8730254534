// Package typecheck decides, for every type reference in a syntax tree,
// whether the referenced name is lexically visible: imported, declared in the
// same top-level type, or declared in an enclosing nested type.
//
// Checking runs in two passes. Collect builds one Manifest per top-level type
// with every qualified name visible to it; Resolve walks that type's subtree
// with a stack of environments and reports the references it cannot match.
package typecheck

import (
	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// Origin records where a declared type name came from.
type Origin int

const (
	OriginDeclaration Origin = iota
	OriginImport
)

func (o Origin) String() string {
	if o == OriginImport {
		return "import"
	}
	return "declaration"
}

// Import is an import declaration as written in source.
type Import struct {
	Name     string `json:"name"`
	Static   bool   `json:"static,omitempty"`
	OnDemand bool   `json:"on_demand,omitempty"`
}

// Gap is a declaration that could not be qualified, usually because the tree
// is malformed. Gaps never abort collection.
type Gap struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// Manifest is the set of type names visible to one top-level type.
type Manifest struct {
	DeclaredTypes map[string]Origin
	Imports       []Import
	PackageName   string
	Root          *syntax.Node
	Gaps          []Gap
}

// QualifiedName returns the qualified name of the manifest's top-level type.
func (m Manifest) QualifiedName() string {
	if m.Root == nil {
		return ""
	}
	return qualify(m.PackageName, m.Root.Name())
}

// Has reports whether name is one of the manifest's declared types.
func (m Manifest) Has(name string) bool {
	_, ok := m.DeclaredTypes[name]
	return ok
}

// HasOnDemandImport reports whether any import of the manifest's compilation
// unit is a wildcard import.
func (m Manifest) HasOnDemandImport() bool {
	for _, imp := range m.Imports {
		if imp.OnDemand {
			return true
		}
	}
	return false
}

// Collect walks root once and returns one manifest per top-level type
// declaration, in source order.
func Collect(root *syntax.Node) []Manifest {
	c := &collector{}
	syntax.Walk(root, c)
	return c.manifests
}

type collector struct {
	manifests []Manifest

	packageName string
	imports     []Import

	// current is nil outside a top-level type.
	current *Manifest
	// open holds the qualified names of the enclosing type declarations; ""
	// marks one that could not be qualified.
	open []string
}

func (c *collector) Enter(node *syntax.Node) syntax.WalkAction {
	switch node.Kind {
	case syntax.KindCompilationUnit:
		c.packageName = ""
		c.imports = nil
	case syntax.KindPackageDeclaration:
		c.packageName = node.Name()
	case syntax.KindImportDeclaration:
		c.addImport(node)
	case syntax.KindTypeDeclaration:
		c.enterType(node)
	}
	return syntax.WalkContinue
}

func (c *collector) Exit(node *syntax.Node) {
	if node.Kind != syntax.KindTypeDeclaration {
		return
	}
	if len(c.open) > 0 {
		c.open = c.open[:len(c.open)-1]
	}
	if len(c.open) > 0 || c.current == nil {
		return
	}
	c.manifests = append(c.manifests, *c.current)
	c.current = nil
}

func (c *collector) addImport(node *syntax.Node) {
	name := node.Name()
	if name == "" {
		return
	}
	if node.OnDemand {
		name += ".*"
	}
	imp := Import{Name: name, Static: node.Static, OnDemand: node.OnDemand}
	c.imports = append(c.imports, imp)
	if c.current != nil {
		// Imports cannot appear inside a type body in well-formed input, but
		// a recovered parse may place one there.
		c.current.Imports = append(c.current.Imports, imp)
		c.current.DeclaredTypes[name] = OriginImport
	}
}

func (c *collector) enterType(node *syntax.Node) {
	simple := node.Name()
	if c.current == nil {
		c.current = c.newManifest(node)
	}

	if len(c.open) == 0 {
		if simple == "" {
			c.gap(node, "", "type declaration has no name")
			c.open = append(c.open, "")
			return
		}
		qualified := qualify(c.packageName, simple)
		c.current.DeclaredTypes[qualified] = OriginDeclaration
		c.open = append(c.open, qualified)
		return
	}

	enclosing := c.open[len(c.open)-1]
	switch {
	case simple == "":
		c.gap(node, "", "nested type declaration has no name")
		c.open = append(c.open, "")
	case enclosing == "":
		c.gap(node, simple, "enclosing type has no qualified name")
		c.open = append(c.open, "")
	default:
		qualified := enclosing + "." + simple
		c.current.DeclaredTypes[qualified] = OriginDeclaration
		c.open = append(c.open, qualified)
	}
}

func (c *collector) newManifest(root *syntax.Node) *Manifest {
	m := &Manifest{
		DeclaredTypes: make(map[string]Origin, len(c.imports)+4),
		Imports:       append([]Import(nil), c.imports...),
		PackageName:   c.packageName,
		Root:          root,
	}
	for _, imp := range c.imports {
		m.DeclaredTypes[imp.Name] = OriginImport
	}
	return m
}

func (c *collector) gap(node *syntax.Node, name, reason string) {
	c.current.Gaps = append(c.current.Gaps, Gap{
		File:   fileOf(node),
		Line:   node.Start.Line,
		Name:   name,
		Reason: reason,
	})
}

func qualify(packageName, simple string) string {
	if packageName == "" {
		return simple
	}
	return packageName + "." + simple
}

// fileOf returns the file a node belongs to, looking up through its
// compilation unit when the node itself carries none.
func fileOf(node *syntax.Node) string {
	for cur := node; cur != nil; cur = cur.Parent {
		if cur.File != "" {
			return cur.File
		}
	}
	return ""
}
