package typecheck

import (
	"strings"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// Resolve walks the manifest's top-level type and reports every type
// reference that is neither a declared base name nor reachable through the
// enclosing environments.
func Resolve(m Manifest, opts Options) *Report {
	r := newResolver(m, opts)
	syntax.Walk(m.Root, r)
	r.report.Gaps = append(r.report.Gaps, m.Gaps...)
	return r.report
}

type resolver struct {
	manifest  Manifest
	baseNames map[string]bool
	trustAll  bool
	scope     string

	stack  Stack
	report *Report
}

func newResolver(m Manifest, opts Options) *resolver {
	return &resolver{
		manifest:  m,
		baseNames: BaseNames(m),
		trustAll:  opts.TrustOnDemandImports && m.HasOnDemandImport(),
		scope:     m.QualifiedName(),
		report:    NewReport(),
	}
}

// BaseNames derives the names a reference may use for the manifest's
// declared types. An entry under the package prefix drops it, so nested
// types stay reachable by their dotted path; any other entry reduces to its
// last segment. Without a package every entry reduces to its last segment.
func BaseNames(m Manifest) map[string]bool {
	names := make(map[string]bool, len(m.DeclaredTypes))
	prefix := m.PackageName + "."
	for qualified := range m.DeclaredTypes {
		names[baseName(qualified, prefix)] = true
	}
	return names
}

func baseName(qualified, packagePrefix string) string {
	if strings.HasPrefix(qualified, packagePrefix) {
		return strings.TrimPrefix(qualified, packagePrefix)
	}
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}

func (r *resolver) Enter(node *syntax.Node) syntax.WalkAction {
	switch node.Kind {
	case syntax.KindTypeDeclaration:
		r.stack.Push(node.Name())
	case syntax.KindTypeReference:
		r.check(node)
	}
	return syntax.WalkContinue
}

func (r *resolver) Exit(node *syntax.Node) {
	if node.Kind == syntax.KindTypeDeclaration {
		r.stack.Pop()
	}
}

func (r *resolver) check(node *syntax.Node) {
	ref := syntax.CompactName(node.Text)
	if ref == "" || r.valid(ref) {
		return
	}

	context := ""
	if node.Parent != nil {
		context = syntax.CompactText(node.Parent.Text)
	}
	r.report.Add(Violation{
		Reference: ref,
		Context:   context,
		Scope:     r.scope,
		File:      fileOf(node),
		Line:      node.Start.Line,
		Column:    node.Start.Column,
	})
}

func (r *resolver) valid(ref string) bool {
	if r.baseNames[ref] {
		return true
	}
	for _, candidate := range r.stack.Candidates(ref) {
		if r.baseNames[candidate] {
			return true
		}
	}
	if strings.Contains(ref, ".") && r.manifest.Has(ref) {
		return true
	}
	return r.trustAll
}
