package lint

import (
	"fmt"
	"unicode"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// IdentifierNodeTypes lists node types whose text is a single identifier.
var IdentifierNodeTypes = map[string]bool{
	"identifier":      true,
	"type_identifier": true,
}

// IsAllCaps reports whether name has at least two letters and none of them
// is lowercase. Digits and underscores are ignored.
func IsAllCaps(name string) bool {
	letters := 0
	for _, r := range name {
		if !unicode.IsLetter(r) {
			continue
		}
		if !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters >= 2
}

// allCapsViolations reports each all-caps identifier once per file, at its
// first occurrence.
func allCapsViolations(rule Rule, unit *syntax.Node) []Violation {
	var out []Violation
	seen := map[string]bool{}
	syntax.Inspect(unit, func(node *syntax.Node) bool {
		if node.Kind == syntax.KindPackageDeclaration || node.Kind == syntax.KindImportDeclaration {
			return false
		}
		if !IdentifierNodeTypes[node.Type] || len(node.Children) > 0 {
			return true
		}
		name := syntax.CompactName(node.Text)
		if seen[name] || !IsAllCaps(name) {
			return true
		}
		seen[name] = true
		out = append(out, Violation{
			RuleID:    rule.ID,
			File:      unit.File,
			Kind:      "identifier",
			Name:      name,
			StartLine: node.Start.Line,
			EndLine:   node.End.Line,
			Column:    node.Start.Column,
			Span:      1,
			Message:   fmt.Sprintf("identifier %q is all caps", name),
		})
		return true
	})
	return out
}
