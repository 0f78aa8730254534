package lint

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// SwitchNodeTypes lists node types that open a switch. The Java grammar uses
// switch_expression for both statements and expressions.
var SwitchNodeTypes = map[string]bool{
	"switch_expression": true,
	"switch_statement":  true,
}

// SwitchLabelNodeTypes lists node types holding one case or default label.
var SwitchLabelNodeTypes = map[string]bool{
	"switch_label": true,
}

// CountCases returns the number of non-default labels belonging directly to
// sw. Labels of nested switches are not counted.
func CountCases(sw *syntax.Node) int {
	count := 0
	for _, child := range sw.Children {
		syntax.Inspect(child, func(node *syntax.Node) bool {
			if SwitchNodeTypes[node.Type] {
				return false
			}
			if SwitchLabelNodeTypes[node.Type] && !isDefaultLabel(node) {
				count++
			}
			return true
		})
	}
	return count
}

func isDefaultLabel(label *syntax.Node) bool {
	return strings.HasPrefix(syntax.CompactText(label.Text), "default")
}

func switchViolations(rule Rule, unit *syntax.Node) []Violation {
	var out []Violation
	syntax.Inspect(unit, func(node *syntax.Node) bool {
		if !SwitchNodeTypes[node.Type] {
			return true
		}
		cases := CountCases(node)
		if cases <= rule.MaxCases {
			return true
		}
		where := "switch"
		if owner := node.EnclosingType(); owner != nil && owner.Name() != "" {
			where = "switch in " + owner.Name()
		}
		out = append(out, Violation{
			RuleID:    rule.ID,
			File:      unit.File,
			Kind:      "switch",
			Name:      compactSnippet(node.Text),
			StartLine: node.Start.Line,
			EndLine:   node.End.Line,
			Column:    node.Start.Column,
			Span:      nodeSpan(node),
			Message:   fmt.Sprintf("%s has %d cases (max %d, not counting default)", where, cases, rule.MaxCases),
		})
		return true
	})
	return out
}

func compactSnippet(text string) string {
	trimmed := syntax.CompactText(text)
	const maxLen = 120
	if len(trimmed) <= maxLen {
		return trimmed
	}
	return trimmed[:maxLen] + "..."
}
