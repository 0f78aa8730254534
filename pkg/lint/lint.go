// Package lint evaluates phrase rules, such as "no unresolved types" or
// "no switch with more than 6 cases", against a parsed Java workspace.
package lint

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/odvcencio/gts-typecheck/pkg/model"
	"github.com/odvcencio/gts-typecheck/pkg/syntax"
	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

var (
	maxLinesRulePattern   = regexp.MustCompile(`(?i)^\s*no\s+([a-z_]+)\s+longer\s+than\s+(\d+)\s+lines?\s*$`)
	noImportRulePattern   = regexp.MustCompile(`(?i)^\s*no\s+import\s+(.+?)\s*$`)
	unresolvedRulePattern = regexp.MustCompile(`(?i)^\s*no\s+unresolved\s+types?\s*$`)
	switchRulePattern     = regexp.MustCompile(`(?i)^\s*no\s+switch(?:es)?\s+with\s+more\s+than\s+(\d+)\s+cases?\s*$`)
	allCapsRulePattern    = regexp.MustCompile(`(?i)^\s*no\s+all[\s-]*caps\s+identifiers?\s*$`)
)

const (
	RuleUnresolvedType = "unresolved_type"
	RuleMaxLines       = "max_lines"
	RuleNoImport       = "no_import"
	RuleMaxCases       = "max_cases"
	RuleAllCaps        = "all_caps"
)

// DefaultCaseLimit is the switch case limit of the default rule set.
const DefaultCaseLimit = 6

type Rule struct {
	ID         string `json:"id"`
	Raw        string `json:"raw"`
	Type       string `json:"type"`
	Kind       string `json:"kind,omitempty"`
	KindLabel  string `json:"kind_label,omitempty"`
	MaxLines   int    `json:"max_lines,omitempty"`
	MaxCases   int    `json:"max_cases,omitempty"`
	ImportPath string `json:"import_path,omitempty"`
}

type Violation struct {
	RuleID    string `json:"rule_id"`
	File      string `json:"file"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Column    int    `json:"column,omitempty"`
	Span      int    `json:"span"`
	Message   string `json:"message"`
}

// DefaultRules are the phrases evaluated when none are configured.
func DefaultRules() []string {
	return []string{
		"no unresolved types",
		fmt.Sprintf("no switch with more than %d cases", DefaultCaseLimit),
		"no all caps identifiers",
	}
}

func ParseRules(raws []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(raws))
	seen := map[string]bool{}
	for _, raw := range raws {
		rule, err := ParseRule(raw)
		if err != nil {
			return nil, err
		}
		if seen[rule.ID] {
			continue
		}
		seen[rule.ID] = true
		rules = append(rules, rule)
	}
	return rules, nil
}

func ParseRule(raw string) (Rule, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Rule{}, fmt.Errorf("rule cannot be empty")
	}

	if unresolvedRulePattern.MatchString(text) {
		return Rule{
			ID:   "unresolved-type",
			Raw:  text,
			Type: RuleUnresolvedType,
		}, nil
	}

	if allCapsRulePattern.MatchString(text) {
		return Rule{
			ID:   "all-caps",
			Raw:  text,
			Type: RuleAllCaps,
		}, nil
	}

	if matches := switchRulePattern.FindStringSubmatch(text); matches != nil {
		maxCases, err := strconv.Atoi(matches[1])
		if err != nil || maxCases < 0 {
			return Rule{}, fmt.Errorf("invalid case count in rule %q", raw)
		}
		return Rule{
			ID:       fmt.Sprintf("max-cases:%d", maxCases),
			Raw:      text,
			Type:     RuleMaxCases,
			MaxCases: maxCases,
		}, nil
	}

	if matches := maxLinesRulePattern.FindStringSubmatch(text); matches != nil {
		kind, kindLabel, err := normalizeRuleKind(matches[1])
		if err != nil {
			return Rule{}, err
		}

		maxLines, err := strconv.Atoi(matches[2])
		if err != nil || maxLines <= 0 {
			return Rule{}, fmt.Errorf("invalid max line count in rule %q", raw)
		}

		return Rule{
			ID:        fmt.Sprintf("max-lines:%s:%d", kind, maxLines),
			Raw:       text,
			Type:      RuleMaxLines,
			Kind:      kind,
			KindLabel: kindLabel,
			MaxLines:  maxLines,
		}, nil
	}

	if matches := noImportRulePattern.FindStringSubmatch(text); matches != nil {
		importPath := strings.TrimSpace(matches[1])
		importPath = strings.TrimSuffix(strings.Trim(importPath, `"'`), ";")
		if importPath == "" {
			return Rule{}, fmt.Errorf("import path cannot be empty in rule %q", raw)
		}
		return Rule{
			ID:         fmt.Sprintf("no-import:%s", importPath),
			Raw:        text,
			Type:       RuleNoImport,
			ImportPath: importPath,
		}, nil
	}
	return Rule{}, fmt.Errorf("unsupported rule %q", raw)
}

func normalizeRuleKind(kind string) (string, string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "type", "types", "class", "classes", "type_declaration":
		return "type_declaration", "type", nil
	case "method", "methods", "method_declaration":
		return "method_declaration", "method", nil
	default:
		return "", "", fmt.Errorf("unsupported rule target %q", kind)
	}
}

// Evaluate runs every rule over the workspace. Unresolved type references
// come from typecheck.Check with opts; the other rules are single tree scans.
func Evaluate(ctx context.Context, ws *model.Workspace, rules []Rule, opts typecheck.Options) ([]Violation, error) {
	if ws == nil || len(rules) == 0 {
		return nil, nil
	}

	violations := make([]Violation, 0, 16)
	for _, rule := range rules {
		switch rule.Type {
		case RuleUnresolvedType:
			report, err := typecheck.Check(ctx, ws.Program(), opts)
			if err != nil {
				return nil, err
			}
			violations = append(violations, FromReport(rule, report)...)
		case RuleMaxLines:
			for _, file := range ws.Files {
				violations = append(violations, maxLinesViolations(rule, file.Unit)...)
			}
		case RuleNoImport:
			for _, file := range ws.Files {
				violations = append(violations, importViolations(rule, file.Unit)...)
			}
		case RuleMaxCases:
			for _, file := range ws.Files {
				violations = append(violations, switchViolations(rule, file.Unit)...)
			}
		case RuleAllCaps:
			for _, file := range ws.Files {
				violations = append(violations, allCapsViolations(rule, file.Unit)...)
			}
		}
	}

	sortViolations(violations)

	return violations, nil
}

// FromReport converts unresolved type references into lint violations.
func FromReport(rule Rule, report *typecheck.Report) []Violation {
	out := make([]Violation, 0, report.Len())
	for _, v := range report.Violations() {
		out = append(out, Violation{
			RuleID:    rule.ID,
			File:      v.File,
			Kind:      "type_reference",
			Name:      v.Reference,
			StartLine: v.Line,
			EndLine:   v.Line,
			Column:    v.Column,
			Span:      1,
			Message:   fmt.Sprintf("type %q is not imported or declared in scope: %s", v.Reference, v.Context),
		})
	}
	return out
}

var methodNodeTypes = map[string]bool{
	"method_declaration":      true,
	"constructor_declaration": true,
}

func maxLinesViolations(rule Rule, unit *syntax.Node) []Violation {
	var out []Violation
	syntax.Inspect(unit, func(node *syntax.Node) bool {
		if !matchesRuleKind(rule.Kind, node) {
			return true
		}
		span := nodeSpan(node)
		if span <= rule.MaxLines {
			return true
		}
		name := node.Name()
		if name == "" {
			name = methodName(node)
		}
		out = append(out, Violation{
			RuleID:    rule.ID,
			File:      unit.File,
			Kind:      rule.Kind,
			Name:      name,
			StartLine: node.Start.Line,
			EndLine:   node.End.Line,
			Column:    node.Start.Column,
			Span:      span,
			Message:   fmt.Sprintf("%s %q spans %d lines (max %d)", rule.KindLabel, name, span, rule.MaxLines),
		})
		return true
	})
	return out
}

func matchesRuleKind(kind string, node *syntax.Node) bool {
	switch kind {
	case "type_declaration":
		return node.Kind == syntax.KindTypeDeclaration
	case "method_declaration":
		return methodNodeTypes[node.Type]
	}
	return false
}

// methodName returns the first identifier child of a method declaration.
func methodName(node *syntax.Node) string {
	for _, child := range node.Children {
		if child.Type == "identifier" {
			return syntax.CompactName(child.Text)
		}
	}
	return ""
}

func nodeSpan(node *syntax.Node) int {
	if node.Start.Line <= 0 || node.End.Line < node.Start.Line {
		return 0
	}
	return node.End.Line - node.Start.Line + 1
}

func importViolations(rule Rule, unit *syntax.Node) []Violation {
	var out []Violation
	syntax.Inspect(unit, func(node *syntax.Node) bool {
		if node.Kind == syntax.KindTypeDeclaration {
			return false
		}
		if node.Kind != syntax.KindImportDeclaration {
			return true
		}
		name := node.Name()
		if node.OnDemand {
			name += ".*"
		}
		if !importForbidden(rule.ImportPath, name) {
			return false
		}
		out = append(out, Violation{
			RuleID:    rule.ID,
			File:      unit.File,
			Kind:      "import",
			Name:      name,
			StartLine: node.Start.Line,
			EndLine:   node.End.Line,
			Column:    node.Start.Column,
			Span:      1,
			Message:   fmt.Sprintf("import %q is forbidden by rule", name),
		})
		return false
	})
	return out
}

// importForbidden matches an import against a rule path. A rule path ending
// in ".*" forbids every import under that package.
func importForbidden(rulePath, name string) bool {
	if name == rulePath {
		return true
	}
	if prefix, ok := strings.CutSuffix(rulePath, ".*"); ok {
		return strings.HasPrefix(name, prefix+".")
	}
	return false
}

func sortViolations(violations []Violation) {
	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File == violations[j].File {
			if violations[i].StartLine == violations[j].StartLine {
				if violations[i].RuleID == violations[j].RuleID {
					if violations[i].Column == violations[j].Column {
						return violations[i].Name < violations[j].Name
					}
					return violations[i].Column < violations[j].Column
				}
				return violations[i].RuleID < violations[j].RuleID
			}
			return violations[i].StartLine < violations[j].StartLine
		}
		return violations[i].File < violations[j].File
	})
}
