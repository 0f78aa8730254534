package typecheck

import (
	"context"
	"testing"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// method wraps statements in a method body so trees resemble parsed input.
func method(name string, statements ...*syntax.Node) *syntax.Node {
	body := syntax.NewOther("block", "{ ... }", statements...)
	return syntax.NewOther("method_declaration", "void "+name+"() { ... }", body)
}

// local declares a variable of the referenced type.
func local(typeName, variable string) *syntax.Node {
	return syntax.NewOther("local_variable_declaration", typeName+" "+variable+";", syntax.NewTypeRef(typeName))
}

func mustCheck(t *testing.T, root *syntax.Node, opts Options) *Report {
	t.Helper()
	report, err := Check(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	return report
}

func references(report *Report) []string {
	var out []string
	for _, v := range report.Violations() {
		out = append(out, v.Reference)
	}
	return out
}
