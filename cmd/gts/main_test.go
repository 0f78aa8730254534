package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gts-typecheck/pkg/config"
	"github.com/odvcencio/gts-typecheck/pkg/ignore"
	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

func TestNewCLI_HasCoreCommandsAndAliases(t *testing.T) {
	app := newCLI()

	for alias, id := range map[string]string{
		"gtscheck":  "gtscheck",
		"check":     "gtscheck",
		"gtslint":   "gtslint",
		"lint":      "gtslint",
		"gtsconfig": "gtsconfig",
		"config":    "gtsconfig",
	} {
		if _, ok := app.specs[id]; !ok {
			t.Fatalf("missing command spec for %q", id)
		}
		if mapped, ok := app.aliasToID[alias]; !ok || mapped != id {
			t.Fatalf("alias %q mapped to %q (ok=%v), want %q", alias, mapped, ok, id)
		}
	}
}

func TestCLI_RunUnknownCommand(t *testing.T) {
	app := newCLI()
	if err := app.Run([]string{"unknown-command"}); err == nil {
		t.Fatal("expected unknown command to return error")
	}
}

func TestCLI_HelpSubcommand(t *testing.T) {
	app := newCLI()

	originalStdout := os.Stdout
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe failed: %v", err)
	}
	os.Stdout = writePipe
	defer func() {
		os.Stdout = originalStdout
	}()

	runErr := app.Run([]string{"help", "check"})
	_ = writePipe.Close()
	if runErr != nil {
		t.Fatalf("Run returned error: %v", runErr)
	}

	var output bytes.Buffer
	if _, err := output.ReadFrom(readPipe); err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}
	text := output.String()
	if !strings.Contains(text, "Usage:   gts gtscheck") {
		t.Fatalf("expected command usage in help output, got %q", text)
	}
}

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func executeCmd(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := runCobra(cmd, args)
	return out.String(), err
}

const unresolvedSource = `package demo;

class Main {
  Helper helper;
}
`

func TestRunCheck_UnresolvedReference(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", unresolvedSource)

	out, err := executeCmd(t, newCheckCmd(), tmpDir)
	if err == nil {
		t.Fatal("expected check to fail with violation")
	}
	assertExitCode(t, err, 3)
	if !strings.Contains(out, "Main.java:4:3 unresolved type Helper in demo.Main") {
		t.Fatalf("expected violation line, got %q", out)
	}
	if !strings.Contains(out, "check: files=1 violations=1") {
		t.Fatalf("expected summary line, got %q", out)
	}
}

func TestRunCheck_NoFailWhenDisabled(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", unresolvedSource)

	if _, err := executeCmd(t, newCheckCmd(), tmpDir, "--fail-on-violations=false"); err != nil {
		t.Fatalf("expected success with --fail-on-violations=false, got %v", err)
	}
}

func TestRunCheck_ImplicitImports(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", "package demo;\n\nclass Main {\n  String name;\n  Integer count;\n}\n")

	if _, err := executeCmd(t, newCheckCmd(), tmpDir); err == nil {
		t.Fatal("expected String and Integer to be unresolved without implicit imports")
	}
	out, err := executeCmd(t, newCheckCmd(), tmpDir, "--implicit", "java.lang.String", "--implicit", "java.lang.Integer")
	if err != nil {
		t.Fatalf("expected implicit imports to resolve references, got %v (%s)", err, out)
	}
	if !strings.Contains(out, "violations=0") {
		t.Fatalf("expected clean summary, got %q", out)
	}
}

func TestRunCheck_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", "package demo;\nimport java.util.*;\n\nclass Main {\n  List items;\n}\n")

	if _, err := executeCmd(t, newCheckCmd(), tmpDir); err == nil {
		t.Fatal("expected wildcard import to be opaque by default")
	}

	writeSource(t, tmpDir, config.FileName, "trust_on_demand_imports: true\n")
	if _, err := executeCmd(t, newCheckCmd(), tmpDir); err != nil {
		t.Fatalf("expected discovered config to trust wildcard imports, got %v", err)
	}

	if _, err := executeCmd(t, newCheckCmd(), tmpDir, "--trust-on-demand=false"); err == nil {
		t.Fatal("expected flag to override config file")
	}
}

func TestRunCheck_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", unresolvedSource)
	writeSource(t, tmpDir, "Clean.java", "package demo;\n\nclass Clean {}\n")

	out, err := executeCmd(t, newCheckCmd(), tmpDir, "--json")
	assertExitCode(t, err, 3)

	var payload struct {
		Files      int                   `json:"files"`
		Violations []typecheck.Violation `json:"violations"`
		Count      int                   `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out, err)
	}
	if payload.Files != 2 || payload.Count != 1 || len(payload.Violations) != 1 {
		t.Fatalf("unexpected payload %+v", payload)
	}
	v := payload.Violations[0]
	if v.Reference != "Helper" || v.File != "Main.java" || v.Line != 4 || v.Scope != "demo.Main" {
		t.Fatalf("unexpected violation %+v", v)
	}
}

func TestRunCheck_Baseline(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", unresolvedSource)
	baselinePath := filepath.Join(tmpDir, ".gts", "baseline.json")

	out, err := executeCmd(t, newCheckCmd(), tmpDir, "--write-baseline", baselinePath)
	if err != nil {
		t.Fatalf("write baseline returned error: %v", err)
	}
	if !strings.Contains(out, "baseline: wrote 1 violations") {
		t.Fatalf("unexpected output %q", out)
	}

	out, err = executeCmd(t, newCheckCmd(), tmpDir, "--baseline", baselinePath)
	if err != nil {
		t.Fatalf("expected baselined violation to pass, got %v", err)
	}
	if !strings.Contains(out, "violations=0 baselined=1") {
		t.Fatalf("expected baselined summary, got %q", out)
	}

	// A new reference is not covered by the baseline.
	writeSource(t, tmpDir, "Main.java", "package demo;\n\nclass Main {\n  Helper helper;\n  Other other;\n}\n")
	out, err = executeCmd(t, newCheckCmd(), tmpDir, "--baseline", baselinePath)
	assertExitCode(t, err, 3)
	if !strings.Contains(out, "unresolved type Other") || strings.Contains(out, "unresolved type Helper") {
		t.Fatalf("expected only the new violation, got %q", out)
	}
}

func TestRunCheck_MissingBaselineSuppressesNothing(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", unresolvedSource)

	_, err := executeCmd(t, newCheckCmd(), tmpDir, "--baseline", filepath.Join(tmpDir, "missing.json"))
	assertExitCode(t, err, 3)
}

func TestRunCheck_IgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "generated/Main.java", unresolvedSource)
	writeSource(t, tmpDir, "src/Clean.java", "class Clean {}\n")
	writeSource(t, tmpDir, ignore.FileName, "generated/\n")

	out, err := executeCmd(t, newCheckCmd(), tmpDir)
	if err != nil {
		t.Fatalf("expected ignored directory to be skipped, got %v (%s)", err, out)
	}
	if !strings.Contains(out, "files=1") {
		t.Fatalf("expected one checked file, got %q", out)
	}
}

func TestRunCheck_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", "class Main {}\n")
	configPath := writeSource(t, tmpDir, "custom.yaml", "workers: -2\n")

	_, err := executeCmd(t, newCheckCmd(), tmpDir, "--config", configPath)
	if err == nil || !strings.Contains(err.Error(), "workers must not be negative") {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestRunLint_SwitchViolation(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", `class Main {
  int pick(int x) {
    switch (x) {
      case 1: return 1;
      case 2: return 2;
      case 3: return 3;
      default: return 0;
    }
  }
}
`)

	if _, err := executeCmd(t, newLintCmd(), tmpDir, "--rule", "no switch with more than 3 cases"); err != nil {
		t.Fatalf("expected three cases to pass, got %v", err)
	}
	out, err := executeCmd(t, newLintCmd(), tmpDir, "--rule", "no switch with more than 2 cases")
	assertExitCode(t, err, 3)
	if !strings.Contains(out, "rule=max-cases:2") {
		t.Fatalf("expected switch violation, got %q", out)
	}
}

func TestRunLint_NoImportViolation(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", "import java.sql.Connection;\n\nclass Main {\n  Connection conn;\n}\n")

	_, err := runLintArgs(t, tmpDir, "--rule", "no import java.sql.*")
	assertExitCode(t, err, 3)
}

func TestRunLint_RulesFromConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, "Main.java", "class Main {\n  static final int MAX_SIZE = 4;\n}\n")
	writeSource(t, tmpDir, config.FileName, "rules:\n  - no all caps identifiers\n")

	out, err := executeCmd(t, newLintCmd(), tmpDir)
	assertExitCode(t, err, 3)
	if !strings.Contains(out, "MAX_SIZE") || !strings.Contains(out, "lint: rules=1 violations=1") {
		t.Fatalf("expected all-caps violation from config rules, got %q", out)
	}
}

func TestRunLint_InvalidRule(t *testing.T) {
	_, err := executeCmd(t, newLintCmd(), t.TempDir(), "--rule", "no spaghetti")
	if err == nil || !strings.Contains(err.Error(), "parse rules") {
		t.Fatalf("expected rule parse error, got %v", err)
	}
}

func TestRunConfig(t *testing.T) {
	tmpDir := t.TempDir()
	writeSource(t, tmpDir, config.FileName, "workers: 3\n")

	out, err := executeCmd(t, newConfigCmd(), tmpDir, "--implicit", "java.lang.*")
	if err != nil {
		t.Fatalf("config returned error: %v", err)
	}
	if !strings.Contains(out, "workers: 3") || !strings.Contains(out, "java.lang.*") {
		t.Fatalf("expected merged settings, got %q", out)
	}
	if !strings.Contains(out, "# "+filepath.Join(tmpDir, config.FileName)) {
		t.Fatalf("expected config path header, got %q", out)
	}
}

func runLintArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeCmd(t, newLintCmd(), args...)
}

func TestShouldSkipWatchDir(t *testing.T) {
	root := filepath.Clean("/tmp/repo")
	matcher := ignore.ParsePatterns([]string{"generated/"})
	cases := []struct {
		path string
		name string
		want bool
	}{
		{path: root, name: "repo", want: false},
		{path: filepath.Join(root, ".git"), name: ".git", want: true},
		{path: filepath.Join(root, "target"), name: "target", want: true},
		{path: filepath.Join(root, ".hidden"), name: ".hidden", want: true},
		{path: filepath.Join(root, "generated"), name: "generated", want: true},
		{path: filepath.Join(root, "src"), name: "src", want: false},
	}

	for _, tc := range cases {
		got := shouldSkipWatchDir(root, tc.path, tc.name, matcher)
		if got != tc.want {
			t.Fatalf("shouldSkipWatchDir(%q,%q)=%v want=%v", tc.path, tc.name, got, tc.want)
		}
	}
}

func TestShouldIgnoreWatchPath(t *testing.T) {
	root := filepath.Clean("/tmp/repo")
	ignored := map[string]bool{
		filepath.Join(root, ".gts", "baseline.json"): true,
	}

	if !shouldIgnoreWatchPath(filepath.Join(root, ".gts", "baseline.json"), ignored, root, nil) {
		t.Fatal("expected explicit ignored path to be ignored")
	}
	if !shouldIgnoreWatchPath(filepath.Join(root, ".#Main.java"), ignored, root, nil) {
		t.Fatal("expected editor lockfile to be ignored")
	}
	if shouldIgnoreWatchPath(filepath.Join(root, "Main.java"), ignored, root, nil) {
		t.Fatal("did not expect regular source file to be ignored")
	}
}

func TestWatchRootsDirectoryAndFile(t *testing.T) {
	tmpDir := t.TempDir()
	filePath := writeSource(t, tmpDir, "Main.java", "class Main {}\n")

	dirRoots, err := watchRoots(tmpDir)
	if err != nil {
		t.Fatalf("watchRoots(dir) returned error: %v", err)
	}
	if len(dirRoots) != 1 || filepath.Clean(dirRoots[0]) != filepath.Clean(tmpDir) {
		t.Fatalf("unexpected dir roots: %v", dirRoots)
	}

	fileRoots, err := watchRoots(filePath)
	if err != nil {
		t.Fatalf("watchRoots(file) returned error: %v", err)
	}
	if len(fileRoots) != 1 || filepath.Clean(fileRoots[0]) != filepath.Clean(tmpDir) {
		t.Fatalf("unexpected file roots: %v", fileRoots)
	}
}

func TestRootOf(t *testing.T) {
	roots := []string{"/tmp/repo", "/tmp/repo/module", "/tmp/other"}
	cases := map[string]string{
		"/tmp/repo/Main.java":         "/tmp/repo",
		"/tmp/repo/module/src/A.java": "/tmp/repo/module",
		"/tmp/repository/B.java":      "",
		"/tmp/other":                  "/tmp/other",
	}
	for path, want := range cases {
		if got := rootOf(roots, filepath.FromSlash(path)); got != filepath.FromSlash(want) {
			t.Fatalf("rootOf(%q)=%q want=%q", path, got, want)
		}
	}
}

func TestIsJavaSource(t *testing.T) {
	if !isJavaSource("/tmp/Main.java") || !isJavaSource("Upper.JAVA") {
		t.Fatal("expected .java files to be sources")
	}
	if isJavaSource("/tmp/build.gradle") {
		t.Fatal("did not expect build.gradle to be a source")
	}
}

func assertExitCode(t *testing.T, err error, want int) {
	t.Helper()
	withCode, ok := err.(interface{ ExitCode() int })
	if !ok {
		t.Fatalf("expected error with exit code, got %T (%v)", err, err)
	}
	if got := withCode.ExitCode(); got != want {
		t.Fatalf("unexpected exit code: got=%d want=%d err=%v", got, want, err)
	}
}
