package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gts-typecheck/pkg/index"
	"github.com/odvcencio/gts-typecheck/pkg/model"
	"github.com/odvcencio/gts-typecheck/pkg/typecheck"
)

type checkResult struct {
	Workspace  *model.Workspace
	Stats      index.BuildStats
	Violations []typecheck.Violation
	Gaps       []typecheck.Gap
	Total      int
	Baselined  int
}

func newCheckCmd() *cobra.Command {
	var settings settingsFlags
	var jsonOutput bool
	var baselinePath string
	var writeBaselinePath string
	var watch bool
	var debounce time.Duration
	var failOnViolations bool

	cmd := &cobra.Command{
		Use:     "check [paths...]",
		Aliases: []string{"gtscheck"},
		Short:   "Report type references that are neither imported nor declared in scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			targets := args
			if len(targets) == 0 {
				targets = []string{"."}
			}

			s, err := newSession(cmd, &settings, targets[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("baseline") {
				s.cfg.Baseline = baselinePath
			}

			if watch {
				return watchCheck(cmd, s, targets, debounce, jsonOutput)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			if strings.TrimSpace(writeBaselinePath) != "" {
				result, err := runCheck(ctx, s, targets, nil, nil)
				if err != nil {
					return err
				}
				baseline := index.NewBaseline(toReport(result.Violations))
				if err := index.SaveBaseline(writeBaselinePath, baseline); err != nil {
					return fmt.Errorf("write baseline: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "baseline: wrote %d violations to %s\n", len(baseline.Violations), writeBaselinePath)
				return nil
			}

			baseline, err := loadBaseline(s)
			if err != nil {
				return err
			}
			result, err := runCheck(ctx, s, targets, nil, baseline)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := emitCheckJSON(cmd, result); err != nil {
					return err
				}
			} else {
				printCheckResult(cmd.OutOrStdout(), result)
			}

			if len(result.Violations) > 0 && failOnViolations {
				return exitCodeError{
					code: 3,
					err:  fmt.Errorf("%d unresolved type references", len(result.Violations)),
				}
			}
			return nil
		},
	}

	settings.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit JSON output")
	cmd.Flags().StringVar(&baselinePath, "baseline", "", "suppress violations recorded in this baseline file")
	cmd.Flags().StringVar(&writeBaselinePath, "write-baseline", "", "record the current violations to this file and exit")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-check when Java sources change")
	cmd.Flags().DurationVar(&debounce, "debounce", 250*time.Millisecond, "watch mode debounce interval")
	cmd.Flags().BoolVar(&failOnViolations, "fail-on-violations", true, "exit non-zero when violations are found")
	return cmd
}

func runCheckCommand(args []string) error {
	return runCobra(newCheckCmd(), args)
}

// runCheck builds the workspace for targets, reusing unchanged units of
// previous, resolves it and applies baseline.
func runCheck(ctx context.Context, s *session, targets []string, previous *model.Workspace, baseline *index.Baseline) (*checkResult, error) {
	started := time.Now()
	ws, stats, err := s.builder.BuildPathsIncremental(targets, previous)
	if err != nil {
		return nil, err
	}
	for _, parseErr := range ws.Errors {
		s.logger.Warn("parse failed", "path", parseErr.Path, "error", parseErr.Error)
	}
	for _, file := range ws.Files {
		if len(file.SyntaxErrors) > 0 {
			first := file.SyntaxErrors[0]
			s.logger.Warn("syntax errors recovered",
				"path", file.Path,
				"count", len(file.SyntaxErrors),
				"line", first.Line,
				"column", first.Column,
			)
		}
	}

	report, err := typecheck.Check(ctx, ws.Program(), s.cfg.CheckOptions())
	if err != nil {
		return nil, err
	}
	for _, gap := range report.Gaps {
		s.logger.Warn("declaration skipped", "file", gap.File, "line", gap.Line, "name", gap.Name, "reason", gap.Reason)
	}

	remaining := baseline.Apply(report)
	result := &checkResult{
		Workspace:  ws,
		Stats:      stats,
		Violations: remaining.Violations(),
		Gaps:       report.Gaps,
		Total:      report.Len(),
	}
	result.Baselined = result.Total - len(result.Violations)

	s.logger.Info("check finished",
		"root", ws.Root,
		"files", ws.FileCount(),
		"parsed", stats.ParsedFiles,
		"reused", stats.ReusedFiles,
		"violations", len(result.Violations),
		"baselined", result.Baselined,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return result, nil
}

// loadBaseline reads the configured baseline. A missing file suppresses
// nothing.
func loadBaseline(s *session) (*index.Baseline, error) {
	path := strings.TrimSpace(s.cfg.Baseline)
	if path == "" {
		return nil, nil
	}
	baseline, err := index.LoadBaseline(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("baseline not found", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load baseline: %w", err)
	}
	s.logger.Debug("baseline loaded", "path", path, "violations", len(baseline.Violations))
	return baseline, nil
}

func toReport(violations []typecheck.Violation) *typecheck.Report {
	report := typecheck.NewReport()
	for _, v := range violations {
		report.Add(v)
	}
	return report
}

func emitCheckJSON(cmd *cobra.Command, result *checkResult) error {
	return emitJSON(cmd, struct {
		Root       string                `json:"root"`
		Files      int                   `json:"files"`
		Errors     []model.ParseError    `json:"errors,omitempty"`
		Violations []typecheck.Violation `json:"violations"`
		Gaps       []typecheck.Gap       `json:"gaps,omitempty"`
		Baselined  int                   `json:"baselined,omitempty"`
		Count      int                   `json:"count"`
	}{
		Root:       result.Workspace.Root,
		Files:      result.Workspace.FileCount(),
		Errors:     result.Workspace.Errors,
		Violations: nonNilViolations(result.Violations),
		Gaps:       result.Gaps,
		Baselined:  result.Baselined,
		Count:      len(result.Violations),
	})
}

func nonNilViolations(violations []typecheck.Violation) []typecheck.Violation {
	if violations == nil {
		return []typecheck.Violation{}
	}
	return violations
}

func printCheckResult(w io.Writer, result *checkResult) {
	for _, v := range result.Violations {
		fmt.Fprintf(w, "%s:%d:%d unresolved type %s in %s: %s\n",
			filepath.ToSlash(v.File),
			v.Line,
			v.Column,
			v.Reference,
			v.Scope,
			v.Context,
		)
	}
	fmt.Fprintf(w, "check: files=%d violations=%d", result.Workspace.FileCount(), len(result.Violations))
	if result.Baselined > 0 {
		fmt.Fprintf(w, " baselined=%d", result.Baselined)
	}
	if len(result.Gaps) > 0 {
		fmt.Fprintf(w, " gaps=%d", len(result.Gaps))
	}
	fmt.Fprintln(w)
	if len(result.Workspace.Errors) > 0 {
		fmt.Fprintf(w, "check: parse errors=%d (ignored)\n", len(result.Workspace.Errors))
	}
}

// watchCheck runs the check, then re-runs it after every debounced batch of
// source changes until interrupted.
func watchCheck(cmd *cobra.Command, s *session, targets []string, debounce time.Duration, jsonOutput bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var previous *model.Workspace
	check := func() {
		baseline, err := loadBaseline(s)
		if err != nil {
			s.logger.Error("baseline unavailable", "error", err)
		}
		result, err := runCheck(ctx, s, targets, previous, baseline)
		if err != nil {
			s.logger.Error("check failed", "error", err)
			return
		}
		previous = result.Workspace
		if jsonOutput {
			if err := emitCheckJSON(cmd, result); err != nil {
				s.logger.Error("write output failed", "error", err)
			}
			return
		}
		printCheckResult(cmd.OutOrStdout(), result)
	}

	check()

	ignorePaths := map[string]bool{}
	if s.cfg.Baseline != "" {
		if abs, err := filepath.Abs(s.cfg.Baseline); err == nil {
			ignorePaths[abs] = true
		}
	}
	return watchWithFSNotify(ctx, targets, debounce, ignorePaths, s.builder.Ignore(), func(changed []string) {
		s.logger.Debug("sources changed", "paths", len(changed))
		check()
	})
}
