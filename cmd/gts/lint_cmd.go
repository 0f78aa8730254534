package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gts-typecheck/pkg/lint"
)

func newLintCmd() *cobra.Command {
	var settings settingsFlags
	var failOnViolations bool
	var jsonOutput bool
	var rawRules []string

	cmd := &cobra.Command{
		Use:     "lint [path]",
		Aliases: []string{"gtslint"},
		Short:   "Run phrase lint rules against Java sources",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := targetArg(args)
			s, err := newSession(cmd, &settings, target)
			if err != nil {
				return err
			}

			phrases := rawRules
			if len(phrases) == 0 {
				phrases = s.cfg.Rules
			}
			if len(phrases) == 0 {
				phrases = lint.DefaultRules()
			}
			rules, err := lint.ParseRules(phrases)
			if err != nil {
				return fmt.Errorf("parse rules: %w", err)
			}

			ws, err := s.builder.BuildPath(target)
			if err != nil {
				return err
			}
			for _, parseErr := range ws.Errors {
				s.logger.Warn("parse failed", "path", parseErr.Path, "error", parseErr.Error)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			violations, err := lint.Evaluate(ctx, ws, rules, s.cfg.CheckOptions())
			if err != nil {
				return err
			}
			s.logger.Debug("lint finished", "files", ws.FileCount(), "rules", len(rules), "violations", len(violations))

			if jsonOutput {
				if err := emitJSON(cmd, struct {
					Rules      []lint.Rule      `json:"rules,omitempty"`
					Violations []lint.Violation `json:"violations,omitempty"`
					Count      int              `json:"count"`
				}{
					Rules:      rules,
					Violations: violations,
					Count:      len(violations),
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, violation := range violations {
					fmt.Fprintf(out,
						"%s:%d:%d %s %s rule=%s %s\n",
						violation.File,
						violation.StartLine,
						violation.EndLine,
						violation.Kind,
						violation.Name,
						violation.RuleID,
						violation.Message,
					)
				}
				fmt.Fprintf(out, "lint: rules=%d violations=%d\n", len(rules), len(violations))
				if len(ws.Errors) > 0 {
					fmt.Fprintf(out, "lint: parse errors=%d (ignored)\n", len(ws.Errors))
				}
			}

			if len(violations) > 0 && failOnViolations {
				return exitCodeError{
					code: 3,
					err:  fmt.Errorf("%d lint violations", len(violations)),
				}
			}
			return nil
		},
	}

	settings.register(cmd)
	cmd.Flags().BoolVar(&failOnViolations, "fail-on-violations", true, "exit non-zero when violations are found")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit JSON output")
	cmd.Flags().StringArrayVar(&rawRules, "rule", nil, "lint rule phrase, e.g. 'no switch with more than 6 cases' (repeatable)")
	return cmd
}

func runLint(args []string) error {
	return runCobra(newLintCmd(), args)
}
