package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gts-typecheck/internal/logging"
	"github.com/odvcencio/gts-typecheck/pkg/config"
	"github.com/odvcencio/gts-typecheck/pkg/ignore"
	"github.com/odvcencio/gts-typecheck/pkg/lint"
	"github.com/odvcencio/gts-typecheck/pkg/lsp"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gtsls: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var logLevel string
	var showVersion bool

	cmd := &cobra.Command{
		Use:           "gtsls",
		Short:         "Language server publishing unresolved Java type references as diagnostics",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), "gtsls "+version)
				return nil
			}

			svc, logger, err := newService(configPath, logLevel)
			if err != nil {
				return err
			}
			srv := lsp.NewServer(os.Stdin, os.Stdout, logger)
			svc.Register(srv)
			return srv.Serve()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default: discover "+config.FileName+" from the working directory upwards)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print the version and exit")
	return cmd
}

// newService builds an LSP service from the discovered config. Logs go to
// stderr; stdout carries the protocol.
func newService(configPath, logLevel string) (*lsp.Service, *slog.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(configPath) != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.Discover(".")
	}
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(logLevel) != "" {
		cfg.Log.Level = logLevel
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)

	phrases := cfg.Rules
	if len(phrases) == 0 {
		phrases = lint.DefaultRules()
	}
	rules, err := lint.ParseRules(phrases)
	if err != nil {
		return nil, nil, fmt.Errorf("parse rules: %w", err)
	}

	svc := lsp.NewService()
	svc.SetLogger(logger)
	svc.SetRules(rules)
	svc.SetCheckOptions(cfg.CheckOptions())

	root := "."
	if cfg.Path != "" {
		root = filepath.Dir(cfg.Path)
	}
	matcher, err := ignore.Discover(root, cfg.Ignore)
	if err != nil {
		return nil, nil, err
	}
	svc.Builder().SetIgnore(matcher)

	logger.Info("gtsls starting", "version", version, "config", cfg.Path, "rules", len(rules))
	return svc, logger, nil
}
