package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/gts-typecheck/internal/logging"
	"github.com/odvcencio/gts-typecheck/pkg/config"
	"github.com/odvcencio/gts-typecheck/pkg/ignore"
	"github.com/odvcencio/gts-typecheck/pkg/index"
)

// settingsFlags are the flags shared by the commands that check a
// workspace. Set flags override the config file.
type settingsFlags struct {
	configPath    string
	workers       int
	trustOnDemand bool
	implicit      []string
	logLevel      string
	logFormat     string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "config file (default: discover "+config.FileName+" from the target upwards)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent resolver runs (0 = GOMAXPROCS)")
	cmd.Flags().BoolVar(&f.trustOnDemand, "trust-on-demand", false, "accept every reference in files with a wildcard import")
	cmd.Flags().StringArrayVar(&f.implicit, "implicit", nil, "implicitly imported type, e.g. java.lang.String or java.lang.* (repeatable)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.Flags().StringVar(&f.logFormat, "log-format", "", "log format: text or json")
}

// session is the resolved configuration for one command run.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	builder *index.Builder
}

func newSession(cmd *cobra.Command, flags *settingsFlags, target string) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(flags.configPath) != "" {
		cfg, err = config.Load(flags.configPath)
	} else {
		cfg, err = config.Discover(target)
	}
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = flags.workers
	}
	if changed("trust-on-demand") {
		cfg.TrustOnDemandImports = flags.trustOnDemand
	}
	if changed("implicit") {
		cfg.ImplicitImports = append(cfg.ImplicitImports, flags.implicit...)
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	cfg.Init()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())

	matcher, err := ignore.Discover(ignoreRoot(target), cfg.Ignore)
	if err != nil {
		return nil, err
	}
	builder := index.NewBuilder()
	builder.SetIgnore(matcher)

	logger.Debug("settings resolved",
		"config", cfg.Path,
		"workers", cfg.Workers,
		"trust_on_demand", cfg.TrustOnDemandImports,
		"implicit_imports", len(cfg.ImplicitImports),
		"ignore_patterns", matcher.Len(),
	)
	return &session{cfg: cfg, logger: logger, builder: builder}, nil
}

// ignoreRoot is the directory whose .gtsignore applies to target.
func ignoreRoot(target string) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		return target
	}
	if info, statErr := os.Stat(abs); statErr == nil && !info.IsDir() {
		return filepath.Dir(abs)
	}
	return abs
}

func targetArg(args []string) string {
	if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
		return args[0]
	}
	return "."
}

func emitJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func runCobra(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetArgs(args)
	return cmd.Execute()
}
