package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	var settings settingsFlags

	cmd := &cobra.Command{
		Use:     "config [path]",
		Aliases: []string{"gtsconfig"},
		Short:   "Print the effective settings as YAML",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, &settings, targetArg(args))
			if err != nil {
				return err
			}
			data, err := s.cfg.Marshal()
			if err != nil {
				return err
			}
			if s.cfg.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", s.cfg.Path)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	settings.register(cmd)
	return cmd
}

func runConfig(args []string) error {
	return runCobra(newConfigCmd(), args)
}
