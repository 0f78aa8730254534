package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/odvcencio/fluffyui/keybind"
)

type commandSpec struct {
	ID      string
	Aliases []string
	Summary string
	Usage   string
	Run     func(args []string) error
}

type cli struct {
	registry   *keybind.CommandRegistry
	specs      map[string]commandSpec
	aliasToID  map[string]string
	invokeArgs []string
	invokeErr  error
}

type exitCodeError struct {
	code int
	err  error
}

func (e exitCodeError) Error() string {
	if e.err == nil {
		return "command failed"
	}
	return e.err.Error()
}

func (e exitCodeError) ExitCode() int {
	if e.code <= 0 {
		return 1
	}
	return e.code
}

func newCLI() *cli {
	c := &cli{
		registry:  keybind.NewRegistry(),
		specs:     make(map[string]commandSpec),
		aliasToID: make(map[string]string),
	}

	commands := []commandSpec{
		{
			ID:      "gtscheck",
			Aliases: []string{"check"},
			Summary: "Report type references that are neither imported nor declared in scope",
			Usage:   "gtscheck [paths...] [--config f] [--json] [--workers N] [--trust-on-demand] [--implicit name ...] [--baseline f] [--write-baseline f] [--watch] [--debounce 250ms] [--fail-on-violations]",
			Run:     runCheckCommand,
		},
		{
			ID:      "gtslint",
			Aliases: []string{"lint"},
			Summary: "Run phrase lint rules against Java sources",
			Usage:   "gtslint [path] [--config f] [--rule ...] [--fail-on-violations] [--json]",
			Run:     runLint,
		},
		{
			ID:      "gtsconfig",
			Aliases: []string{"config"},
			Summary: "Print the effective settings as YAML",
			Usage:   "gtsconfig [path] [--config f]",
			Run:     runConfig,
		},
	}

	for _, spec := range commands {
		specCopy := spec
		c.specs[specCopy.ID] = specCopy
		c.aliasToID[specCopy.ID] = specCopy.ID
		for _, alias := range specCopy.Aliases {
			c.aliasToID[strings.ToLower(alias)] = specCopy.ID
		}

		commandID := specCopy.ID
		c.registry.Register(keybind.Command{
			ID:          commandID,
			Title:       specCopy.ID,
			Description: specCopy.Summary,
			Handler: func(ctx keybind.Context) {
				c.invokeErr = c.specs[commandID].Run(c.invokeArgs)
			},
		})
	}

	return c
}

func (c *cli) Run(args []string) error {
	if len(args) == 0 {
		c.printHelp()
		return nil
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	if name == "-h" || name == "--help" {
		c.printHelp()
		return nil
	}
	if name == "help" {
		if len(args) == 1 {
			c.printHelp()
			return nil
		}
		id, ok := c.aliasToID[strings.ToLower(strings.TrimSpace(args[1]))]
		if !ok {
			return fmt.Errorf("unknown command %q", args[1])
		}
		c.printCommandHelp(id)
		return nil
	}

	commandID, ok := c.aliasToID[name]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args) > 1 {
		firstArg := strings.TrimSpace(args[1])
		if firstArg == "-h" || firstArg == "--help" {
			c.printCommandHelp(commandID)
			return nil
		}
	}

	c.invokeArgs = args[1:]
	c.invokeErr = nil

	if ok := c.registry.Execute(commandID, keybind.Context{}); !ok {
		return fmt.Errorf("command %q is not executable", commandID)
	}
	return c.invokeErr
}

func (c *cli) printHelp() {
	ids := make([]string, 0, len(c.specs))
	for id := range c.specs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Fprintf(os.Stderr, "gts v%s\n\n", version)
	fmt.Println("gts-typecheck CLI")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gts <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	for _, id := range ids {
		spec := c.specs[id]
		fmt.Printf("  %-10s %s\n", spec.ID, spec.Summary)
	}
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  gts gtscheck src/main/java")
	fmt.Println("  gts gtscheck . --implicit 'java.lang.*' --trust-on-demand")
	fmt.Println("  gts gtscheck . --write-baseline .gts/baseline.json")
	fmt.Println("  gts gtscheck . --baseline .gts/baseline.json --watch")
	fmt.Println("  gts gtslint . --rule 'no switch with more than 6 cases' --rule 'no all caps identifiers'")
	fmt.Println("  gts gtslint . --rule 'no import java.sql.*'")
	fmt.Println("  gts gtsconfig .")
	fmt.Println("  gts help gtscheck")
}

func (c *cli) printCommandHelp(id string) {
	spec, ok := c.specs[id]
	if !ok {
		return
	}

	fmt.Printf("%s\n", spec.ID)
	fmt.Println()
	fmt.Printf("Summary: %s\n", spec.Summary)
	fmt.Printf("Usage:   gts %s\n", spec.Usage)
	if len(spec.Aliases) > 0 {
		fmt.Printf("Aliases: %s\n", strings.Join(spec.Aliases, ", "))
	}
}
