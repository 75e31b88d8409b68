package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) error
	Subcommands map[string]*Command
	Flags       *pflag.FlagSet
}

// Env carries the process streams and logger shared by all commands
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Log    *logrus.Logger
}

// DefaultEnv writes to the process streams, logging to stderr
func DefaultEnv() *Env {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	return &Env{Stdout: os.Stdout, Stderr: os.Stderr, Log: log}
}

// NewRootCommand creates the root command
func NewRootCommand(env *Env) *Command {
	if env == nil {
		env = DefaultEnv()
	}
	root := &Command{
		Name:        "themeforge",
		Description: "themeforge - themed stylesheet builder and dependency server",
		Subcommands: make(map[string]*Command),
		Flags:       pflag.NewFlagSet("themeforge", pflag.ContinueOnError),
	}

	root.Subcommands["build"] = newBuildCommand(env)
	root.Subcommands["serve"] = newServeCommand(env)
	root.Subcommands["prune"] = newPruneCommand(env)
	root.Subcommands["themes"] = newThemesCommand(env)

	root.Flags.SetOutput(env.Stderr)
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage(out)
		return nil
	}

	subcmd, ok := c.Subcommands[args[0]]
	if !ok {
		c.usage(out)
		return fmt.Errorf("unknown command: %s", args[0])
	}
	err := subcmd.Run(ctx, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

// usage prints the command usage
func (c *Command) usage(out io.Writer) {
	fmt.Fprintf(out, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(out, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
}

func newFlagSet(env *Env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

// parseFlags parses a subcommand's flags, printing usage on --help
func parseFlags(cmd *Command, args []string) error {
	if err := cmd.Flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	return nil
}
