package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/platinummonkey/themeforge/pkg/config"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/store"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

func newPruneCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "prune",
		Description: "Remove artifact store entries older than a maximum age",
	}
	cmd.Flags = newFlagSet(env, cmd.Name)

	maxAge := cmd.Flags.Duration("max-age", 0, "Remove entries older than this (overrides THEMEFORGE_PRUNE_MAX_AGE)")
	cacheRoot := cmd.Flags.String("cache-root", "", "Artifact store directory (overrides THEMEFORGE_CACHE_ROOT)")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parseFlags(cmd, args); err != nil {
			return err
		}
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if *cacheRoot != "" {
			cfg.Paths.CacheRoot = *cacheRoot
		}
		if *maxAge > 0 {
			cfg.Prune.MaxAge = *maxAge
		}

		st, err := store.New(cfg.Paths.CacheRoot, observability.NewLogger(cfg.Observability.LogLevel, env.Stderr))
		if err != nil {
			return err
		}
		removed, err := st.Prune(cfg.Prune.MaxAge)
		if err != nil {
			return err
		}
		env.Log.Infof("Removed %d entries older than %s from %s", removed, cfg.Prune.MaxAge, st.Root())
		fmt.Fprintln(env.Stdout, removed)
		return nil
	}
	return cmd
}

func newThemesCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "themes",
		Description: "List framework versions and their presets",
	}
	cmd.Flags = newFlagSet(env, cmd.Name)

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parseFlags(cmd, args); err != nil {
			return err
		}
		for _, v := range theme.KnownVersions() {
			fmt.Fprintf(env.Stdout, "%s\t%s\n", v, strings.Join(theme.Presets(v), " "))
		}
		return nil
	}
	return cmd
}
