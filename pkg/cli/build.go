package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/platinummonkey/themeforge/pkg/bundle"
	"github.com/platinummonkey/themeforge/pkg/config"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen"
	"github.com/platinummonkey/themeforge/pkg/theme"
)

// BuildResult is one entry of the build command's JSON output
type BuildResult struct {
	Theme        string              `json:"theme"`
	Dir          string              `json:"dir"`
	Stylesheet   string              `json:"stylesheet"`
	Warnings     []string            `json:"warnings,omitempty"`
	Dependencies []bundle.Dependency `json:"dependencies"`
}

func newBuildCommand(env *Env) *Command {
	cmd := &Command{
		Name:        "build",
		Description: "Compile or stage themes and print their dependency records",
	}
	cmd.Flags = newFlagSet(env, cmd.Name)

	themes := cmd.Flags.StringArrayP("theme", "t", nil, "Theme spec (flatly@5, 4) or theme file (.yaml, .json); repeatable")
	sourceMap := cmd.Flags.Bool("source-map", false, "Emit inline source maps")
	cacheRoot := cmd.Flags.String("cache-root", "", "Artifact store directory (overrides THEMEFORGE_CACHE_ROOT)")
	devMode := cmd.Flags.Bool("devmode", false, "Build with devmode diagnostics enabled")

	cmd.Run = func(ctx context.Context, args []string) error {
		if err := parseFlags(cmd, args); err != nil {
			return err
		}

		specs := append([]string(nil), (*themes)...)
		specs = append(specs, cmd.Flags.Args()...)
		if len(specs) == 0 {
			specs = []string{""}
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		if *cacheRoot != "" {
			cfg.Paths.CacheRoot = *cacheRoot
		}
		if *devMode {
			cfg.Flags.DevMode = true
		}

		opts := stylegen.DefaultCompileOptions()
		opts.SourceMap = *sourceMap

		results, err := runBuild(ctx, env, cfg, specs, opts)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return cmd
}

func runBuild(ctx context.Context, env *Env, cfg *config.Config, specs []string, opts stylegen.CompileOptions) ([]BuildResult, error) {
	logger := observability.NewLogger(cfg.Observability.LogLevel, env.Stderr)
	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	resolved := make([]*theme.Theme, len(specs))
	themes := make([]any, len(specs))
	for i, spec := range specs {
		arg, err := loadThemeArg(spec)
		if err != nil {
			return nil, err
		}
		if resolved[i], err = a.engine.Resolve(arg); err != nil {
			return nil, fmt.Errorf("theme %q: %w", spec, err)
		}
		themes[i] = resolved[i]
	}

	env.Log.Infof("Building %d theme(s) into %s", len(themes), cfg.Paths.CacheRoot)
	built, err := a.engine.Warm(ctx, themes, opts)
	if err != nil {
		return nil, err
	}

	results := make([]BuildResult, len(built))
	for i, artifact := range built {
		deps, err := a.engine.ThemeDependencies(ctx, resolved[i], opts)
		if err != nil {
			return nil, err
		}
		result := BuildResult{
			Theme:        resolved[i].String(),
			Dir:          artifact.Dir,
			Stylesheet:   artifact.Stylesheet,
			Dependencies: deps,
		}
		for _, w := range artifact.Warnings {
			env.Log.Warnf("%s: %s", result.Theme, w)
			result.Warnings = append(result.Warnings, w.String())
		}
		results[i] = result
	}
	return results, nil
}

// loadThemeArg treats arguments naming an existing theme file as a file and
// anything else as a theme spec
func loadThemeArg(arg string) (any, error) {
	if _, err := theme.FormatFromPath(arg); err == nil {
		if info, statErr := os.Stat(arg); statErr == nil && !info.IsDir() {
			t, err := theme.LoadFile(arg)
			if err != nil {
				return nil, err
			}
			return t, nil
		}
	}
	if arg == "" {
		return nil, nil
	}
	return arg, nil
}
