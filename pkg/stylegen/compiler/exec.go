package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// ExecConfig configures the local dart-sass binary
type ExecConfig struct {
	Binary  string        // default config.DefaultSassBinary
	Timeout time.Duration // default config.DefaultCompileTimeout
}

// ExecCompiler runs a dart-sass binary on the host
type ExecCompiler struct {
	binary   string
	timeout  time.Duration
	identity string
	logger   *observability.Logger
}

// NewExecCompiler resolves the binary and records its version
func NewExecCompiler(ctx context.Context, cfg ExecConfig, logger *observability.Logger) (*ExecCompiler, error) {
	if cfg.Binary == "" {
		cfg.Binary = config.DefaultSassBinary
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = config.DefaultCompileTimeout
	}

	path, err := exec.LookPath(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompilerUnavailable, err)
	}

	versionCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(versionCtx, path, "--version").Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %s --version: %v", ErrCompilerUnavailable, path, err)
	}
	version := strings.TrimSpace(string(out))
	if version == "" {
		return nil, fmt.Errorf("%w: %s printed no version", ErrCompilerUnavailable, path)
	}

	return &ExecCompiler{
		binary:   path,
		timeout:  cfg.Timeout,
		identity: "dart-sass-" + sanitizeIdentity(version),
		logger:   observability.OrDefault(logger),
	}, nil
}

// Identity returns "dart-sass-{version}"
func (c *ExecCompiler) Identity() string {
	return c.identity
}

// Compile writes the entry to a scratch directory and runs sass on it
func (c *ExecCompiler) Compile(ctx context.Context, in *Input) (*Output, error) {
	start := time.Now()

	workDir, err := os.MkdirTemp("", "themeforge-sass-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	outDir := filepath.Join(workDir, "out")
	if err := os.Mkdir(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	entry := filepath.Join(workDir, config.DefaultEntryName)
	if err := os.WriteFile(entry, in.Source, 0644); err != nil {
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}

	name := outputName(in)
	args := sassArgs(in.Options, in.LoadPaths, entry, filepath.Join(outDir, name))

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.WithField("compiler", c.identity).Debugf("running %s %s", c.binary, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &CompileError{
				Compiler:   c.identity,
				ExitCode:   exitErr.ExitCode(),
				Diagnostic: diagnostic(stderr.String(), stdout.String()),
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCompilerUnavailable, err)
	}

	files, err := collectFiles(outDir)
	if err != nil {
		return nil, err
	}

	return newOutput(name, files, stderr.String(), time.Since(start))
}

// diagnostic picks the most useful compiler message
func diagnostic(stderr, stdout string) string {
	if msg := strings.TrimSpace(stderr); msg != "" {
		return msg
	}
	return strings.TrimSpace(stdout)
}

// sanitizeIdentity keeps an identity usable as a cache key component
func sanitizeIdentity(version string) string {
	fields := strings.Fields(version)
	if len(fields) > 0 {
		version = fields[0]
	}
	return strings.NewReplacer(":", "_", ",", "_", "/", "_").Replace(version)
}
