package compiler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/platinummonkey/themeforge/pkg/observability"
	"github.com/platinummonkey/themeforge/pkg/stylegen/config"
)

// DockerConfig configures the containerised compiler
type DockerConfig struct {
	Image       string        // default config.DefaultSassImage
	Tag         string        // default config.DefaultSassTag
	MemoryLimit int64         // bytes, default config.DefaultDockerMemoryLimit
	CPULimit    float64       // cores, default config.DefaultDockerCPULimit
	Timeout     time.Duration // default config.DefaultCompileTimeout
}

func (c *DockerConfig) applyDefaults() {
	if c.Image == "" {
		c.Image = config.DefaultSassImage
	}
	if c.Tag == "" {
		c.Tag = config.DefaultSassTag
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = config.DefaultDockerMemoryLimit
	}
	if c.CPULimit == 0 {
		c.CPULimit = config.DefaultDockerCPULimit
	}
	if c.Timeout == 0 {
		c.Timeout = config.DefaultCompileTimeout
	}
}

// imageRef returns image:tag
func (c DockerConfig) imageRef() string {
	return c.Image + ":" + c.Tag
}

// DockerCompiler runs dart-sass inside a container. The image tag pins the
// compiler version, so it doubles as the compiler identity.
type DockerCompiler struct {
	client *client.Client
	config DockerConfig
	logger *observability.Logger

	mu     sync.Mutex
	pulled bool
}

// NewDockerCompiler connects to the Docker daemon from the environment
func NewDockerCompiler(ctx context.Context, cfg DockerConfig, logger *observability.Logger) (*DockerCompiler, error) {
	cfg.applyDefaults()

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompilerUnavailable, err)
	}

	// Verify Docker is available
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(pingCtx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("%w: %v", ErrCompilerUnavailable, err)
	}

	return &DockerCompiler{
		client: cli,
		config: cfg,
		logger: observability.OrDefault(logger),
	}, nil
}

// Identity returns "dart-sass-docker-{tag}"
func (c *DockerCompiler) Identity() string {
	return "dart-sass-docker-" + sanitizeIdentity(c.config.Tag)
}

// Compile runs one container per compilation with the entry, every load path
// and an output directory bind-mounted
func (c *DockerCompiler) Compile(ctx context.Context, in *Input) (*Output, error) {
	start := time.Now()

	if err := c.pullImage(ctx); err != nil {
		return nil, err
	}

	inputDir, err := os.MkdirTemp("", "themeforge-docker-input-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create input directory: %w", err)
	}
	defer os.RemoveAll(inputDir)

	outputDir, err := os.MkdirTemp("", "themeforge-docker-output-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	defer os.RemoveAll(outputDir)

	if err := os.WriteFile(filepath.Join(inputDir, config.DefaultEntryName), in.Source, 0644); err != nil {
		return nil, fmt.Errorf("failed to write entry: %w", err)
	}

	binds, containerLoadPaths := mountPlan(inputDir, outputDir, append(append([]string(nil), in.LoadPaths...), in.Options.IncludePaths...))
	opts := in.Options
	opts.IncludePaths = nil

	name := outputName(in)
	cmd := append([]string{"sass"}, sassArgs(opts, containerLoadPaths, "/input/"+config.DefaultEntryName, path.Join("/output", name))...)

	resp, err := c.client.ContainerCreate(ctx,
		&container.Config{
			Image:        c.config.imageRef(),
			Cmd:          cmd,
			WorkingDir:   "/input",
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			Binds: binds,
			Resources: container.Resources{
				Memory:   c.config.MemoryLimit,
				NanoCPUs: int64(c.config.CPULimit * 1e9),
			},
		},
		nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("%w: create container: %v", ErrCompilerUnavailable, err)
	}
	defer func() {
		// Remove container (force remove if still running)
		_ = c.client.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: true})
	}()

	if err := c.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("%w: start container: %v", ErrCompilerUnavailable, err)
	}

	execCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	exitCode := 0
	statusCh, errCh := c.client.ContainerWait(execCtx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, fmt.Errorf("%w: wait failed: %v", ErrCompilerUnavailable, err)
		}
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-execCtx.Done():
		return nil, ErrTimeout
	}

	var stdout, stderr bytes.Buffer
	if logs, err := c.client.ContainerLogs(ctx, resp.ID, container.LogsOptions{ShowStdout: true, ShowStderr: true}); err == nil {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, logs)
		logs.Close()
	}

	if exitCode != 0 {
		return nil, &CompileError{
			Compiler:   c.Identity(),
			ExitCode:   exitCode,
			Diagnostic: diagnostic(stderr.String(), stdout.String()),
		}
	}

	files, err := collectFiles(outputDir)
	if err != nil {
		return nil, err
	}
	return newOutput(name, files, stderr.String(), time.Since(start))
}

// pullImage ensures the compiler image is available locally
func (c *DockerCompiler) pullImage(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pulled {
		return nil
	}

	ref := c.config.imageRef()
	if _, err := c.client.ImageInspect(ctx, ref); err == nil {
		c.pulled = true
		return nil
	}

	pullCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	c.logger.WithField("image", ref).Info("pulling compiler image")
	reader, err := c.client.ImagePull(pullCtx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("%w: failed to pull image %s: %v", ErrCompilerUnavailable, ref, err)
	}
	defer reader.Close()

	// Read pull output to completion
	_, _ = io.Copy(io.Discard, reader)

	c.pulled = true
	return nil
}

// Close releases the Docker client
func (c *DockerCompiler) Close() error {
	return c.client.Close()
}

// mountPlan binds the scratch directories and every host load path into the
// container, returning the binds and the load paths as the container sees them
func mountPlan(inputDir, outputDir string, hostLoadPaths []string) ([]string, []string) {
	binds := []string{
		fmt.Sprintf("%s:/input:ro", inputDir),
		fmt.Sprintf("%s:/output", outputDir),
	}
	loadPaths := make([]string, 0, len(hostLoadPaths))
	for i, p := range hostLoadPaths {
		target := "/load/" + strconv.Itoa(i)
		binds = append(binds, fmt.Sprintf("%s:%s:ro", p, target))
		loadPaths = append(loadPaths, target)
	}
	return binds, loadPaths
}
