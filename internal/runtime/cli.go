package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CLIRuntime implements the Runtime interface by spawning an engine binary
// such as docker or podman.
type CLIRuntime struct {
	binary string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewCLIRuntime creates a runtime driving the given binary with the
// process's standard streams attached.
func NewCLIRuntime(binary string) *CLIRuntime {
	return &CLIRuntime{
		binary: binary,
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// IsAvailable checks if the engine binary can be executed.
func (r *CLIRuntime) IsAvailable(ctx context.Context) error {
	if _, err := exec.LookPath(r.binary); err != nil {
		return fmt.Errorf("%s not available. Is %s installed?", r.binary, r.binary)
	}
	cmd := exec.CommandContext(ctx, r.binary, "version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s is not responding. Is the %s daemon running?", r.binary, r.binary)
	}
	return nil
}

// BuildImage runs "<binary> build" inside the build context directory.
func (r *CLIRuntime) BuildImage(ctx context.Context, opts BuildOptions) error {
	return r.run(ctx, opts.ContextDir, buildArgs(opts))
}

// RunContainer runs "<binary> run" and waits for the container to exit.
func (r *CLIRuntime) RunContainer(ctx context.Context, opts ContainerOptions) error {
	return r.run(ctx, "", runArgs(opts))
}

func (r *CLIRuntime) run(ctx context.Context, dir string, args []string) error {
	logrus.Debugf("Executing %s %s (in %q)", r.binary, strings.Join(args, " "), dir)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Dir = dir
	cmd.Stdin = r.stdin
	cmd.Stdout = r.stdout
	cmd.Stderr = r.stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Operation: r.binary + " " + args[0], Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %s: %w", r.binary, err)
	}
	return nil
}

// buildArgs produces: build -t <tag> --file <dockerfile> [--build-arg K=V]... .
func buildArgs(opts BuildOptions) []string {
	args := []string{"build", "-t", opts.Tag, "--file", opts.Dockerfile}

	keys := make([]string, 0, len(opts.BuildArgs))
	for k := range opts.BuildArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--build-arg", fmt.Sprintf("%s=%s", k, opts.BuildArgs[k]))
	}

	return append(args, ".")
}

// runArgs produces: run [-it] [--rm] [-v <host>:<container>]... [-p <host>:<container>]... <image>
func runArgs(opts ContainerOptions) []string {
	args := []string{"run"}

	switch {
	case opts.Interactive && opts.TTY:
		args = append(args, "-it")
	case opts.Interactive:
		args = append(args, "-i")
	case opts.TTY:
		args = append(args, "-t")
	}
	if opts.Remove {
		args = append(args, "--rm")
	}
	for _, volume := range opts.Volumes {
		args = append(args, "-v", volume)
	}
	for _, port := range opts.Ports {
		args = append(args, "-p", port)
	}

	return append(args, opts.Image)
}
