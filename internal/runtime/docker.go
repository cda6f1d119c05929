package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/moby/patternmatcher/ignorefile"
	"github.com/sirupsen/logrus"
	"github.com/skorokithakis/dmake/internal/utils"
)

// outputDrainTimeout bounds how long a finished container's remaining
// output is copied before RunContainer returns.
const outputDrainTimeout = 2 * time.Second

// DockerRuntime implements the Runtime interface over the Docker Engine API.
type DockerRuntime struct {
	client *client.Client
	stdin  *stdinPump
	stdout io.Writer
	stderr io.Writer
}

// NewDockerRuntime creates a new Docker runtime.
func NewDockerRuntime() (*DockerRuntime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	return newDockerRuntime(cli, os.Stdin, os.Stdout, os.Stderr), nil
}

func newDockerRuntime(cli *client.Client, stdin io.Reader, stdout, stderr io.Writer) *DockerRuntime {
	r := &DockerRuntime{
		client: cli,
		stdout: stdout,
		stderr: stderr,
	}
	if stdin != nil {
		r.stdin = newStdinPump(stdin)
	}
	return r
}

// IsAvailable checks if Docker daemon is available.
func (r *DockerRuntime) IsAvailable(ctx context.Context) error {
	_, err := r.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("Docker daemon not responding. Is Docker running?")
	}
	return nil
}

// BuildImage sends the build context to the daemon and streams the build output.
func (r *DockerRuntime) BuildImage(ctx context.Context, opts BuildOptions) error {
	// Tar the context, honouring .dockerignore.
	buildCtx, err := buildContext(opts.ContextDir, opts.Dockerfile)
	if err != nil {
		return fmt.Errorf("failed to prepare build context %s: %w", opts.ContextDir, err)
	}
	defer buildCtx.Close()

	// Convert build arguments to the API's pointer form.
	buildArgs := make(map[string]*string, len(opts.BuildArgs))
	for k, v := range opts.BuildArgs {
		v := v
		buildArgs[k] = &v
	}

	// Build the image.
	buildResp, err := r.client.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{opts.Tag},
		Dockerfile: filepath.ToSlash(opts.Dockerfile),
		BuildArgs:  buildArgs,
		Remove:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to build image %s: %w", opts.Tag, err)
	}
	defer buildResp.Body.Close()

	// Stream build output to stdout while checking for errors.
	return streamBuildOutput(buildResp.Body, r.stdout)
}

// RunContainer creates, attaches to and starts a container, then waits for it.
func (r *DockerRuntime) RunContainer(ctx context.Context, opts ContainerOptions) error {
	// Create container.
	containerConfig := &container.Config{
		Image:        opts.Image,
		AttachStdin:  opts.Interactive,
		AttachStdout: true,
		AttachStderr: true,
		OpenStdin:    opts.Interactive,
		StdinOnce:    opts.Interactive,
		Tty:          opts.TTY && isTerminal(),
	}

	hostConfig := &container.HostConfig{
		AutoRemove: opts.Remove,
		Binds:      opts.Volumes,
	}

	// Configure port bindings if specified.
	if len(opts.Ports) > 0 {
		portBindings, exposedPorts, err := parsePortMappings(opts.Ports)
		if err != nil {
			return fmt.Errorf("failed to parse port mappings: %w", err)
		}
		hostConfig.PortBindings = portBindings
		containerConfig.ExposedPorts = exposedPorts
	}

	// Set terminal size if TTY is enabled.
	if containerConfig.Tty {
		width, height := utils.GetTerminalSize()
		hostConfig.ConsoleSize = [2]uint{uint(height), uint(width)}
	}

	resp, err := r.client.ContainerCreate(ctx, containerConfig, hostConfig, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container from %s: %w", opts.Image, err)
	}

	// Attach to container.
	hijackedResp, err := r.client.ContainerAttach(ctx, resp.ID, types.ContainerAttachOptions{
		Stream: true,
		Stdin:  opts.Interactive,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to attach to container: %w", err)
	}
	defer hijackedResp.Close()

	// Register the wait before starting so an auto-removed container cannot
	// exit unobserved.
	statusCh, errCh := r.client.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	// Start container.
	if err := r.client.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	// Setup terminal raw mode for TTY.
	if containerConfig.Tty {
		oldTermState, _ := utils.SetupTerminal()
		defer utils.RestoreTerminal(oldTermState)
	}

	// Setup signal forwarding.
	stopSignals := utils.ForwardSignals(ctx, r.client, resp.ID)
	defer stopSignals()

	// Route stdin to this container until it exits.
	if opts.Interactive && r.stdin != nil {
		detach := r.stdin.Attach(hijackedResp.Conn, hijackedResp.CloseWrite)
		defer detach()
	}

	// Copy container output to stdout/stderr.
	outputDone := make(chan struct{})
	go func() {
		defer close(outputDone)
		if containerConfig.Tty {
			_, _ = io.Copy(r.stdout, hijackedResp.Reader)
		} else {
			_, _ = stdcopy.StdCopy(r.stdout, r.stderr, hijackedResp.Reader)
		}
	}()

	// Wait for container to exit.
	select {
	case err := <-errCh:
		return fmt.Errorf("error waiting for container: %w", err)
	case status := <-statusCh:
		// Let the tail of the output through before the connection closes.
		select {
		case <-outputDone:
		case <-time.After(outputDrainTimeout):
			logrus.Debugf("Gave up waiting for output of %s", opts.Image)
		}
		if status.StatusCode != 0 {
			return &ExitError{Operation: "container " + opts.Image, Code: int(status.StatusCode)}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// streamBuildOutput copies the daemon's JSON build stream to out and
// surfaces any error message it carries.
func streamBuildOutput(body io.Reader, out io.Writer) error {
	decoder := json.NewDecoder(body)
	for {
		var msg map[string]interface{}
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode build output: %w", err)
		}

		if stream, ok := msg["stream"].(string); ok && stream != "" {
			fmt.Fprint(out, stream)
		}

		if aux, ok := msg["aux"].(map[string]interface{}); ok {
			if id, ok := aux["ID"].(string); ok {
				fmt.Fprintf(out, "Successfully built %s\n", id)
			}
		}

		if errorDetail, ok := msg["errorDetail"].(map[string]interface{}); ok {
			if errorMsg, ok := errorDetail["message"].(string); ok {
				return fmt.Errorf("build error: %s", errorMsg)
			}
		}
		if errorMsg, ok := msg["error"].(string); ok && errorMsg != "" {
			return fmt.Errorf("build error: %s", errorMsg)
		}
	}
}

// buildContext tars dir for the daemon, leaving out whatever .dockerignore
// excludes, the same way the docker CLI prepares a context.
func buildContext(dir, dockerfile string) (io.ReadCloser, error) {
	excludes, err := readDockerignore(dir)
	if err != nil {
		return nil, err
	}

	// The daemon needs the Dockerfile and .dockerignore even when excluded.
	if len(excludes) > 0 {
		excludes = append(excludes, "!"+filepath.ToSlash(dockerfile), "!.dockerignore")
	}

	return archive.TarWithOptions(dir, &archive.TarOptions{
		ExcludePatterns: excludes,
	})
}

// readDockerignore returns the patterns in dir/.dockerignore, or none if the
// file does not exist.
func readDockerignore(dir string) ([]string, error) {
	f, err := os.Open(filepath.Join(dir, ".dockerignore"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open .dockerignore: %w", err)
	}
	defer f.Close()

	excludes, err := ignorefile.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read .dockerignore: %w", err)
	}
	return excludes, nil
}

// isTerminal checks if both stdin and stdout are terminals.
func isTerminal() bool {
	stdinInfo, _ := os.Stdin.Stat()
	stdoutInfo, _ := os.Stdout.Stat()
	if stdinInfo == nil || stdoutInfo == nil {
		return false
	}
	return (stdinInfo.Mode()&os.ModeCharDevice) != 0 &&
		(stdoutInfo.Mode()&os.ModeCharDevice) != 0
}

// parsePortMappings parses port mapping strings and returns Docker port bindings.
func parsePortMappings(ports []string) (nat.PortMap, nat.PortSet, error) {
	portBindings := nat.PortMap{}
	exposedPorts := nat.PortSet{}

	for _, portMapping := range ports {
		mapping, err := nat.ParsePortSpec(portMapping)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port mapping %s: %w", portMapping, err)
		}

		for _, m := range mapping {
			exposedPorts[m.Port] = struct{}{}
			portBindings[m.Port] = append(portBindings[m.Port], m.Binding)
		}
	}

	logrus.Debugf("Publishing ports %v", ports)
	return portBindings, exposedPorts, nil
}
