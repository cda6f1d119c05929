package runtime

import (
	"context"
	"fmt"
)

// Runtime defines the interface for container engines.
type Runtime interface {
	// IsAvailable checks if the engine can be reached.
	IsAvailable(ctx context.Context) error

	// BuildImage builds and tags an image from a build context.
	BuildImage(ctx context.Context, opts BuildOptions) error

	// RunContainer runs a container in the foreground and waits for it to exit.
	RunContainer(ctx context.Context, opts ContainerOptions) error
}

// BuildOptions represents options for an image build.
type BuildOptions struct {
	Tag        string
	Dockerfile string // relative to ContextDir
	ContextDir string
	BuildArgs  map[string]string
}

// ContainerOptions represents options for container execution.
type ContainerOptions struct {
	Image       string
	Volumes     []string // host:container
	Ports       []string // host:container
	Interactive bool
	TTY         bool
	Remove      bool
}

// ExitError reports an engine operation that finished with a non-zero status.
type ExitError struct {
	Operation string
	Code      int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Operation, e.Code)
}
