package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/skorokithakis/dmake/internal/runtime"
)

// Step is one unit of pipeline work.
type Step interface {
	fmt.Stringer
	Execute(ctx context.Context, rt runtime.Runtime) error
}

// BuildStep builds and tags an image.
type BuildStep struct {
	Options runtime.BuildOptions
}

func (s BuildStep) String() string {
	return fmt.Sprintf("build %s from %s", s.Options.Tag, filepath.Join(s.Options.ContextDir, s.Options.Dockerfile))
}

// Execute runs the build through the runtime.
func (s BuildStep) Execute(ctx context.Context, rt runtime.Runtime) error {
	logrus.Infof("Building image %s...", s.Options.Tag)
	return rt.BuildImage(ctx, s.Options)
}

// PrepareVolumeStep recreates the artifact directory as an empty directory.
type PrepareVolumeStep struct {
	Path string
}

func (s PrepareVolumeStep) String() string {
	return "prepare " + s.Path
}

// Execute removes and recreates the directory. Removal failures are only
// logged; creation failures wrap ErrArtifactDir.
func (s PrepareVolumeStep) Execute(ctx context.Context, rt runtime.Runtime) error {
	if err := os.RemoveAll(s.Path); err != nil {
		logrus.Warnf("Failed to remove %s: %v", s.Path, err)
	}
	if err := os.MkdirAll(s.Path, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrArtifactDir, err)
	}
	return nil
}

// RunStep runs a container in the foreground.
type RunStep struct {
	Options runtime.ContainerOptions
}

func (s RunStep) String() string {
	parts := []string{"run " + s.Options.Image}
	for _, v := range s.Options.Volumes {
		parts = append(parts, "volume "+v)
	}
	for _, p := range s.Options.Ports {
		parts = append(parts, "port "+p)
	}
	return strings.Join(parts, ", ")
}

// Execute runs the container through the runtime and waits for it.
func (s RunStep) Execute(ctx context.Context, rt runtime.Runtime) error {
	logrus.Infof("Running %s...", s.Options.Image)
	return rt.RunContainer(ctx, s.Options)
}
