package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/skorokithakis/dmake/internal/config"
	"github.com/skorokithakis/dmake/internal/runtime"
)

// DefaultMode selects Dockerfile-debug when no mode is given.
const DefaultMode = "debug"

const (
	buildDir  = "build"
	deployDir = "deploy"
)

// Options are the invocation choices that shape a pipeline.
type Options struct {
	Mode string
	Run  bool
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	Variant string
	Steps   []Step
}

// ResolveVariant returns the configured variant, or detects it from the
// presence of a build directory under root.
func ResolveVariant(root string, cfg *config.ProjectConfig) string {
	if cfg.Build.Pipeline != "" {
		return cfg.Build.Pipeline
	}
	if info, err := os.Stat(filepath.Join(root, buildDir)); err == nil && info.IsDir() {
		return config.PipelineTwoStage
	}
	return config.PipelineSingleStage
}

// ArtifactDir is where the builder image deposits its output.
func ArtifactDir(root, imageName string) string {
	return filepath.Join(root, deployDir, imageName)
}

// Plan builds the step list for a project rooted at root. All paths in the
// returned steps are absolute.
func Plan(root string, cfg *config.ProjectConfig, opts Options) (*Pipeline, error) {
	mode := opts.Mode
	if mode == "" {
		mode = DefaultMode
	}
	dockerfile := "Dockerfile-" + mode
	name := cfg.Image.Name

	var ports []string
	if cfg.Image.Port != 0 {
		ports = []string{fmt.Sprintf("%d:%d", cfg.Image.Port, cfg.Image.Port)}
	}

	p := &Pipeline{Variant: ResolveVariant(root, cfg)}

	switch p.Variant {
	case config.PipelineTwoStage:
		builderTag := name + "-build"
		volume := ArtifactDir(root, name)

		p.Steps = append(p.Steps,
			BuildStep{Options: runtime.BuildOptions{
				Tag:        builderTag,
				Dockerfile: dockerfile,
				ContextDir: filepath.Join(root, buildDir),
			}},
			PrepareVolumeStep{Path: volume},
			RunStep{Options: interactive(runtime.ContainerOptions{
				Image:   builderTag + ":latest",
				Volumes: []string{fmt.Sprintf("%s:/opt/%s", volume, name)},
			})},
			BuildStep{Options: runtime.BuildOptions{
				Tag:        name,
				Dockerfile: "Dockerfile",
				ContextDir: filepath.Join(root, deployDir),
			}},
		)
		if opts.Run {
			p.Steps = append(p.Steps, RunStep{Options: interactive(runtime.ContainerOptions{
				Image: name,
				Ports: ports,
			})})
		}

	case config.PipelineSingleStage:
		tag := name + ":latest"

		p.Steps = append(p.Steps, BuildStep{Options: runtime.BuildOptions{
			Tag:        tag,
			Dockerfile: dockerfile,
			ContextDir: root,
			BuildArgs:  map[string]string{"IMAGE_NAME": name},
		}})
		if opts.Run {
			p.Steps = append(p.Steps, RunStep{Options: interactive(runtime.ContainerOptions{
				Image: tag,
				Ports: ports,
			})})
		}

	default:
		return nil, fmt.Errorf("%w for pipeline: %q", config.ErrInvalidValue, p.Variant)
	}

	return p, nil
}

// Execute runs the steps in order and stops at the first failure.
func (p *Pipeline) Execute(ctx context.Context, rt runtime.Runtime) error {
	for i, step := range p.Steps {
		logrus.Debugf("Step %d/%d: %s", i+1, len(p.Steps), step)
		if err := step.Execute(ctx, rt); err != nil {
			return &StepError{Index: i + 1, Step: step.String(), Err: err}
		}
	}
	return nil
}

func interactive(opts runtime.ContainerOptions) runtime.ContainerOptions {
	opts.Interactive = true
	opts.TTY = true
	opts.Remove = true
	return opts
}
