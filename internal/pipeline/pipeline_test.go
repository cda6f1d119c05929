package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skorokithakis/dmake/internal/config"
	"github.com/skorokithakis/dmake/internal/runtime"
	"github.com/skorokithakis/dmake/internal/runtime/runtimetest"
)

func projectConfig(name string, port int, variant string) *config.ProjectConfig {
	return &config.ProjectConfig{
		Image: config.ImageConfig{Name: name, Port: port},
		Build: config.BuildConfig{Pipeline: variant},
	}
}

func TestResolveVariant(t *testing.T) {
	root := t.TempDir()

	assert.Equal(t, config.PipelineSingleStage, ResolveVariant(root, projectConfig("foo", 0, "")))

	require.NoError(t, os.Mkdir(filepath.Join(root, "build"), 0755))
	assert.Equal(t, config.PipelineTwoStage, ResolveVariant(root, projectConfig("foo", 0, "")))

	// An explicit setting wins over detection.
	assert.Equal(t, config.PipelineSingleStage, ResolveVariant(root, projectConfig("foo", 0, config.PipelineSingleStage)))
}

func TestPlanTwoStage(t *testing.T) {
	root := "/src/proj"
	p, err := Plan(root, projectConfig("foo", 0, config.PipelineTwoStage), Options{Mode: "release", Run: true})
	require.NoError(t, err)
	require.Len(t, p.Steps, 5)

	assert.Equal(t, BuildStep{Options: runtime.BuildOptions{
		Tag:        "foo-build",
		Dockerfile: "Dockerfile-release",
		ContextDir: filepath.Join(root, "build"),
	}}, p.Steps[0])

	assert.Equal(t, PrepareVolumeStep{Path: filepath.Join(root, "deploy", "foo")}, p.Steps[1])

	assert.Equal(t, RunStep{Options: runtime.ContainerOptions{
		Image:       "foo-build:latest",
		Volumes:     []string{filepath.Join(root, "deploy", "foo") + ":/opt/foo"},
		Interactive: true,
		TTY:         true,
		Remove:      true,
	}}, p.Steps[2])

	assert.Equal(t, BuildStep{Options: runtime.BuildOptions{
		Tag:        "foo",
		Dockerfile: "Dockerfile",
		ContextDir: filepath.Join(root, "deploy"),
	}}, p.Steps[3])

	run, ok := p.Steps[4].(RunStep)
	require.True(t, ok)
	assert.Equal(t, "foo", run.Options.Image)
	assert.Empty(t, run.Options.Ports)
}

func TestPlanTwoStageWithoutRun(t *testing.T) {
	p, err := Plan("/src/proj", projectConfig("foo", 0, config.PipelineTwoStage), Options{})
	require.NoError(t, err)
	require.Len(t, p.Steps, 4)

	build, ok := p.Steps[0].(BuildStep)
	require.True(t, ok)
	assert.Equal(t, "Dockerfile-debug", build.Options.Dockerfile)
}

func TestPlanSingleStage(t *testing.T) {
	tests := []struct {
		name      string
		port      int
		run       bool
		wantSteps int
		wantPorts []string
	}{
		{name: "build only", wantSteps: 1},
		{name: "run without port", run: true, wantSteps: 2},
		{name: "run with port", port: 8080, run: true, wantSteps: 2, wantPorts: []string{"8080:8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := "/src/proj"
			p, err := Plan(root, projectConfig("foo", tt.port, config.PipelineSingleStage), Options{Run: tt.run})
			require.NoError(t, err)
			require.Len(t, p.Steps, tt.wantSteps)

			assert.Equal(t, BuildStep{Options: runtime.BuildOptions{
				Tag:        "foo:latest",
				Dockerfile: "Dockerfile-debug",
				ContextDir: root,
				BuildArgs:  map[string]string{"IMAGE_NAME": "foo"},
			}}, p.Steps[0])

			if tt.run {
				run, ok := p.Steps[1].(RunStep)
				require.True(t, ok)
				assert.Equal(t, "foo:latest", run.Options.Image)
				assert.Equal(t, tt.wantPorts, run.Options.Ports)
				assert.True(t, run.Options.Remove)
				assert.True(t, run.Options.Interactive)
			}
		})
	}
}

func TestPlanUnknownVariant(t *testing.T) {
	_, err := Plan("/src/proj", projectConfig("foo", 0, "three-stage"), Options{})
	assert.ErrorIs(t, err, config.ErrInvalidValue)
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	root := t.TempDir()
	p, err := Plan(root, projectConfig("foo", 8080, config.PipelineTwoStage), Options{Run: true})
	require.NoError(t, err)

	rec := &runtimetest.Recorder{}
	require.NoError(t, p.Execute(context.Background(), rec))

	assert.Equal(t, []string{"BuildImage", "RunContainer", "BuildImage", "RunContainer"}, rec.Methods())
	assert.Equal(t, []string{"8080:8080"}, rec.Calls[3].Container.Ports)
	assert.DirExists(t, ArtifactDir(root, "foo"))
}

func TestExecuteStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	p, err := Plan(root, projectConfig("foo", 0, config.PipelineTwoStage), Options{Run: true})
	require.NoError(t, err)

	buildErr := &runtime.ExitError{Operation: "docker build", Code: 3}
	rec := &runtimetest.Recorder{
		FailOn: func(n int, call runtimetest.Call) error {
			if n == 0 {
				return buildErr
			}
			return nil
		},
	}

	err = p.Execute(context.Background(), rec)
	require.Error(t, err)

	// Nothing after the failed builder build may run, including volume preparation.
	assert.Equal(t, []string{"BuildImage"}, rec.Methods())
	assert.NoDirExists(t, ArtifactDir(root, "foo"))

	var stepErr *StepError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, 1, stepErr.Index)
	assert.ErrorIs(t, err, ErrStepFailed)

	var exitErr *runtime.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
}

func TestExecuteStopsWhenExtractFails(t *testing.T) {
	p, err := Plan(t.TempDir(), projectConfig("foo", 0, config.PipelineTwoStage), Options{Run: true})
	require.NoError(t, err)

	rec := &runtimetest.Recorder{
		FailOn: func(n int, call runtimetest.Call) error {
			if call.Method == "RunContainer" {
				return errors.New("boom")
			}
			return nil
		},
	}

	err = p.Execute(context.Background(), rec)
	assert.ErrorIs(t, err, ErrStepFailed)
	assert.Equal(t, []string{"BuildImage", "RunContainer"}, rec.Methods())
}
