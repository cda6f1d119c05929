package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/skorokithakis/dmake/internal/config"
	"github.com/skorokithakis/dmake/internal/pipeline"
	"github.com/skorokithakis/dmake/internal/project"
	"github.com/skorokithakis/dmake/internal/runtime"
)

// Exit codes reported by dmake. Engine failures exit with the engine's own status.
const (
	ExitSuccess           = 0
	ExitNotFound          = 1
	ExitArtifactDirFailed = 2
	ExitGeneralError      = 1
)

var (
	// getwd is where the project search starts.
	getwd = os.Getwd

	// newRuntime selects the container engine for a global configuration.
	newRuntime = func(cfg *config.GlobalConfig) (runtime.Runtime, error) {
		switch cfg.Runtime {
		case config.RuntimePodman:
			return runtime.NewCLIRuntime("podman"), nil
		case config.RuntimeDockerAPI:
			return runtime.NewDockerRuntime()
		default:
			return runtime.NewCLIRuntime("docker"), nil
		}
	}
)

// NewRootCommand creates the dmake command.
func NewRootCommand() *cobra.Command {
	var deploy, run bool

	rootCmd := &cobra.Command{
		Use:   "dmake [options] [mode]",
		Short: "Build a project's Docker images",
		Long: `Dmake finds the nearest Dmake.ini in this directory or its parents and builds
the project's images with Dockerfile-<mode> (mode defaults to "debug").

If the project has a build/ directory, a builder image is built from it, run with
deploy/<name> mounted at /opt/<name>, and the final image is built from deploy/.
Otherwise the image is built directly from the project root.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := pipeline.DefaultMode
			if len(args) > 0 {
				mode = args[0]
			}
			return runBuild(cmd, mode, deploy, run)
		},
	}

	// Disable default completion command.
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.Flags().BoolVar(&deploy, "deploy", false, "deploy to Docker Hub (not yet supported)")
	rootCmd.Flags().BoolVarP(&run, "run", "r", false, "run the image locally after building it")

	return rootCmd
}

// Execute runs the CLI and exits with the code matching the outcome.
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// runBuild locates the project, loads its descriptor and runs the pipeline.
func runBuild(cmd *cobra.Command, mode string, deploy, run bool) error {
	// Load configuration.
	globalConfig, err := config.NewLoader().LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}
	if level, err := logrus.ParseLevel(globalConfig.LogLevel); err == nil {
		logrus.SetLevel(level)
	} else {
		logrus.Warnf("Ignoring unknown log level %q", globalConfig.LogLevel)
	}

	// Locate the project.
	cwd, err := getwd()
	if err != nil {
		return fmt.Errorf("failed to determine working directory: %w", err)
	}

	root, err := project.FindRoot(cwd)
	if err != nil {
		return err
	}
	logrus.Debugf("Project root is %s", root)

	projectConfig, err := config.LoadProject(project.DescriptorPath(root))
	if err != nil {
		return err
	}

	// Handle the flags that stop before building.
	out := cmd.OutOrStdout()
	if deploy && run {
		fmt.Fprintln(out, "--deploy and --run are mutually exclusive.")
		return nil
	}
	if deploy {
		fmt.Fprintln(out, "Deploying is not yet supported.")
		return nil
	}

	// Plan the pipeline.
	p, err := pipeline.Plan(root, projectConfig, pipeline.Options{Mode: mode, Run: run})
	if err != nil {
		return err
	}
	logrus.Infof("Using the %s pipeline for %s", p.Variant, projectConfig.Image.Name)
	logrus.Debugf("Pipeline has %d steps", len(p.Steps))

	// Create runtime based on configuration.
	rt, err := newRuntime(globalConfig)
	if err != nil {
		return err
	}

	// Check if runtime is available.
	ctx := cmd.Context()
	if err := rt.IsAvailable(ctx); err != nil {
		return err
	}

	// Execute the pipeline.
	return p.Execute(ctx, rt)
}

// exitCode maps an error returned by the root command to a process exit code.
func exitCode(err error) int {
	var exitErr *runtime.ExitError
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, project.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, pipeline.ErrArtifactDir):
		return ExitArtifactDirFailed
	case errors.As(err, &exitErr) && exitErr.Code > 0:
		return exitErr.Code
	default:
		return ExitGeneralError
	}
}
