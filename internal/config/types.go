package config

// GlobalConfig represents the per-user dmake configuration.
type GlobalConfig struct {
	Runtime  string `mapstructure:"runtime" yaml:"runtime"`     // docker, podman or docker-api
	LogLevel string `mapstructure:"log_level" yaml:"log_level"` // logrus level name
}

// ProjectConfig represents the contents of a project descriptor.
type ProjectConfig struct {
	Image ImageConfig
	Build BuildConfig
}

// ImageConfig holds the [image] section.
type ImageConfig struct {
	Name string // Image name, used for tags and the artifact directory
	Port int    // Published on both host and container side; 0 means none
}

// BuildConfig holds the [build] section.
type BuildConfig struct {
	Pipeline string // two-stage, single-stage, or empty to detect
}

// Runtime names accepted in the global config.
const (
	RuntimeDocker    = "docker"
	RuntimePodman    = "podman"
	RuntimeDockerAPI = "docker-api"
)

// Pipeline variants accepted in [build] pipeline.
const (
	PipelineTwoStage    = "two-stage"
	PipelineSingleStage = "single-stage"
)
