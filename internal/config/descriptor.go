package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingKey is returned for a required key that is absent or empty.
	ErrMissingKey = errors.New("missing required key")
	// ErrInvalidValue is returned for a key whose value cannot be used.
	ErrInvalidValue = errors.New("invalid value")
)

// Descriptor is a read-only section -> key -> value lookup over an ini file.
type Descriptor struct {
	path string
	v    *viper.Viper
}

// ReadDescriptor parses the ini file at path.
func ReadDescriptor(path string) (*Descriptor, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("ini")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &Descriptor{path: path, v: v}, nil
}

// GetRequired returns the value of section.key, or ErrMissingKey if it is
// absent or blank.
func (d *Descriptor) GetRequired(section, key string) (string, error) {
	value, ok := d.GetOptional(section, key)
	if !ok {
		return "", fmt.Errorf("%s: %w [%s] %s", d.path, ErrMissingKey, section, key)
	}
	return value, nil
}

// GetOptional returns the value of section.key and whether it was set.
// Blank values count as unset.
func (d *Descriptor) GetOptional(section, key string) (string, bool) {
	name := section + "." + key
	if !d.v.IsSet(name) {
		return "", false
	}
	value := strings.TrimSpace(d.v.GetString(name))
	if value == "" {
		return "", false
	}
	return value, true
}

// LoadProject reads the descriptor at path and validates the keys dmake uses.
func LoadProject(path string) (*ProjectConfig, error) {
	d, err := ReadDescriptor(path)
	if err != nil {
		return nil, err
	}
	return d.Project()
}

// Project extracts the typed project configuration.
func (d *Descriptor) Project() (*ProjectConfig, error) {
	name, err := d.GetRequired("image", "name")
	if err != nil {
		return nil, err
	}

	if err := validateImageName(name); err != nil {
		return nil, fmt.Errorf("%s: %w for [image] name: %q %v", d.path, ErrInvalidValue, name, err)
	}

	cfg := &ProjectConfig{Image: ImageConfig{Name: name}}

	if raw, ok := d.GetOptional("image", "port"); ok {
		port, err := strconv.Atoi(raw)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("%s: %w for [image] port: %q is not a port number", d.path, ErrInvalidValue, raw)
		}
		cfg.Image.Port = port
	}

	if pipeline, ok := d.GetOptional("build", "pipeline"); ok {
		switch pipeline {
		case PipelineTwoStage, PipelineSingleStage:
			cfg.Build.Pipeline = pipeline
		default:
			return nil, fmt.Errorf("%s: %w for [build] pipeline: %q (want %s or %s)",
				d.path, ErrInvalidValue, pipeline, PipelineTwoStage, PipelineSingleStage)
		}
	}

	return cfg, nil
}

// validateImageName rejects names that would place the artifact directory
// outside deploy/ once joined onto the project root.
func validateImageName(name string) error {
	if strings.Contains(name, `\`) {
		return fmt.Errorf("must not contain a backslash")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("must not be an absolute path")
	}
	for _, part := range strings.Split(name, "/") {
		switch part {
		case "", ".", "..":
			return fmt.Errorf("has an invalid path component %q", part)
		}
	}
	return nil
}
