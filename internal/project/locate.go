package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DescriptorName is the file that marks a project root.
const DescriptorName = "Dmake.ini"

// ErrNotFound is returned when no directory in the ancestry holds a descriptor.
var ErrNotFound = errors.New(DescriptorName + " does not exist in this directory or any parent directory")

// FindRoot walks up from startDir until it finds a directory containing
// the descriptor file, and returns that directory.
// The process working directory is left untouched.
func FindRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startDir, err)
	}

	for {
		if hasDescriptor(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			return "", ErrNotFound
		}
		dir = parent
	}
}

// DescriptorPath returns the descriptor location inside a project root.
func DescriptorPath(root string) string {
	return filepath.Join(root, DescriptorName)
}

func hasDescriptor(dir string) bool {
	info, err := os.Stat(DescriptorPath(dir))
	return err == nil && !info.IsDir()
}
