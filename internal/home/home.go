package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the scroll home directory.
	DefaultDirName = ".scroll"

	// RunsDirName is the subdirectory holding one output directory per run.
	RunsDirName = "runs"

	// InboxDirName is the default directory watched for new documents.
	InboxDirName = "inbox"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the scroll home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.scroll).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// RunsPath returns the path to the runs directory.
func (d *Dir) RunsPath() string {
	return filepath.Join(d.path, RunsDirName)
}

// RunPath returns the output directory for a named run.
func (d *Dir) RunPath(name string) string {
	return filepath.Join(d.RunsPath(), name)
}

// InboxPath returns the default watch directory.
func (d *Dir) InboxPath() string {
	return filepath.Join(d.path, InboxDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, p := range []string{d.RunsPath(), d.InboxPath()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", p, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// RunExists returns true if a run directory already holds a bundle.
func (d *Dir) RunExists(name string) bool {
	_, err := os.Stat(filepath.Join(d.RunPath(name), "bundle.json"))
	return err == nil
}
