package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/imamik/exposer/internal/workload"
)

// DefaultConfigFilename is the default fleet filename.
const DefaultConfigFilename = "exposer.yaml"

// Load reads, validates and returns a fleet file. Environment overrides are
// applied before validation.
func Load(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, err
	}
	ApplyEnv(f)

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return f, nil
}

// Parse parses fleet YAML without validation.
func Parse(data []byte) (*Fleet, error) {
	var f Fleet
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &f, nil
}

// FileError is a workload file that could not be read.
type FileError struct {
	Path string
	Err  error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// LoadWorkloads returns the inline descriptors followed by one descriptor per
// *.yaml file in WorkloadsDir, in file-name order. Unreadable files do not
// stop loading; they are returned separately. A file descriptor without a
// name takes its file's base name.
func (f *Fleet) LoadWorkloads(configPath string) ([]workload.Descriptor, []FileError, error) {
	out := append([]workload.Descriptor(nil), f.Workloads...)
	if f.WorkloadsDir == "" {
		return out, nil, nil
	}

	dir := f.WorkloadsDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(filepath.Dir(configPath), dir)
	}
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list workloads in %s: %w", dir, err)
	}
	sort.Strings(paths)

	var fileErrs []FileError
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			fileErrs = append(fileErrs, FileError{Path: p, Err: err})
			continue
		}
		var d workload.Descriptor
		if err := yaml.Unmarshal(data, &d); err != nil {
			fileErrs = append(fileErrs, FileError{Path: p, Err: fmt.Errorf("failed to parse YAML: %w", err)})
			continue
		}
		if d.Name == "" {
			d.Name = WorkloadNameFromPath(p)
		}
		out = append(out, d)
	}
	return out, fileErrs, nil
}

// WorkloadNameFromPath derives a workload name from a descriptor file path.
func WorkloadNameFromPath(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// FindConfigFile searches the current directory and then its parents for
// exposer.yaml.
func FindConfigFile() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return findFrom(cwd)
}

func findFrom(dir string) (string, error) {
	for {
		path := filepath.Join(dir, DefaultConfigFilename)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", fmt.Errorf("config file %s not found", DefaultConfigFilename)
}

// Save writes a fleet file.
func Save(f *Fleet, path string) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
