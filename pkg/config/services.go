// Package config loads tool-service definitions from a YAML (or JSON) file
// and hot-reloads them through an fsnotify watcher.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cexll/agentcore/pkg/toolsvc"
)

// File is the on-disk shape of the tool-service configuration.
type File struct {
	Services []toolsvc.ServiceConfig `yaml:"services" json:"services"`
}

// Loader reads and validates one configuration file.
type Loader struct {
	path string
}

// NewLoader points a loader at path.
func NewLoader(path string) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	return &Loader{path: path}, nil
}

// Path returns the configured file path.
func (l *Loader) Path() string {
	return l.path
}

// Load reads, parses, and validates the file. YAML is a superset of JSON, so
// both formats parse through the same decoder.
func (l *Loader) Load() ([]toolsvc.ServiceConfig, string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, "", fmt.Errorf("config: read %s: %w", l.path, err)
	}
	configs, err := Parse(data)
	if err != nil {
		return nil, "", fmt.Errorf("config: parse %s: %w", l.path, err)
	}
	sum := sha256.Sum256(data)
	return configs, hex.EncodeToString(sum[:]), nil
}

// Parse decodes and validates raw configuration bytes.
func Parse(data []byte) ([]toolsvc.ServiceConfig, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	for i, svc := range file.Services {
		if strings.TrimSpace(svc.ID) == "" {
			return nil, fmt.Errorf("service #%d: id is required", i+1)
		}
		if svc.Enabled && strings.TrimSpace(svc.Command) == "" {
			return nil, fmt.Errorf("service %q: command is required when enabled", svc.ID)
		}
	}
	return file.Services, nil
}
