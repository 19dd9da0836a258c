package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultServer      = "http://localhost:8000"
	defaultTimeout     = 15 * time.Second
	defaultProfileHint = "$XDG_CONFIG_HOME/shelf/profile.yaml"
)

// Profile is the on-disk shelfctl configuration:
//
//	server: https://shelf.example.com
//	category: reading
//	timeout: 20s
type Profile struct {
	Server   string   `yaml:"server"`
	Category string   `yaml:"category,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// Duration decodes YAML strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func DefaultProfilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "shelf", "profile.yaml")
}

// LoadProfile parses the profile at path. A missing file yields an empty
// profile unless required is set. Unknown keys are rejected.
func LoadProfile(path string, required bool) (Profile, error) {
	if path == "" {
		return Profile{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return Profile{}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile Profile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&profile); err != nil {
		if errors.Is(err, io.EOF) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}
	return profile, nil
}
