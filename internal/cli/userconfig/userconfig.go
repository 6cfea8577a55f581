// Package userconfig holds settings that belong to the person running the
// CLI rather than to a project checkout. They live in
// $XDG_CONFIG_HOME/colyze/settings.yaml (~/.config on Linux).
package userconfig

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	dirName  = "colyze"
	fileName = "settings.yaml"

	// maxRecent bounds the remembered server history
	maxRecent = 5
)

// Settings is the persisted per-user state
type Settings struct {
	// Server is the API root commands use when no --server is given
	Server string `yaml:"server,omitempty"`
	// Recent lists chosen servers, most recent first
	Recent []string `yaml:"recent,omitempty"`
}

// Path returns the settings file location
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// Load reads the settings. A missing file yields empty settings.
func Load() (*Settings, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &s, nil
}

// Save writes the settings through a temporary file so a crash never leaves
// a half-written file behind
func (s *Settings) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), fileName+".*")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

// Update loads the settings, applies fn and saves the result
func Update(fn func(*Settings)) error {
	s, err := Load()
	if err != nil {
		return err
	}
	fn(s)
	return s.Save()
}

// Select makes serverURL the default server and moves it to the front of
// the history. An empty URL only clears the default.
func Select(serverURL string) error {
	return Update(func(s *Settings) {
		s.Server = serverURL
		if serverURL == "" {
			return
		}
		s.Recent = slices.DeleteFunc(s.Recent, func(u string) bool { return u == serverURL })
		s.Recent = append([]string{serverURL}, s.Recent...)
		if len(s.Recent) > maxRecent {
			s.Recent = s.Recent[:maxRecent]
		}
	})
}

// Selected returns the default server URL, or "" when none is set
func Selected() (string, error) {
	s, err := Load()
	if err != nil {
		return "", err
	}
	return s.Server, nil
}
