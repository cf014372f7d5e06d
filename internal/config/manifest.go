// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ManifestFile is the per-project manifest name.
const ManifestFile = "relief.yaml"

// Project types.
const (
	TypeContainer = "container"
	TypeNode      = "node"
	TypePython    = "python"
	TypeJava      = "java"
	TypeGo        = "go"
	TypeRuby      = "ruby"
)

// ErrUnknownProjectType is returned when no type can be inferred for a directory.
var ErrUnknownProjectType = errors.New("cannot infer project type")

// Manifest is the relief.yaml file of a project.
type Manifest struct {
	Name         string               `yaml:"name"`
	Domain       string               `yaml:"domain"`
	Type         string               `yaml:"type"`
	Image        string               `yaml:"image,omitempty"` // Container projects run this image instead of a dev script
	TTY          bool                 `yaml:"tty,omitempty"`
	Dependencies []ManifestDependency `yaml:"dependencies"`
	Scripts      map[string]string    `yaml:"scripts"`
	Env          map[string]string    `yaml:"env"`
	Ports        map[string]int       `yaml:"ports,omitempty"`
}

// ManifestDependency is a dependency declared in a manifest.
type ManifestDependency struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Managed bool   `yaml:"managed"`
}

// markerFiles maps files found at a project root to the project type they imply.
// Order matters: a Dockerfile next to a package.json means a container project.
var markerFiles = []struct {
	file string
	typ  string
}{
	{"Dockerfile", TypeContainer},
	{"docker-compose.yml", TypeContainer},
	{"docker-compose.yaml", TypeContainer},
	{"compose.yaml", TypeContainer},
	{"package.json", TypeNode},
	{"requirements.txt", TypePython},
	{"pyproject.toml", TypePython},
	{"Pipfile", TypePython},
	{"pom.xml", TypeJava},
	{"build.gradle", TypeJava},
	{"build.gradle.kts", TypeJava},
	{"go.mod", TypeGo},
	{"Gemfile", TypeRuby},
}

// LoadManifest reads relief.yaml from dir. The boolean result is false when
// the directory has no manifest.
func LoadManifest(dir string) (*Manifest, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", ManifestFile, err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, true, err
	}
	return m, true, nil
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML in %s: %w", ManifestFile, err)
	}
	if m.Type == "docker" {
		m.Type = TypeContainer
	}
	if m.Type != "" && !IsValidProjectType(m.Type) {
		return nil, fmt.Errorf("%s: type '%s' is not valid", ManifestFile, m.Type)
	}
	return &m, nil
}

// IsValidProjectType reports whether typ names a supported project type.
func IsValidProjectType(typ string) bool {
	switch typ {
	case TypeContainer, TypeNode, TypePython, TypeJava, TypeGo, TypeRuby:
		return true
	}
	return false
}

// InferProjectType inspects marker files in dir to guess its project type.
func InferProjectType(dir string) (string, error) {
	for _, m := range markerFiles {
		if _, err := os.Stat(filepath.Join(dir, m.file)); err == nil {
			return m.typ, nil
		}
	}
	return "", fmt.Errorf("%w: no marker file in %s", ErrUnknownProjectType, dir)
}

// DefaultManifest builds the manifest used for a directory without relief.yaml.
func DefaultManifest(name, typ string) *Manifest {
	m := &Manifest{
		Name:    name,
		Type:    typ,
		Scripts: map[string]string{"dev": DefaultDevCommand(typ)},
		Env:     map[string]string{},
	}
	switch typ {
	case TypeNode:
		m.Scripts["install"] = "npm install"
		m.Dependencies = []ManifestDependency{{Name: "node", Version: ">=18.0.0"}}
	case TypePython:
		m.Scripts["install"] = "pip install -r requirements.txt"
		m.Dependencies = []ManifestDependency{{Name: "python3", Version: ">=3.9"}}
	case TypeGo:
		m.Scripts["install"] = "go mod download"
		m.Dependencies = []ManifestDependency{{Name: "go", Version: ">=1.21"}}
	case TypeRuby:
		m.Scripts["install"] = "bundle install"
		m.Dependencies = []ManifestDependency{{Name: "ruby", Version: ">=3.0"}}
	case TypeJava:
		m.Dependencies = []ManifestDependency{{Name: "java", Version: ">=17"}}
	case TypeContainer:
		m.Dependencies = []ManifestDependency{{Name: "docker"}}
	}
	return m
}

// DefaultDevCommand returns the development command for a project type.
func DefaultDevCommand(typ string) string {
	switch typ {
	case TypeNode:
		return "npm run dev"
	case TypePython:
		return "python main.py"
	case TypeGo:
		return "go run ."
	case TypeRuby:
		return "bundle exec rails server"
	case TypeJava:
		return "./mvnw spring-boot:run"
	case TypeContainer:
		return "docker compose up"
	}
	return ""
}

// DevCommand returns the command used to run the project in development.
func (m *Manifest) DevCommand() string {
	if cmd := m.Scripts["dev"]; cmd != "" {
		return cmd
	}
	return DefaultDevCommand(m.Type)
}

// Port returns the project port from env.PORT or ports.main, or 0.
func (m *Manifest) Port() int {
	if s, ok := m.Env["PORT"]; ok {
		if port, err := strconv.Atoi(s); err == nil {
			return port
		}
	}
	return m.Ports["main"]
}
