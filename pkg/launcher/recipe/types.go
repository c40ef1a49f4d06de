/*
Copyright 2024 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package recipe

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dataflowassess/dfa/pkg/dockerclient"

	"github.com/docker/distribution/reference"
	"github.com/nuclio/errors"
)

type ManifestKind string

const (
	ManifestKindPip   ManifestKind = "pip"
	ManifestKindGoMod ManifestKind = "gomod"
)

type RuntimeKind string

const (
	RuntimeKindDocker  RuntimeKind = "docker"
	RuntimeKindProcess RuntimeKind = "process"
)

const (
	DefaultName           = "dfa-dashboard"
	DefaultBaseImage      = "python"
	DefaultBaseTag        = "3.11-slim"
	DefaultManifest       = "requirements.txt"
	DefaultWorkDir        = "/app"
	DefaultImageName      = "dfa/dashboard"
	DefaultPort           = 8501
	DefaultStartupTimeout = 60 * time.Second
	DefaultStopTimeout    = 10 * time.Second
	DefaultProbePath      = "/"
)

// DefaultCommand serves the dashboard on the default port, reachable from outside the container
var DefaultCommand = []string{
	"streamlit",
	"run",
	"app.py",
	fmt.Sprintf("--server.port=%d", DefaultPort),
	"--server.address=0.0.0.0",
}

// Recipe fully describes how to build the image and run the service process
type Recipe struct {
	Name   string `json:"name,omitempty" mapstructure:"name"`
	Base   Base   `json:"base" mapstructure:"base"`
	Source Source `json:"source" mapstructure:"source"`
	Build  Build  `json:"build" mapstructure:"build"`
	Run    Run    `json:"run" mapstructure:"run"`
}

// Base identifies the base runtime image
type Base struct {
	Image string `json:"image" mapstructure:"image"`
	Tag   string `json:"tag,omitempty" mapstructure:"tag"`
}

// Reference returns image:tag. an image that already carries a tag or digest is returned as is
func (b Base) Reference() string {
	if b.Tag == "" || hasTagOrDigest(b.Image) {
		return b.Image
	}

	return b.Image + ":" + b.Tag
}

func hasTagOrDigest(image string) bool {
	parsedReference, err := reference.Parse(image)
	if err != nil {
		return false
	}

	_, tagged := parsedReference.(reference.Tagged)
	_, digested := parsedReference.(reference.Digested)

	return tagged || digested
}

// Source locates the source tree and its dependency manifest
type Source struct {

	// directory or archive (.zip, .tar, .tar.gz, .tgz)
	Path string `json:"path" mapstructure:"path"`

	// relative to the source root
	Manifest     string       `json:"manifest" mapstructure:"manifest"`
	ManifestKind ManifestKind `json:"manifestKind,omitempty" mapstructure:"manifestKind"`
}

type Build struct {
	Image          string                  `json:"image,omitempty" mapstructure:"image"`
	Tag            string                  `json:"tag,omitempty" mapstructure:"tag"`
	WorkDir        string                  `json:"workDir,omitempty" mapstructure:"workDir"`
	InstallCommand string                  `json:"installCommand,omitempty" mapstructure:"installCommand"`
	BuildCommands  []string                `json:"buildCommands,omitempty" mapstructure:"buildCommands"`
	NoCache        bool                    `json:"noCache,omitempty" mapstructure:"noCache"`
	Pull           bool                    `json:"pull,omitempty" mapstructure:"pull"`
	NoCleanup      bool                    `json:"noCleanup,omitempty" mapstructure:"noCleanup"`
	BuildArgs      map[string]string       `json:"buildArgs,omitempty" mapstructure:"buildArgs"`
	Labels         map[string]string       `json:"labels,omitempty" mapstructure:"labels"`
	Client         dockerclient.ClientKind `json:"client,omitempty" mapstructure:"client"`
	TempDir        string                  `json:"tempDir,omitempty" mapstructure:"tempDir"`
}

type Run struct {
	Port           int               `json:"port" mapstructure:"port"`
	Command        []string          `json:"command" mapstructure:"command"`
	Env            map[string]string `json:"env,omitempty" mapstructure:"env"`
	Runtime        RuntimeKind       `json:"runtime,omitempty" mapstructure:"runtime"`
	StartupTimeout time.Duration     `json:"startupTimeout,omitempty" mapstructure:"startupTimeout"`
	StopTimeout    time.Duration     `json:"stopTimeout,omitempty" mapstructure:"stopTimeout"`
	ProbePath      string            `json:"probePath,omitempty" mapstructure:"probePath"`
	ContainerName  string            `json:"containerName,omitempty" mapstructure:"containerName"`
}

// NewDefault returns the recipe of the stock dashboard deployment
func NewDefault() *Recipe {
	return &Recipe{
		Name: DefaultName,
		Base: Base{
			Image: DefaultBaseImage,
			Tag:   DefaultBaseTag,
		},
		Source: Source{
			Path:         ".",
			Manifest:     DefaultManifest,
			ManifestKind: ManifestKindPip,
		},
		Build: Build{
			Image:   DefaultImageName,
			WorkDir: DefaultWorkDir,
			Client:  dockerclient.ClientKindShell,
		},
		Run: Run{
			Port:           DefaultPort,
			Command:        append([]string{}, DefaultCommand...),
			Runtime:        RuntimeKindDocker,
			StartupTimeout: DefaultStartupTimeout,
			StopTimeout:    DefaultStopTimeout,
			ProbePath:      DefaultProbePath,
		},
	}
}

// ImageName returns the name the built image is tagged with, given its fingerprint
func (r *Recipe) ImageName(fingerprint string) string {
	tag := r.Build.Tag
	if tag == "" {
		tag = ShortFingerprint(fingerprint)
	}

	return r.Build.Image + ":" + tag
}

// ShortFingerprint returns the prefix of a fingerprint used for tags and names
func ShortFingerprint(fingerprint string) string {
	if len(fingerprint) > 12 {
		return fingerprint[:12]
	}

	return fingerprint
}

// InferManifestKind returns the manifest kind implied by the manifest file name
func InferManifestKind(manifestPath string) ManifestKind {
	if filepath.Base(manifestPath) == "go.mod" {
		return ManifestKindGoMod
	}

	return ManifestKindPip
}

// Validate verifies the recipe can be built and run
func (r *Recipe) Validate() error {
	if _, err := reference.Parse(r.Base.Reference()); err != nil || r.Base.Image == "" {
		return errors.Errorf("Invalid base image: %q", r.Base.Reference())
	}

	if _, err := reference.Parse(r.Build.Image); err != nil {
		return errors.Errorf("Invalid image name: %q", r.Build.Image)
	}

	if r.Build.Tag != "" {
		if _, err := reference.Parse(r.Build.Image + ":" + r.Build.Tag); err != nil {
			return errors.Errorf("Invalid image tag: %q", r.Build.Tag)
		}
	}

	if r.Source.Path == "" {
		return errors.New("Source path must be set")
	}

	if err := validateManifestPath(r.Source.Manifest); err != nil {
		return err
	}

	switch r.Source.ManifestKind {
	case ManifestKindPip, ManifestKindGoMod:
	default:
		return errors.Errorf("Unsupported manifest kind: %q", r.Source.ManifestKind)
	}

	if !strings.HasPrefix(r.Build.WorkDir, "/") {
		return errors.Errorf("Work dir must be absolute: %q", r.Build.WorkDir)
	}

	switch r.Build.Client {
	case dockerclient.ClientKindShell, dockerclient.ClientKindAPI:
	default:
		return errors.Errorf("Unsupported docker client: %q", r.Build.Client)
	}

	if r.Run.Port < 1 || r.Run.Port > 65535 {
		return errors.Errorf("Port must be in 1-65535, got %d", r.Run.Port)
	}

	if len(r.Run.Command) == 0 || strings.TrimSpace(r.Run.Command[0]) == "" {
		return errors.New("Run command must not be empty")
	}

	switch r.Run.Runtime {
	case RuntimeKindDocker, RuntimeKindProcess:
	default:
		return errors.Errorf("Unsupported runtime: %q", r.Run.Runtime)
	}

	if r.Run.StartupTimeout <= 0 {
		return errors.New("Startup timeout must be positive")
	}

	if r.Run.StopTimeout < 0 {
		return errors.New("Stop timeout must not be negative")
	}

	if !strings.HasPrefix(r.Run.ProbePath, "/") {
		return errors.Errorf("Probe path must start with /: %q", r.Run.ProbePath)
	}

	return nil
}

func validateManifestPath(manifestPath string) error {
	if manifestPath == "" {
		return errors.New("Manifest path must be set")
	}

	if filepath.IsAbs(manifestPath) {
		return errors.Errorf("Manifest path must be relative to the source root: %q", manifestPath)
	}

	cleanPath := filepath.Clean(manifestPath)
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return errors.Errorf("Manifest path escapes the source root: %q", manifestPath)
	}

	return nil
}
