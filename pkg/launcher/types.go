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

package launcher

import (
	"time"

	"github.com/dataflowassess/dfa/pkg/launcher/manifest"
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"
	"github.com/dataflowassess/dfa/pkg/launcher/status"
)

const (
	RecipeLabel      = "dfa.recipe"
	FingerprintLabel = "dfa.fingerprint"
	ImageLabel       = "dfa.image"
)

var (
	ErrManifestNotFound  = manifest.ErrManifestNotFound
	ErrManifestMalformed = manifest.ErrManifestMalformed
	ErrBuildFailed       = status.ErrBuildFailed
	ErrImageNotFound     = status.ErrImageNotFound
	ErrLaunchFailed      = status.ErrLaunchFailed
	ErrStartupTimeout    = status.ErrStartupTimeout
)

// BuildResult describes the outcome of a successful build
type BuildResult struct {
	Image        string        `json:"image"`
	Fingerprint  string        `json:"fingerprint"`
	Skipped      bool          `json:"skipped"`
	Duration     time.Duration `json:"duration"`
	Requirements int           `json:"requirements"`
}

// InspectResult is the effective configuration of a launcher, without building anything
type InspectResult struct {
	Recipe     *recipe.Recipe     `json:"recipe"`
	Manifest   *manifest.Manifest `json:"manifest"`
	Dockerfile string             `json:"dockerfile,omitempty"`
}
