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

package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/nuclio/errors"
)

// Read reads and parses the manifest at manifestPath relative to sourceDir
func Read(sourceDir string, manifestPath string, kind recipe.ManifestKind) (*Manifest, error) {
	absolutePath := filepath.Join(sourceDir, manifestPath)

	info, err := os.Stat(absolutePath)
	if err != nil {
		return nil, errors.Wrap(ErrManifestNotFound, err.Error())
	}

	if info.IsDir() {
		return nil, errors.Wrap(ErrManifestNotFound, fmt.Sprintf("%s is a directory", manifestPath))
	}

	contents, err := os.ReadFile(absolutePath)
	if err != nil {
		return nil, errors.Wrap(ErrManifestNotFound, err.Error())
	}

	return Parse(manifestPath, contents, kind)
}

// Parse parses manifest contents according to their kind
func Parse(manifestPath string, contents []byte, kind recipe.ManifestKind) (*Manifest, error) {
	var parsedManifest *Manifest
	var err error

	switch kind {
	case recipe.ManifestKindPip:
		parsedManifest, err = parsePip(bytes.NewReader(contents))
	case recipe.ManifestKindGoMod:
		parsedManifest, err = parseGoMod(manifestPath, contents)
	default:
		return nil, errors.Wrapf(ErrManifestMalformed, "unsupported manifest kind %q", kind)
	}

	if err != nil {
		return nil, err
	}

	parsedManifest.Kind = kind
	parsedManifest.Path = manifestPath

	return parsedManifest, nil
}

// DefaultInstallCommand returns the command installing the manifest's dependencies inside the image
func DefaultInstallCommand(kind recipe.ManifestKind, manifestPath string) string {
	switch kind {
	case recipe.ManifestKindGoMod:
		return "go mod download"
	default:
		return fmt.Sprintf("pip install --no-cache-dir -r %s", filepath.ToSlash(manifestPath))
	}
}
