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

package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/nuclio/errors"
)

// FingerprintInputs are the inputs which fully determine an image
type FingerprintInputs struct {
	BaseImage          string
	ManifestKind       string
	Dir                string
	DockerfileContents string

	// values passed with docker build --build-arg. only their names reach the Dockerfile
	BuildArgs map[string]string
}

// Fingerprint returns a hex SHA-256 over the base image, manifest kind, the tree at Dir (relative
// paths, executable bit, contents), the Dockerfile and the build arg values. walk order is lexical, so equal inputs
// always yield equal fingerprints
func Fingerprint(inputs *FingerprintInputs) (string, error) {
	hasher := sha256.New()

	fmt.Fprintf(hasher, "base:%s\nkind:%s\n", inputs.BaseImage, inputs.ManifestKind)

	if err := filepath.Walk(inputs.Dir, func(entryPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relativePath, err := filepath.Rel(inputs.Dir, entryPath)
		if err != nil {
			return err
		}

		if relativePath == "." {
			return nil
		}

		if excludedNames[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		return hashEntry(hasher, entryPath, filepath.ToSlash(relativePath), info)
	}); err != nil {
		return "", errors.Wrap(err, "Failed to fingerprint source tree")
	}

	fmt.Fprintf(hasher, "dockerfile:%d\n%s", len(inputs.DockerfileContents), inputs.DockerfileContents)

	buildArgNames := make([]string, 0, len(inputs.BuildArgs))
	for name := range inputs.BuildArgs {
		buildArgNames = append(buildArgNames, name)
	}

	sort.Strings(buildArgNames)

	for _, name := range buildArgNames {
		value := inputs.BuildArgs[name]
		fmt.Fprintf(hasher, "arg:%d:%s=%d:%s\n", len(name), name, len(value), value)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func hashEntry(hasher hash.Hash, entryPath string, relativePath string, info os.FileInfo) error {
	switch {
	case info.IsDir():
		fmt.Fprintf(hasher, "dir:%s\n", relativePath)
	case info.Mode()&os.ModeSymlink != 0:
		linkTarget, err := os.Readlink(entryPath)
		if err != nil {
			return err
		}

		fmt.Fprintf(hasher, "link:%s\n%s\n", relativePath, linkTarget)
	case info.Mode().IsRegular():
		fmt.Fprintf(hasher, "file:%s\nexec:%t\nsize:%d\n",
			relativePath,
			info.Mode().Perm()&0111 != 0,
			info.Size())

		file, err := os.Open(entryPath)
		if err != nil {
			return err
		}

		defer file.Close() // nolint: errcheck

		if _, err := io.Copy(hasher, file); err != nil {
			return err
		}
	}

	return nil
}
