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
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/launcher/dockerfile"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

var archiveExtensions = []string{".zip", ".tar", ".tar.gz", ".tgz"}

// never copied into the build context
var excludedNames = map[string]bool{
	".git":              true,
	dockerfile.FileName: true,
}

// Stager prepares build contexts, leaving the source tree untouched
type Stager struct {
	logger  logger.Logger
	tempDir string
}

// Area is a staged copy of a source tree
type Area struct {
	logger logger.Logger

	// the staging root. Dir is the build context within it
	rootDir string
	Dir     string
}

func NewStager(parentLogger logger.Logger, tempDir string) (*Stager, error) {
	if tempDir != "" && !common.IsDir(tempDir) {
		return nil, errors.Errorf("Temp dir does not exist: %s", tempDir)
	}

	return &Stager{
		logger:  parentLogger.GetChild("staging"),
		tempDir: tempDir,
	}, nil
}

// IsArchive returns true if the path names a supported archive
func IsArchive(sourcePath string) bool {
	lowerPath := strings.ToLower(sourcePath)

	for _, extension := range archiveExtensions {
		if strings.HasSuffix(lowerPath, extension) {
			return true
		}
	}

	return false
}

// Stage copies (or extracts) the source tree into a new staging area
func (s *Stager) Stage(ctx context.Context, sourcePath string) (*Area, error) {
	rootDir, err := os.MkdirTemp(s.tempDir, "dfa-staging-")
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create staging dir")
	}

	area := &Area{
		logger:  s.logger,
		rootDir: rootDir,
		Dir:     filepath.Join(rootDir, "context"),
	}

	if err := s.populate(ctx, sourcePath, area); err != nil {
		area.Remove() // nolint: errcheck
		return nil, err
	}

	s.logger.DebugWithCtx(ctx, "Staged source tree", "source", sourcePath, "dir", area.Dir)

	return area, nil
}

func (s *Stager) populate(ctx context.Context, sourcePath string, area *Area) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.Wrap(err, "Source tree not found")
	}

	if sourceInfo.IsDir() {
		if err := copyDir(sourcePath, area.Dir, excludedNames); err != nil {
			return errors.Wrap(err, "Failed to copy source tree")
		}

		return nil
	}

	if !IsArchive(sourcePath) {
		return errors.Errorf("Source must be a directory or an archive (%s): %s",
			strings.Join(archiveExtensions, ", "),
			sourcePath)
	}

	extractDir := filepath.Join(area.rootDir, "extracted")

	s.logger.DebugWithCtx(ctx, "Extracting source archive", "archive", sourcePath)

	if err := archiver.Unarchive(sourcePath, extractDir); err != nil {
		return errors.Wrapf(err, "Failed to extract %s", sourcePath)
	}

	// archives commonly wrap everything in one top level dir
	contentDir, err := singleChildDir(extractDir)
	if err != nil {
		return errors.Wrap(err, "Failed to read extracted archive")
	}

	if err := copyDir(contentDir, area.Dir, excludedNames); err != nil {
		return errors.Wrap(err, "Failed to copy extracted source tree")
	}

	return os.RemoveAll(extractDir)
}

// WriteFile writes a generated file at the root of the build context
func (a *Area) WriteFile(name string, contents []byte) error {
	return os.WriteFile(filepath.Join(a.Dir, name), contents, 0644)
}

// Remove deletes the staging area
func (a *Area) Remove() error {
	a.logger.DebugWith("Removing staging area", "dir", a.rootDir)

	return os.RemoveAll(a.rootDir)
}

func singleChildDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	if len(entries) == 1 && entries[0].IsDir() && !excludedNames[entries[0].Name()] {
		return filepath.Join(dir, entries[0].Name()), nil
	}

	return dir, nil
}
