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
	"io"
	"os"
	"path/filepath"

	"github.com/nuclio/errors"
)

// copyFile copies file source to destination dest, preserving its mode
func copyFile(source string, dest string, mode os.FileMode) error {
	sf, err := os.Open(source)
	if err != nil {
		return err
	}

	defer sf.Close() // nolint: errcheck

	df, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}

	if _, err = io.Copy(df, sf); err != nil {
		df.Close() // nolint: errcheck
		return err
	}

	if err := df.Close(); err != nil {
		return err
	}

	// the umask may have stripped bits at creation
	return os.Chmod(dest, mode.Perm())
}

// copyDir recursively copies a directory tree, preserving permissions and symlinks. entries whose
// name is in excluded are skipped at any depth. dest must not exist
func copyDir(source string, dest string, excluded map[string]bool) error {
	return filepath.Walk(source, func(sourcePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relativePath, err := filepath.Rel(source, sourcePath)
		if err != nil {
			return err
		}

		if relativePath != "." && excluded[info.Name()] {
			if info.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		destPath := filepath.Join(dest, relativePath)

		switch {
		case info.IsDir():
			return os.MkdirAll(destPath, info.Mode().Perm()|0700)
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(sourcePath)
			if err != nil {
				return errors.Wrapf(err, "Failed to read link %s", sourcePath)
			}

			return os.Symlink(linkTarget, destPath)
		case info.Mode().IsRegular():
			return copyFile(sourcePath, destPath, info.Mode())
		}

		// sockets, devices and pipes have no place in an image build context
		return nil
	})
}
