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

package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/rs/xid"
)

const sessionFileExtension = ".json"

// FileStore keeps one JSON file per session in a directory
type FileStore struct {
	logger logger.Logger
	dir    string
	lock   sync.Mutex
}

func NewFileStore(parentLogger logger.Logger, dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("Session directory is required")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrapf(err, "Failed to create session directory %s", dir)
	}

	return &FileStore{
		logger: parentLogger.GetChild("filestore"),
		dir:    dir,
	}, nil
}

func (fs *FileStore) Create(ctx context.Context, session *Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	path, err := fs.sessionPath(session.ID)
	if err != nil {
		return err
	}

	if common.FileExists(path) {
		return errors.Errorf("Session %s already exists", session.ID)
	}

	return fs.write(path, session)
}

func (fs *FileStore) Get(ctx context.Context, id string) (*Session, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	path, err := fs.sessionPath(id)
	if err != nil {
		return nil, err
	}

	return fs.read(path)
}

func (fs *FileStore) Update(ctx context.Context, session *Session) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	path, err := fs.sessionPath(session.ID)
	if err != nil {
		return err
	}

	if !common.FileExists(path) {
		return errors.Wrapf(ErrNotFound, "Session %s", session.ID)
	}

	return fs.write(path, session)
}

func (fs *FileStore) Delete(ctx context.Context, id string) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	path, err := fs.sessionPath(id)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrNotFound, "Session %s", id)
		}

		return errors.Wrapf(err, "Failed to delete session %s", id)
	}

	return nil
}

func (fs *FileStore) List(ctx context.Context) ([]*Session, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	return fs.list(ctx)
}

func (fs *FileStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	fs.lock.Lock()
	defer fs.lock.Unlock()

	sessions, err := fs.list(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, session := range sessions {
		if !session.Updated.Before(before) {
			continue
		}

		if err := os.Remove(filepath.Join(fs.dir, session.ID+sessionFileExtension)); err != nil && !os.IsNotExist(err) {
			return deleted, errors.Wrapf(err, "Failed to delete expired session %s", session.ID)
		}

		deleted++
	}

	return deleted, nil
}

func (fs *FileStore) list(ctx context.Context) ([]*Session, error) {
	entries, err := os.ReadDir(fs.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read session directory %s", fs.dir)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), sessionFileExtension) {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), sessionFileExtension)
		if _, err := xid.FromString(id); err != nil {
			continue
		}

		session, err := fs.read(filepath.Join(fs.dir, entry.Name()))
		if err != nil {

			// a corrupt file shouldn't hide the other sessions
			fs.logger.WarnWithCtx(ctx, "Skipping unreadable session file",
				"name", entry.Name(),
				"err", errors.GetErrorStackString(err, 5))
			continue
		}

		sessions = append(sessions, session)
	}

	sortNewestFirst(sessions)

	return sessions, nil
}

func (fs *FileStore) sessionPath(id string) (string, error) {
	if _, err := xid.FromString(id); err != nil {
		return "", errors.Wrapf(ErrNotFound, "Session %s", id)
	}

	return filepath.Join(fs.dir, id+sessionFileExtension), nil
}

func (fs *FileStore) read(path string) (*Session, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(ErrNotFound, "Session %s", strings.TrimSuffix(filepath.Base(path), sessionFileExtension))
		}

		return nil, errors.Wrapf(err, "Failed to read session file %s", path)
	}

	session := &Session{}
	if err := json.Unmarshal(contents, session); err != nil {
		return nil, errors.Wrapf(err, "Failed to decode session file %s", path)
	}

	// decoded lists are []interface{} until normalized
	session.State.Answers, err = assessment.NormalizeAnswers(session.State.Answers)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to decode answers of %s", path)
	}

	return session, nil
}

// write replaces the file atomically through a temporary sibling
func (fs *FileStore) write(path string, session *Session) error {
	contents, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Failed to encode session")
	}

	tempFile, err := os.CreateTemp(fs.dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "Failed to create temporary session file")
	}

	committed := false
	defer func() {
		tempFile.Close() // nolint: errcheck
		if !committed {
			os.Remove(tempFile.Name()) // nolint: errcheck
		}
	}()

	if _, err := tempFile.Write(contents); err != nil {
		return errors.Wrap(err, "Failed to write temporary session file")
	}

	if err := tempFile.Sync(); err != nil {
		return errors.Wrap(err, "Failed to sync temporary session file")
	}

	if err := tempFile.Close(); err != nil {
		return errors.Wrap(err, "Failed to close temporary session file")
	}

	if err := os.Rename(tempFile.Name(), path); err != nil {
		return errors.Wrapf(err, "Failed to move session file into place at %s", path)
	}

	committed = true

	return nil
}
