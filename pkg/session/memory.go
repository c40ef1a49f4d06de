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
	"sort"
	"sync"
	"time"

	"github.com/nuclio/errors"
)

type MemoryStore struct {
	lock     sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*Session{},
	}
}

func (ms *MemoryStore) Create(ctx context.Context, session *Session) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if _, found := ms.sessions[session.ID]; found {
		return errors.Errorf("Session %s already exists", session.ID)
	}

	ms.sessions[session.ID] = session.clone()

	return nil
}

func (ms *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	session, found := ms.sessions[id]
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "Session %s", id)
	}

	return session.clone(), nil
}

func (ms *MemoryStore) Update(ctx context.Context, session *Session) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if _, found := ms.sessions[session.ID]; !found {
		return errors.Wrapf(ErrNotFound, "Session %s", session.ID)
	}

	ms.sessions[session.ID] = session.clone()

	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, id string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	if _, found := ms.sessions[id]; !found {
		return errors.Wrapf(ErrNotFound, "Session %s", id)
	}

	delete(ms.sessions, id)

	return nil
}

func (ms *MemoryStore) List(ctx context.Context) ([]*Session, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()

	sessions := make([]*Session, 0, len(ms.sessions))
	for _, session := range ms.sessions {
		sessions = append(sessions, session.clone())
	}

	sortNewestFirst(sessions)

	return sessions, nil
}

func (ms *MemoryStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	ms.lock.Lock()
	defer ms.lock.Unlock()

	deleted := 0
	for id, session := range ms.sessions {
		if session.Updated.Before(before) {
			delete(ms.sessions, id)
			deleted++
		}
	}

	return deleted, nil
}

func sortNewestFirst(sessions []*Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Updated.Equal(sessions[j].Updated) {
			return sessions[i].ID > sessions[j].ID
		}

		return sessions[i].Updated.After(sessions[j].Updated)
	})
}
