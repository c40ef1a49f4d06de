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
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"

	"github.com/nuclio/errors"
)

var ErrNotFound = errors.New("Session not found")
var ErrInvalidSession = errors.New("Invalid session")

// Session is one user's progress through the questionnaire
type Session struct {
	ID       string           `json:"id"`
	State    assessment.State `json:"state"`
	Language string           `json:"language"`
	Created  time.Time        `json:"created"`
	Updated  time.Time        `json:"updated"`
}

func (s *Session) clone() *Session {
	cloned := *s
	cloned.State.Answers = s.State.Answers.Clone()

	return &cloned
}

// Store persists sessions. Implementations return copies, so callers may modify what they get
type Store interface {

	// Create stores a new session
	Create(ctx context.Context, session *Session) error

	// Get returns ErrNotFound for unknown ids
	Get(ctx context.Context, id string) (*Session, error)

	// Update replaces an existing session
	Update(ctx context.Context, session *Session) error

	Delete(ctx context.Context, id string) error

	// List returns all sessions, most recently updated first
	List(ctx context.Context) ([]*Session, error)

	// DeleteExpired removes sessions last updated before the given time
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}
