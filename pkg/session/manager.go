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
	"sync"
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/xid"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

type ManagerOptions struct {

	// sessions idle for longer are deleted by the sweeper
	TTL           time.Duration
	SweepInterval time.Duration
}

// Manager drives sessions through the questionnaire and persists them in a store
type Manager struct {
	logger        logger.Logger
	store         Store
	questionnaire *assessment.Questionnaire
	options       ManagerOptions
	cron          *cron.Cron
	now           func() time.Time

	// serializes read-modify-write cycles
	lock sync.Mutex
}

func NewManager(parentLogger logger.Logger,
	store Store,
	questionnaire *assessment.Questionnaire,
	options *ManagerOptions) *Manager {
	resolvedOptions := ManagerOptions{
		TTL:           DefaultTTL,
		SweepInterval: DefaultSweepInterval,
	}

	if options != nil {
		if options.TTL > 0 {
			resolvedOptions.TTL = options.TTL
		}

		if options.SweepInterval > 0 {
			resolvedOptions.SweepInterval = options.SweepInterval
		}
	}

	return &Manager{
		logger:        parentLogger.GetChild("sessions"),
		store:         store,
		questionnaire: questionnaire,
		options:       resolvedOptions,
		now:           time.Now,
	}
}

func (m *Manager) Create(ctx context.Context, language string) (*Session, error) {
	now := m.now()

	session := &Session{
		ID:       xid.New().String(),
		State:    assessment.State{Answers: assessment.Answers{}},
		Language: language,
		Created:  now,
		Updated:  now,
	}

	if err := m.store.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "Failed to create session")
	}

	m.logger.DebugWithCtx(ctx, "Created session", "id", session.ID, "language", language)

	return session, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) List(ctx context.Context) ([]*Session, error) {
	return m.store.List(ctx)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}

	m.logger.DebugWithCtx(ctx, "Deleted session", "id", id)

	return nil
}

// Submit records the answers of the current step and advances the session
func (m *Manager) Submit(ctx context.Context, id string, submission map[string]interface{}) (*Session, error) {
	return m.modify(ctx, id, func(session *Session) error {
		return m.questionnaire.Submit(&session.State, submission)
	})
}

func (m *Manager) Back(ctx context.Context, id string) (*Session, error) {
	return m.modify(ctx, id, func(session *Session) error {
		m.questionnaire.Back(&session.State)
		return nil
	})
}

// Reset discards all answers, keeping the session and its language
func (m *Manager) Reset(ctx context.Context, id string) (*Session, error) {
	return m.modify(ctx, id, func(session *Session) error {
		session.State = assessment.State{Answers: assessment.Answers{}}
		return nil
	})
}

// Import creates a new session from an exported document
func (m *Manager) Import(ctx context.Context, contents []byte, language string) (*Session, error) {
	document, answers, err := Import(contents)
	if err != nil {
		return nil, err
	}

	if document.Language != "" {
		language = document.Language
	}

	now := m.now()

	session := &Session{
		ID: xid.New().String(),
		State: assessment.State{
			Answers:              answers,
			CurrentQuestionIndex: document.CurrentQuestionIndex,
			Completed:            document.Completed,
		},
		Language: language,
		Created:  now,
		Updated:  now,
	}

	m.questionnaire.NormalizeState(&session.State)

	if err := m.store.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "Failed to store imported session")
	}

	m.logger.InfoWithCtx(ctx, "Imported session",
		"id", session.ID,
		"answers", len(answers),
		"completed", session.State.Completed)

	return session, nil
}

func (m *Manager) Export(ctx context.Context, id string) (string, []byte, error) {
	session, err := m.store.Get(ctx, id)
	if err != nil {
		return "", nil, err
	}

	return Export(session, m.now())
}

// Sweep deletes sessions that have been idle longer than the TTL
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	deleted, err := m.store.DeleteExpired(ctx, m.now().Add(-m.options.TTL))
	if err != nil {
		return deleted, errors.Wrap(err, "Failed to delete expired sessions")
	}

	if deleted > 0 {
		m.logger.InfoWithCtx(ctx, "Deleted expired sessions", "deleted", deleted, "ttl", m.options.TTL.String())
	}

	return deleted, nil
}

// Start schedules the sweeper. Stop must be called to release it
func (m *Manager) Start(ctx context.Context) error {
	m.cron = cron.New()

	if _, err := m.cron.AddFunc("@every "+m.options.SweepInterval.String(), func() {
		if _, err := m.Sweep(ctx); err != nil {
			m.logger.WarnWithCtx(ctx, "Session sweep failed", "err", errors.GetErrorStackString(err, 10))
		}
	}); err != nil {
		return errors.Wrap(err, "Failed to schedule session sweeper")
	}

	m.cron.Start()

	m.logger.InfoWithCtx(ctx, "Started session sweeper",
		"interval", m.options.SweepInterval.String(),
		"ttl", m.options.TTL.String())

	return nil
}

func (m *Manager) Stop() {
	if m.cron == nil {
		return
	}

	// wait for a running sweep to finish
	<-m.cron.Stop().Done()
}

func (m *Manager) modify(ctx context.Context, id string, modifier func(session *Session) error) (*Session, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	session, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.questionnaire.NormalizeState(&session.State)

	if err := modifier(session); err != nil {
		return nil, err
	}

	session.Updated = m.now()

	if err := m.store.Update(ctx, session); err != nil {
		return nil, errors.Wrapf(err, "Failed to update session %s", id)
	}

	return session, nil
}
