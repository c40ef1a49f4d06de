//go:build test_unit

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/rs/xid"
	"github.com/stretchr/testify/suite"
)

type storeTestSuite struct {
	suite.Suite
	logger   logger.Logger
	ctx      context.Context
	store    Store
	newStore func() Store
	epoch    time.Time
}

func (suite *storeTestSuite) SetupSuite() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.ctx = context.Background()
	suite.epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *storeTestSuite) SetupTest() {
	suite.store = suite.newStore()
}

func (suite *storeTestSuite) TestCreateGetUpdateDelete() {
	session := suite.newSession(0)

	suite.Require().NoError(suite.store.Create(suite.ctx, session))
	suite.Require().Error(suite.store.Create(suite.ctx, session))

	stored, err := suite.store.Get(suite.ctx, session.ID)
	suite.Require().NoError(err)
	suite.Require().Equal(session.ID, stored.ID)
	suite.Require().Equal([]string{"Acme", "Pay Ltd"}, stored.State.Answers.List("data_parties"))
	suite.Require().Equal(float64(12), stored.State.Answers["headcount"])
	suite.Require().True(session.Created.Equal(stored.Created))

	// the store hands out copies
	stored.State.Answers["system_name"] = "Changed"
	again, err := suite.store.Get(suite.ctx, session.ID)
	suite.Require().NoError(err)
	suite.Require().Equal("Web Shop", again.State.Answers["system_name"])

	stored.State.CurrentQuestionIndex = 4
	suite.Require().NoError(suite.store.Update(suite.ctx, stored))

	again, err = suite.store.Get(suite.ctx, session.ID)
	suite.Require().NoError(err)
	suite.Require().Equal(4, again.State.CurrentQuestionIndex)
	suite.Require().Equal("Changed", again.State.Answers["system_name"])

	suite.Require().NoError(suite.store.Delete(suite.ctx, session.ID))

	_, err = suite.store.Get(suite.ctx, session.ID)
	suite.Require().Equal(ErrNotFound, errors.RootCause(err))

	err = suite.store.Delete(suite.ctx, session.ID)
	suite.Require().Equal(ErrNotFound, errors.RootCause(err))

	err = suite.store.Update(suite.ctx, session)
	suite.Require().Equal(ErrNotFound, errors.RootCause(err))
}

func (suite *storeTestSuite) TestGetUnknownID() {
	for _, id := range []string{xid.New().String(), "../../etc/passwd", ""} {
		_, err := suite.store.Get(suite.ctx, id)
		suite.Require().Equal(ErrNotFound, errors.RootCause(err), id)
	}
}

func (suite *storeTestSuite) TestListNewestFirst() {
	var ids []string
	for _, offset := range []time.Duration{time.Minute, 3 * time.Minute, 2 * time.Minute} {
		session := suite.newSession(offset)
		suite.Require().NoError(suite.store.Create(suite.ctx, session))
		ids = append(ids, session.ID)
	}

	sessions, err := suite.store.List(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(sessions, 3)
	suite.Require().Equal([]string{ids[1], ids[2], ids[0]},
		[]string{sessions[0].ID, sessions[1].ID, sessions[2].ID})
}

func (suite *storeTestSuite) TestDeleteExpired() {
	old := suite.newSession(0)
	fresh := suite.newSession(time.Hour)

	suite.Require().NoError(suite.store.Create(suite.ctx, old))
	suite.Require().NoError(suite.store.Create(suite.ctx, fresh))

	deleted, err := suite.store.DeleteExpired(suite.ctx, suite.epoch.Add(30*time.Minute))
	suite.Require().NoError(err)
	suite.Require().Equal(1, deleted)

	sessions, err := suite.store.List(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(sessions, 1)
	suite.Require().Equal(fresh.ID, sessions[0].ID)
}

func (suite *storeTestSuite) newSession(updatedOffset time.Duration) *Session {
	return &Session{
		ID: xid.New().String(),
		State: assessment.State{
			Answers: assessment.Answers{
				"system_name":  "Web Shop",
				"data_parties": []string{"Acme", "Pay Ltd"},
				"headcount":    float64(12),
			},
			CurrentQuestionIndex: 3,
		},
		Language: "en",
		Created:  suite.epoch,
		Updated:  suite.epoch.Add(updatedOffset),
	}
}

type MemoryStoreTestSuite struct {
	storeTestSuite
}

func (suite *MemoryStoreTestSuite) SetupSuite() {
	suite.storeTestSuite.SetupSuite()
	suite.newStore = func() Store {
		return NewMemoryStore()
	}
}

type FileStoreTestSuite struct {
	storeTestSuite
	dir string
}

func (suite *FileStoreTestSuite) SetupSuite() {
	suite.storeTestSuite.SetupSuite()
	suite.newStore = func() Store {
		suite.dir = suite.T().TempDir()

		store, err := NewFileStore(suite.logger, suite.dir)
		suite.Require().NoError(err)

		return store
	}
}

func (suite *FileStoreTestSuite) TestListSkipsForeignAndCorruptFiles() {
	session := suite.newSession(0)
	suite.Require().NoError(suite.store.Create(suite.ctx, session))

	suite.Require().NoError(os.WriteFile(filepath.Join(suite.dir, "notes.txt"), []byte("x"), 0644))
	suite.Require().NoError(os.WriteFile(filepath.Join(suite.dir, xid.New().String()+".json"), []byte("{"), 0644))

	sessions, err := suite.store.List(suite.ctx)
	suite.Require().NoError(err)
	suite.Require().Len(sessions, 1)
	suite.Require().Equal(session.ID, sessions[0].ID)
}

func (suite *FileStoreTestSuite) TestNoTemporaryFilesRemain() {
	session := suite.newSession(0)
	suite.Require().NoError(suite.store.Create(suite.ctx, session))
	suite.Require().NoError(suite.store.Update(suite.ctx, session))

	entries, err := os.ReadDir(suite.dir)
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)
	suite.Require().Equal(session.ID+".json", entries[0].Name())
}

func TestStoreTestSuites(t *testing.T) {
	suite.Run(t, new(MemoryStoreTestSuite))
	suite.Run(t, new(FileStoreTestSuite))
}
