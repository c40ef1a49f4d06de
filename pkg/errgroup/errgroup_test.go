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

package errgroup

import (
	"context"
	"testing"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type ErrGroupTestSuite struct {
	suite.Suite
	logger logger.Logger
	ctx    context.Context
}

func (suite *ErrGroupTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
}

func (suite *ErrGroupTestSuite) TestAllSucceed() {
	errGroup, _ := WithContext(suite.ctx, suite.logger)

	results := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		errGroup.Go("worker", func() error {
			results <- i
			return nil
		})
	}

	suite.Require().NoError(errGroup.Wait())
	suite.Require().Len(results, 3)
}

func (suite *ErrGroupTestSuite) TestFailureCancelsContext() {
	errGroup, errGroupCtx := WithContext(suite.ctx, suite.logger)

	errGroup.Go("failing", func() error {
		return errors.New("Listener closed")
	})

	errGroup.Go("waiting", func() error {
		select {
		case <-errGroupCtx.Done():
			return nil
		case <-time.After(5 * time.Second):
			return errors.New("Context was not cancelled")
		}
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Equal("Listener closed", err.Error())
}

func (suite *ErrGroupTestSuite) TestPanicBecomesError() {
	errGroup, _ := WithContext(suite.ctx, suite.logger)

	errGroup.Go("panicking", func() error {
		panic("boom")
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "Action panicking panicked: boom")
}

func (suite *ErrGroupTestSuite) TestPanicWithError() {
	errGroup, _ := WithContext(suite.ctx, suite.logger)

	errGroup.Go("panicking", func() error {
		panic(errors.New("Bad state"))
	})

	err := errGroup.Wait()
	suite.Require().Error(err)
	suite.Require().Contains(err.Error(), "Action panicking panicked")
}

func TestErrGroupTestSuite(t *testing.T) {
	suite.Run(t, new(ErrGroupTestSuite))
}
