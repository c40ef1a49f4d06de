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

package status

import (
	"testing"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/suite"
)

type StatusTestSuite struct {
	suite.Suite
}

func (suite *StatusTestSuite) TestExitCode() {
	suite.Require().Equal(0, ExitCode(nil))
	suite.Require().Equal(3, ExitCode(&ExitError{Code: 3}))
	suite.Require().Equal(137, ExitCode(errors.Wrap(&ExitError{Code: 137}, "Failed to run")))
	suite.Require().Equal(1, ExitCode(ErrBuildFailed))
	suite.Require().Equal(1, ExitCode(NewLaunchFailedError(2, "")))
}

func (suite *StatusTestSuite) TestLaunchFailedError() {
	err := NewLaunchFailedError(2, "ModuleNotFoundError: No module named 'streamlit'")
	suite.Require().Equal(ErrLaunchFailed, errors.RootCause(err))
	suite.Require().Contains(err.Error(), "code 2")
	suite.Require().Contains(err.Error(), "streamlit")
}

func TestStatusTestSuite(t *testing.T) {
	suite.Run(t, new(StatusTestSuite))
}
