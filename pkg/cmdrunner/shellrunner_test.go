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

package cmdrunner

import (
	"context"
	"os/exec"
	"testing"

	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type ShellRunnerTestSuite struct {
	suite.Suite
	logger      logger.Logger
	shellRunner *ShellRunner
	runOptions  *RunOptions
}

func (suite *ShellRunnerTestSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.shellRunner, err = NewShellRunner(suite.logger)
	suite.Require().NoError(err)

	suite.runOptions = &RunOptions{}
}

func (suite *ShellRunnerTestSuite) TestStream() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// keep the command alive while reading so the pipe isn't closed under us
	reader, err := suite.shellRunner.Stream(ctx, nil, `echo something; sleep 2`)
	suite.Require().NoError(err)

	buffer := make([]byte, 64)
	readBytes, err := reader.Read(buffer)
	suite.Require().NoError(err)
	suite.Require().Contains(string(buffer[:readBytes]), "something")
}

func (suite *ShellRunnerTestSuite) TestBadShell() {
	suite.shellRunner.SetShell("/bin/definitelynotashell")

	runResult, err := suite.shellRunner.Run(context.Background(), nil, `pwd`)
	suite.Require().Error(err)
	suite.Require().Equal(-1, runResult.ExitCode)
}

func (suite *ShellRunnerTestSuite) TestRunAndCaptureOutputCombinedReturnsOutputAndNoStderr() {
	cmd := exec.Command(suite.shellRunner.shell, "-c", `echo "foo1 foo2" ; echo "foo3">&2`)
	suite.runOptions.CaptureOutputMode = CaptureOutputModeCombined

	var runResult RunResult
	err := suite.shellRunner.runAndCaptureOutput(cmd, suite.runOptions, &runResult)
	suite.Require().NoError(err)

	suite.Require().Equal("foo1 foo2\nfoo3\n", runResult.Output)
	suite.Require().Empty(runResult.Stderr)
}

func (suite *ShellRunnerTestSuite) TestRunAndCaptureOutputStdoutReturnsStdoutAndStderr() {
	cmd := exec.Command(suite.shellRunner.shell, "-c", `echo "foo1 foo2" ; echo "foo3">&2`)
	suite.runOptions.CaptureOutputMode = CaptureOutputModeStdout

	var runResult RunResult
	err := suite.shellRunner.runAndCaptureOutput(cmd, suite.runOptions, &runResult)
	suite.Require().NoError(err)

	suite.Require().Equal("foo1 foo2\n", runResult.Output)
	suite.Require().Equal("foo3\n", runResult.Stderr)
}

func (suite *ShellRunnerTestSuite) TestRunAndCaptureOutputRedactsStdoutAndStderr() {
	cmd := exec.Command(suite.shellRunner.shell, "-c", `echo "foo1 foo2 secret" ; echo "foo3password">&2`)
	suite.runOptions.CaptureOutputMode = CaptureOutputModeStdout
	suite.runOptions.LogRedactions = []string{"password", "secret"}

	var runResult RunResult
	err := suite.shellRunner.runAndCaptureOutput(cmd, suite.runOptions, &runResult)
	suite.Require().NoError(err)

	suite.Require().Equal("foo1 foo2 [redacted]\n", runResult.Output)
	suite.Require().Equal("foo3[redacted]\n", runResult.Stderr)
}

func (suite *ShellRunnerTestSuite) TestRedactIgnoresEmptyValues() {
	suite.Require().Equal("keep me", Redact([]string{""}, "keep me"))
	suite.Require().Equal("keep me", Redact(nil, "keep me"))
}

func TestShellRunnerTestSuite(t *testing.T) {
	suite.Run(t, new(ShellRunnerTestSuite))
}
