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
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type ShellRunner struct {
	logger logger.Logger
	shell  string
}

func NewShellRunner(parentLogger logger.Logger) (*ShellRunner, error) {
	return &ShellRunner{
		logger: parentLogger.GetChild("runner"),
		shell:  "/bin/sh",
	}, nil
}

func (sr *ShellRunner) Run(ctx context.Context,
	runOptions *RunOptions,
	format string,
	vars ...interface{}) (RunResult, error) {

	// support missing runOptions for callers that send nil
	if runOptions == nil {
		runOptions = &RunOptions{}
	}

	formattedCommand := fmt.Sprintf(format, vars...)
	redactedCommand := Redact(runOptions.LogRedactions, formattedCommand)

	if !runOptions.LogOnlyOnFailure {
		sr.logger.DebugWith("Executing", "command", redactedCommand)
	}

	cmd := exec.CommandContext(ctx, sr.shell, "-c", formattedCommand)
	sr.applyRunOptions(cmd, runOptions)

	runResult := RunResult{
		ExitCode: 0,
	}

	if err := sr.runAndCaptureOutput(cmd, runOptions, &runResult); err != nil {
		runResult.ExitCode = sr.getExitCode(err)

		sr.logger.DebugWith("Failed to execute command",
			"command", redactedCommand,
			"output", runResult.Output,
			"stderr", runResult.Stderr,
			"exitCode", runResult.ExitCode,
			"err", err)

		return runResult, errors.Wrapf(err, "stdout:\n%s\nstderr:\n%s", runResult.Output, runResult.Stderr)
	}

	if !runOptions.LogOnlyOnFailure {
		sr.logger.DebugWith("Command executed successfully",
			"output", runResult.Output,
			"stderr", runResult.Stderr,
			"exitCode", runResult.ExitCode)
	}

	return runResult, nil
}

func (sr *ShellRunner) Stream(ctx context.Context,
	runOptions *RunOptions,
	format string,
	vars ...interface{}) (io.ReadCloser, error) {

	if runOptions == nil {
		runOptions = &RunOptions{}
	}

	formattedCommand := fmt.Sprintf(format, vars...)

	if !runOptions.LogOnlyOnFailure {
		sr.logger.DebugWith("Streaming", "command", Redact(runOptions.LogRedactions, formattedCommand))
	}

	cmd := exec.CommandContext(ctx, sr.shell, "-c", formattedCommand)
	sr.applyRunOptions(cmd, runOptions)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create stdout pipe")
	}

	// stderr goes to the same pipe as stdout
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "Failed to start command")
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			sr.logger.DebugWith("Stream command finished with an error", "err", err)
			return
		}
		sr.logger.Debug("Stream command finished")
	}()

	return stdoutPipe, nil
}

func (sr *ShellRunner) SetShell(shell string) {
	sr.shell = shell
}

func (sr *ShellRunner) applyRunOptions(cmd *exec.Cmd, runOptions *RunOptions) {
	if runOptions.WorkingDir != nil {
		cmd.Dir = *runOptions.WorkingDir
	}

	if runOptions.Env != nil {
		cmd.Env = sr.getEnvFromOptions(runOptions)
	}

	if runOptions.Stdin != nil {
		cmd.Stdin = strings.NewReader(*runOptions.Stdin)
	}
}

func (sr *ShellRunner) getEnvFromOptions(runOptions *RunOptions) []string {
	envs := []string{}

	for name, value := range runOptions.Env {
		envs = append(envs, fmt.Sprintf("%s=%s", name, value))
	}

	// stable order makes the command reproducible in logs
	sort.Strings(envs)

	return envs
}

func (sr *ShellRunner) getExitCode(err error) int {
	exitError, ok := err.(*exec.ExitError)
	if !ok {
		return -1
	}

	if waitStatus, ok := exitError.Sys().(syscall.WaitStatus); ok {
		return waitStatus.ExitStatus()
	}

	return exitError.ExitCode()
}

func (sr *ShellRunner) runAndCaptureOutput(cmd *exec.Cmd,
	runOptions *RunOptions,
	runResult *RunResult) error {

	switch runOptions.CaptureOutputMode {

	case CaptureOutputModeCombined:
		stdoutAndStderr, err := cmd.CombinedOutput()
		runResult.Output = Redact(runOptions.LogRedactions, string(stdoutAndStderr))
		return err

	case CaptureOutputModeStdout:
		var stdOut, stdErr bytes.Buffer
		cmd.Stdout = &stdOut
		cmd.Stderr = &stdErr

		err := cmd.Run()

		runResult.Output = Redact(runOptions.LogRedactions, stdOut.String())
		runResult.Stderr = Redact(runOptions.LogRedactions, stdErr.String())

		return err
	}

	return fmt.Errorf("Invalid output capture mode: %d", runOptions.CaptureOutputMode)
}

// Redact replaces every occurrence of the given values with a placeholder
func Redact(redactions []string, runOutput string) string {
	if redactions == nil {
		return runOutput
	}

	var replacements []string

	for _, redactionField := range redactions {
		if redactionField == "" {
			continue
		}
		replacements = append(replacements, redactionField, "[redacted]")
	}

	if len(replacements) == 0 {
		return runOutput
	}

	replacer := strings.NewReplacer(replacements...)
	return replacer.Replace(runOutput)
}
