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
	"fmt"

	"github.com/nuclio/errors"
)

var ErrBuildFailed = errors.New("Build failed")
var ErrImageNotFound = errors.New("Image not found")
var ErrLaunchFailed = errors.New("Service process failed to launch")
var ErrStartupTimeout = errors.New("Service process did not become ready in time")

// ExitError is returned when the service process exits on its own with a non zero code
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("Service process exited with code %d", e.Code)
}

// NewLaunchFailedError reports a service process that exited before becoming ready
func NewLaunchFailedError(exitCode int, output string) error {
	message := fmt.Sprintf("exited during startup with code %d", exitCode)
	if output != "" {
		message = fmt.Sprintf("%s, output:\n%s", message, output)
	}

	return errors.Wrap(ErrLaunchFailed, message)
}

// ExitCode maps the outcome of a launcher operation to a process exit status: 0 for success,
// the service process exit code for an ExitError, 1 otherwise
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if exitError, ok := errors.RootCause(err).(*ExitError); ok {
		return exitError.Code
	}

	if exitError, ok := err.(*ExitError); ok {
		return exitError.Code
	}

	return 1
}
