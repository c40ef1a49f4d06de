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

package processwaiter

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/nuclio/errors"
)

var ErrCancelled = errors.New("Wait cancelled")
var ErrTimeout = errors.New("Timed out waiting for process to exit")

type ProcessWaiter struct {
	cancelChan chan struct{}
	resultChan chan WaitResult
	doneChan   chan struct{}
}

type WaitResult struct {
	ProcessState *os.ProcessState
	Err          error
}

// ExitCode returns the exit code of the process, or -1 if it did not exit normally
func (wr WaitResult) ExitCode() int {
	if wr.ProcessState == nil {
		return -1
	}

	return wr.ProcessState.ExitCode()
}

func NewProcessWaiter() (*ProcessWaiter, error) {
	return &ProcessWaiter{
		resultChan: make(chan WaitResult, 1),
		cancelChan: make(chan struct{}, 1),
		doneChan:   make(chan struct{}),
	}, nil
}

// Wait waits for a started command to exit. the result is delivered once, on timeout, cancellation
// or exit (whichever comes first)
func (pw *ProcessWaiter) Wait(cmd *exec.Cmd, timeout *time.Duration) <-chan WaitResult {
	var timeoutChan <-chan time.Time

	if timeout != nil {
		timeoutChan = time.After(*timeout)
	}

	processExitedChan := make(chan WaitResult, 1)

	go func() {
		defer close(pw.doneChan)

		// run a go process to block on process. terminates only when the process terminates
		go pw.waitForProcess(cmd, processExitedChan)

		select {
		case <-timeoutChan:
			pw.resultChan <- WaitResult{nil, ErrTimeout}
		case waitResult := <-processExitedChan:

			// check if cancelled (could be that both cancelled and process exited at the same time)
			// and prefer that over a process termination
			select {
			case <-pw.cancelChan:
				pw.resultChan <- WaitResult{waitResult.ProcessState, ErrCancelled}
			default:
				pw.resultChan <- waitResult
			}
		case <-pw.cancelChan:
			pw.resultChan <- WaitResult{nil, ErrCancelled}
		}
	}()

	return pw.resultChan
}

// WaitWithContext is Wait that cancels when ctx is done
func (pw *ProcessWaiter) WaitWithContext(ctx context.Context,
	cmd *exec.Cmd,
	timeout *time.Duration) <-chan WaitResult {
	resultChan := pw.Wait(cmd, timeout)

	go func() {
		select {
		case <-ctx.Done():
			pw.Cancel() // nolint: errcheck
		case <-pw.doneChan:
		}
	}()

	return resultChan
}

func (pw *ProcessWaiter) Cancel() error {
	select {
	case pw.cancelChan <- struct{}{}:
	default:
		// already cancelled
	}

	return nil
}

func (pw *ProcessWaiter) waitForProcess(cmd *exec.Cmd, processExitedChan chan WaitResult) {
	err := cmd.Wait()

	// a non zero exit is reported through the process state, not as a wait error
	if _, isExitError := err.(*exec.ExitError); isExitError {
		err = nil
	}

	// shove the result into the channel when we're done
	processExitedChan <- WaitResult{cmd.ProcessState, err}

	close(processExitedChan)
}
