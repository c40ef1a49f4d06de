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

package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/dataflowassess/dfa/pkg/launcher/probe"
	"github.com/dataflowassess/dfa/pkg/launcher/status"
	"github.com/dataflowassess/dfa/pkg/processwaiter"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	psprocess "github.com/shirou/gopsutil/process"
)

// Options describe the service process to run on the host
type Options struct {
	Dir            string
	Command        []string
	Env            map[string]string
	Port           int
	ProbePath      string
	StartupTimeout time.Duration
	StopTimeout    time.Duration
	Stdout         io.Writer
	Stderr         io.Writer
}

// Runner runs the service process directly on the host, in its own process group
type Runner struct {
	logger logger.Logger
	prober *probe.Prober
}

type runningProcess struct {
	cmd         *exec.Cmd
	exitedChan  chan struct{}
	waitResult  processwaiter.WaitResult
	descendants []int32
}

func NewRunner(parentLogger logger.Logger, prober *probe.Prober) (*Runner, error) {
	return &Runner{
		logger: parentLogger.GetChild("process"),
		prober: prober,
	}, nil
}

// Run starts the service process and blocks until it exits or ctx is done. cancellation stops the
// process group and counts as a graceful exit
func (r *Runner) Run(ctx context.Context, options *Options) error {
	if len(options.Command) == 0 {
		return errors.New("Command must not be empty")
	}

	running, err := r.start(options)
	if err != nil {
		return errors.Wrap(status.ErrLaunchFailed, err.Error())
	}

	r.logger.InfoWithCtx(ctx, "Service process started",
		"pid", running.cmd.Process.Pid,
		"command", options.Command,
		"port", options.Port)

	err = r.prober.WaitReady(ctx, &probe.Config{
		Port:    options.Port,
		Path:    options.ProbePath,
		Timeout: options.StartupTimeout,
	}, func(ctx context.Context) error {
		select {
		case <-running.exitedChan:
			return status.NewLaunchFailedError(running.waitResult.ExitCode(), "")
		default:
			return nil
		}
	})

	switch {
	case err == nil:
		r.logger.InfoWithCtx(ctx, "Service process is ready", "port", options.Port)
	case ctx.Err() != nil:
		return r.stop(running, options.StopTimeout)
	case errors.RootCause(err) == probe.ErrNotReady:
		r.stop(running, options.StopTimeout) // nolint: errcheck
		return errors.Wrap(status.ErrStartupTimeout, err.Error())
	default:
		r.stop(running, options.StopTimeout) // nolint: errcheck
		return err
	}

	select {
	case <-ctx.Done():
		r.logger.InfoWith("Stopping service process", "pid", running.cmd.Process.Pid)
		return r.stop(running, options.StopTimeout)
	case <-running.exitedChan:
		exitCode := running.waitResult.ExitCode()

		r.logger.InfoWith("Service process exited", "exitCode", exitCode)

		// take down whatever it left behind in its group
		r.killGroup(running)

		if exitCode != 0 {
			return &status.ExitError{Code: exitCode}
		}

		return nil
	}
}

func (r *Runner) start(options *Options) (*runningProcess, error) {
	cmd := exec.Command(options.Command[0], options.Command[1:]...)
	cmd.Dir = options.Dir
	cmd.Env = append(os.Environ(), envSlice(options.Env)...)
	cmd.Stdout = options.Stdout
	cmd.Stderr = options.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "Failed to start %s", options.Command[0])
	}

	processWaiter, err := processwaiter.NewProcessWaiter()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create process waiter")
	}

	running := &runningProcess{
		cmd:        cmd,
		exitedChan: make(chan struct{}),
	}

	go func() {
		running.waitResult = <-processWaiter.Wait(cmd, nil)
		close(running.exitedChan)
	}()

	return running, nil
}

// stop sends SIGTERM to the process group, escalating to SIGKILL after stopTimeout
func (r *Runner) stop(running *runningProcess, stopTimeout time.Duration) error {
	pgid := running.cmd.Process.Pid
	running.descendants = r.collectDescendants(pgid)

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		r.logger.WarnWith("Failed to terminate process group", "pgid", pgid, "err", err)
	}

	select {
	case <-running.exitedChan:
	case <-time.After(stopTimeout):
		r.logger.WarnWith("Service process did not stop in time, killing", "pgid", pgid, "timeout", stopTimeout)

		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			return errors.Wrap(err, "Failed to kill process group")
		}

		<-running.exitedChan
	}

	r.killGroup(running)

	return nil
}

// killGroup kills any process remaining in the service process group
func (r *Runner) killGroup(running *runningProcess) {
	pgid := running.cmd.Process.Pid

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		r.logger.WarnWith("Failed to kill process group", "pgid", pgid, "err", err)
	}

	// descendants may have left the group (e.g. setsid), kill them by pid
	for _, pid := range running.descendants {
		exists, err := psprocess.PidExists(pid)
		if err != nil || !exists {
			continue
		}

		r.logger.WarnWith("Killing leftover descendant process", "pid", pid)

		if err := syscall.Kill(int(pid), syscall.SIGKILL); err != nil && err != syscall.ESRCH {
			r.logger.WarnWith("Failed to kill descendant process", "pid", pid, "err", err)
		}
	}
}

// collectDescendants returns the pids of all processes descending from pid
func (r *Runner) collectDescendants(pid int) []int32 {
	var descendants []int32

	pending := []int32{int32(pid)}
	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		proc, err := psprocess.NewProcess(current)
		if err != nil {
			continue
		}

		children, err := proc.Children()
		if err != nil {
			continue
		}

		for _, child := range children {
			descendants = append(descendants, child.Pid)
			pending = append(pending, child.Pid)
		}
	}

	return descendants
}

func envSlice(env map[string]string) []string {
	var envs []string

	for name, value := range env {
		envs = append(envs, fmt.Sprintf("%s=%s", name, value))
	}

	sort.Strings(envs)
	return envs
}
