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

package dockerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dataflowassess/dfa/pkg/cmdrunner"

	"github.com/docker/distribution/reference"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// RestrictedNameChars collects the characters allowed to represent a network or endpoint name.
const restrictedNameChars = `[a-zA-Z0-9][a-zA-Z0-9_.-]`

// RestrictedNamePattern is a regular expression to validate names against the collection of restricted characters.
// taken from moby and used to validate names (network, container, labels, endpoints)
var restrictedNameRegex = regexp.MustCompile(`^/?` + restrictedNameChars + `+$`)

var containerIDRegex = regexp.MustCompile(`^[\w+-\.]+$`)

// loose regexes, today just prohibit whitespaces
var restrictedBuildArgRegex = regexp.MustCompile(`^[\S]+$`)
var volumeNameRegex = regexp.MustCompile(`^[\S]+$`)

var envVarNameRegex = regexp.MustCompile(`^[^=]+$`)

// ShellClient is a docker client that uses the shell to communicate with docker
type ShellClient struct {
	logger         logger.Logger
	cmdRunner      cmdrunner.CmdRunner
	redactedValues []string
}

// NewShellClient creates a new docker client
func NewShellClient(ctx context.Context,
	parentLogger logger.Logger,
	runner cmdrunner.CmdRunner) (*ShellClient, error) {
	var err error

	newClient := &ShellClient{
		logger:    parentLogger.GetChild("docker"),
		cmdRunner: runner,
	}

	// set cmd runner
	if newClient.cmdRunner == nil {
		newClient.cmdRunner, err = cmdrunner.NewShellRunner(newClient.logger)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create command runner")
		}
	}

	// verify
	if _, err = newClient.cmdRunner.Run(ctx, nil, "docker version"); err != nil {
		return nil, errors.Wrap(err, "No docker client found")
	}

	return newClient, nil
}

// SetRedactedValues sets values that must never reach the logs (e.g. secret build args)
func (c *ShellClient) SetRedactedValues(redactedValues []string) {
	c.redactedValues = redactedValues
}

// GetVersion returns the docker server version
func (c *ShellClient) GetVersion(ctx context.Context, quiet bool) (string, error) {
	runOptions := &cmdrunner.RunOptions{
		CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
		LogOnlyOnFailure:  quiet,
	}

	runResult, err := c.runCommand(ctx, runOptions, `docker version --format "{{.Server.Version}}"`)
	if err != nil {
		return "", errors.Wrap(err, "Failed to get docker version")
	}

	return strings.TrimSpace(runResult.Output), nil
}

// Build will build a docker image, given build options
func (c *ShellClient) Build(ctx context.Context, buildOptions *BuildOptions) error {
	c.logger.DebugWith("Building image", "image", buildOptions.Image)

	if err := c.validateBuildOptions(buildOptions); err != nil {
		return errors.Wrap(err, "Invalid build options passed")
	}

	// if context dir is not passed, use the dir containing the dockerfile
	if buildOptions.ContextDir == "" && buildOptions.DockerfilePath != "" {
		buildOptions.ContextDir = path.Dir(buildOptions.DockerfilePath)
	}

	// user can only specify context directory
	if buildOptions.DockerfilePath == "" && buildOptions.ContextDir != "" {
		buildOptions.DockerfilePath = path.Join(buildOptions.ContextDir, "Dockerfile")
	}

	buildArgs := ""
	for _, buildArgName := range sortedKeys(buildOptions.BuildArgs) {
		buildArgs += fmt.Sprintf("--build-arg %s ",
			c.quoteArgument(buildArgName+"="+buildOptions.BuildArgs[buildArgName]))
	}

	labels := ""
	for _, labelName := range sortedKeys(buildOptions.Labels) {
		labels += fmt.Sprintf("--label %s ", c.quoteArgument(labelName+"="+buildOptions.Labels[labelName]))
	}

	cacheOption := ""
	if buildOptions.NoCache {
		cacheOption = "--no-cache"
	}

	pullOption := ""
	if buildOptions.Pull {
		pullOption = "--pull"
	}

	runOptions := &cmdrunner.RunOptions{
		CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
		WorkingDir:        &buildOptions.ContextDir,
	}

	_, err := c.runCommand(ctx,
		runOptions,
		"docker build --force-rm -t %s -f %s %s %s %s %s .",
		buildOptions.Image,
		buildOptions.DockerfilePath,
		cacheOption,
		pullOption,
		buildArgs,
		labels)

	return err
}

// ImageExists returns true if the image is present locally
func (c *ShellClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	if _, err := reference.Parse(imageName); err != nil {
		return false, errors.Wrap(err, "Invalid image name to inspect")
	}

	runResult, err := c.runCommand(ctx,
		&cmdrunner.RunOptions{LogOnlyOnFailure: true},
		"docker image inspect --format '{{.Id}}' %s",
		imageName)
	if err != nil {
		if isNoSuchObjectOutput(runResult.Output + runResult.Stderr + err.Error()) {
			return false, nil
		}

		return false, errors.Wrap(err, "Failed to inspect image")
	}

	return true, nil
}

// GetImageLabels returns the labels an image was built with
func (c *ShellClient) GetImageLabels(ctx context.Context, imageName string) (map[string]string, error) {
	if _, err := reference.Parse(imageName); err != nil {
		return nil, errors.Wrap(err, "Invalid image name to inspect")
	}

	runResult, err := c.runCommand(ctx,
		nil,
		"docker image inspect --format '{{json .Config.Labels}}' %s",
		imageName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to inspect image")
	}

	labels := map[string]string{}
	output := c.getLastNonEmptyLine(strings.Split(runResult.Output, "\n"), 0)
	if output == "" || output == "null" {
		return labels, nil
	}

	if err := json.Unmarshal([]byte(output), &labels); err != nil {
		return nil, errors.Wrap(err, "Failed to parse image labels")
	}

	return labels, nil
}

// RemoveImage will remove (delete) a local image
func (c *ShellClient) RemoveImage(ctx context.Context, imageName string) error {
	c.logger.DebugWith("Removing image", "imageName", imageName)

	if _, err := reference.Parse(imageName); err != nil {
		return errors.Wrap(err, "Invalid image name to remove")
	}

	_, err := c.runCommand(ctx, nil, "docker rmi -f %s", imageName)
	return err
}

// RunContainer will run a container based on an image and run options
func (c *ShellClient) RunContainer(ctx context.Context, imageName string, runOptions *RunOptions) (string, error) {
	c.logger.DebugWith("Running container", "imageName", imageName, "runOptions", runOptions)

	// validate the given run options against malicious contents
	if err := c.validateRunOptions(imageName, runOptions); err != nil {
		return "", errors.Wrap(err, "Invalid run options passed")
	}

	portsArgument := ""
	hostPorts := make([]int, 0, len(runOptions.Ports))
	for hostPort := range runOptions.Ports {
		hostPorts = append(hostPorts, hostPort)
	}
	sort.Ints(hostPorts)
	for _, hostPort := range hostPorts {
		portsArgument += fmt.Sprintf("-p %d:%d ", hostPort, runOptions.Ports[hostPort])
	}

	removeContainer := ""
	if runOptions.Remove {
		removeContainer = "--rm"
	}

	nameArgument := ""
	if runOptions.ContainerName != "" {
		nameArgument = fmt.Sprintf("--name %s", runOptions.ContainerName)
	}

	netArgument := ""
	if runOptions.Network != "" {
		netArgument = fmt.Sprintf("--net %s", runOptions.Network)
	}

	labelArgument := ""
	for _, labelName := range sortedKeys(runOptions.Labels) {
		labelArgument += fmt.Sprintf("--label %s ", c.quoteArgument(labelName+"="+runOptions.Labels[labelName]))
	}

	envArgument := ""
	for _, envName := range sortedKeys(runOptions.Env) {
		envArgument += fmt.Sprintf("--env %s ", c.quoteArgument(envName+"="+runOptions.Env[envName]))
	}

	volumeArgument := ""
	for _, volumeHostPath := range sortedKeys(runOptions.Volumes) {
		volumeArgument += fmt.Sprintf("--volume %s ",
			c.quoteArgument(volumeHostPath+":"+runOptions.Volumes[volumeHostPath]))
	}

	runResult, err := c.runCommand(ctx,
		nil,
		"docker run -d %s %s %s %s %s %s %s %s %s",
		removeContainer,
		portsArgument,
		nameArgument,
		netArgument,
		labelArgument,
		envArgument,
		volumeArgument,
		imageName,
		runOptions.Command)

	if err != nil {
		c.logger.WarnWith("Failed to run container",
			"err", err,
			"stdout", runResult.Output,
			"stderr", runResult.Stderr)

		return "", err
	}

	lastStdoutLine := c.getLastNonEmptyLine(strings.Split(runResult.Output, "\n"), 0)

	// make sure there are no spaces in the ID, as normally we expect this command to only produce container ID
	if strings.Contains(lastStdoutLine, " ") {
		return "", fmt.Errorf("Output from docker command includes more than just ID: %s", lastStdoutLine)
	}

	return lastStdoutLine, nil
}

// GetContainer returns the inspected state of a container
func (c *ShellClient) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	if err := c.validateContainerID(containerID); err != nil {
		return nil, err
	}

	runResult, err := c.runCommand(ctx,
		&cmdrunner.RunOptions{LogOnlyOnFailure: true},
		"docker inspect --type container %s",
		containerID)
	if err != nil {
		if isNoSuchObjectOutput(runResult.Output + runResult.Stderr + err.Error()) {
			return nil, &ErrNoSuchContainer{ID: containerID}
		}

		return nil, errors.Wrap(err, "Failed to inspect container")
	}

	var containers []Container
	if err := json.Unmarshal([]byte(runResult.Output), &containers); err != nil {
		return nil, errors.Wrap(err, "Failed to parse container inspection")
	}

	if len(containers) == 0 {
		return nil, &ErrNoSuchContainer{ID: containerID}
	}

	return &containers[0], nil
}

// WaitContainer blocks until the container exits and returns its exit code
func (c *ShellClient) WaitContainer(ctx context.Context, containerID string) (int, error) {
	if err := c.validateContainerID(containerID); err != nil {
		return 0, err
	}

	runResult, err := c.runCommand(ctx, nil, "docker wait %s", containerID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		return 0, errors.Wrap(err, "Failed to wait for container")
	}

	lastStdoutLine := c.getLastNonEmptyLine(strings.Split(runResult.Output, "\n"), 0)
	exitCode, err := strconv.Atoi(strings.TrimSpace(lastStdoutLine))
	if err != nil {
		return 0, errors.Wrapf(err, "Unexpected output from docker wait: %s", lastStdoutLine)
	}

	return exitCode, nil
}

// StopContainer sends SIGTERM to the container, killing it after timeout
func (c *ShellClient) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	c.logger.DebugWith("Stopping container", "containerID", containerID, "timeout", timeout)

	if err := c.validateContainerID(containerID); err != nil {
		return err
	}

	_, err := c.runCommand(ctx, nil, "docker stop --time %d %s", int(timeout.Seconds()), containerID)
	return err
}

// RemoveContainer removes a container given a container ID
func (c *ShellClient) RemoveContainer(ctx context.Context, containerID string) error {
	c.logger.DebugWith("Removing container", "containerID", containerID)

	if err := c.validateContainerID(containerID); err != nil {
		return err
	}

	_, err := c.runCommand(ctx, nil, "docker rm -f %s", containerID)
	return err
}

// GetContainerLogs returns raw logs from a given container ID
func (c *ShellClient) GetContainerLogs(ctx context.Context, containerID string) (string, error) {
	c.logger.DebugWith("Getting container logs", "containerID", containerID)

	if err := c.validateContainerID(containerID); err != nil {
		return "", err
	}

	runOptions := &cmdrunner.RunOptions{
		CaptureOutputMode: cmdrunner.CaptureOutputModeCombined,
	}

	runResult, err := c.runCommand(ctx, runOptions, "docker logs %s", containerID)
	return runResult.Output, err
}

func (c *ShellClient) runCommand(ctx context.Context,
	runOptions *cmdrunner.RunOptions,
	format string,
	vars ...interface{}) (cmdrunner.RunResult, error) {

	// if user didn't pass options, only capture stdout
	if runOptions == nil {
		runOptions = &cmdrunner.RunOptions{
			CaptureOutputMode: cmdrunner.CaptureOutputModeStdout,
		}
	}

	runOptions.LogRedactions = append(runOptions.LogRedactions, c.redactedValues...)

	runResult, err := c.cmdRunner.Run(ctx, runOptions, format, vars...)

	if err == nil &&
		runOptions.CaptureOutputMode == cmdrunner.CaptureOutputModeStdout &&
		runResult.Stderr != "" {
		c.logger.WarnWith("Docker command outputted to stderr - this may result in errors",
			"cmd", cmdrunner.Redact(runOptions.LogRedactions, fmt.Sprintf(format, vars...)),
			"stderr", runResult.Stderr)
	}

	return runResult, err
}

func (c *ShellClient) getLastNonEmptyLine(lines []string, offset int) string {

	numLines := len(lines)

	// protect ourselves from overflows
	if offset >= numLines {
		offset = numLines - 1
	} else if offset < 0 {
		offset = 0
	}

	// iterate backwards over the lines
	for idx := numLines - 1 - offset; idx >= 0; idx-- {
		if strings.TrimSpace(lines[idx]) != "" {
			return strings.TrimSpace(lines[idx])
		}
	}

	return ""
}

// quoteArgument single-quotes input so the shell passes it to docker as one literal word
func (c *ShellClient) quoteArgument(input string) string {
	return "'" + strings.Replace(input, "'", `'"'"'`, -1) + "'"
}

func (c *ShellClient) validateBuildOptions(buildOptions *BuildOptions) error {
	if _, err := reference.Parse(buildOptions.Image); err != nil {
		return errors.Wrap(err, "Invalid image name in build options")
	}

	for buildArgName, buildArgValue := range buildOptions.BuildArgs {
		if !restrictedBuildArgRegex.MatchString(buildArgName) {
			message := "Invalid build arg name supplied"
			c.logger.WarnWith(message, "buildArgName", buildArgName)
			return errors.New(message)
		}
		if !restrictedBuildArgRegex.MatchString(buildArgValue) {
			message := "Invalid build arg value supplied"
			c.logger.WarnWith(message, "buildArgValue", buildArgValue)
			return errors.New(message)
		}
	}

	for labelName := range buildOptions.Labels {
		if !restrictedBuildArgRegex.MatchString(labelName) {
			return errors.Errorf("Invalid label name supplied: %s", labelName)
		}
	}

	return nil
}

func (c *ShellClient) validateRunOptions(imageName string, runOptions *RunOptions) error {
	if _, err := reference.Parse(imageName); err != nil {
		return errors.Wrap(err, "Invalid image name passed to run command")
	}

	// container name can't be empty
	if runOptions.ContainerName != "" && !restrictedNameRegex.MatchString(runOptions.ContainerName) {
		return errors.New("Invalid container name in build options")
	}

	for envVarName := range runOptions.Env {
		if !envVarNameRegex.MatchString(envVarName) {
			return errors.New("Invalid env var name in run options")
		}
	}

	for volumeHostPath, volumeContainerPath := range runOptions.Volumes {
		if !volumeNameRegex.MatchString(volumeHostPath) {
			return errors.New("Invalid volume host path in run options")
		}
		if !volumeNameRegex.MatchString(volumeContainerPath) {
			return errors.New("Invalid volume container path in run options")
		}
	}

	if runOptions.Network != "" && !restrictedNameRegex.MatchString(runOptions.Network) {
		return errors.New("Invalid network name in run options")
	}

	return nil
}

func (c *ShellClient) validateContainerID(containerID string) error {
	if !containerIDRegex.MatchString(containerID) && !restrictedNameRegex.MatchString(containerID) {
		return errors.New("Invalid container ID")
	}

	return nil
}

func isNoSuchObjectOutput(output string) bool {
	return strings.Contains(strings.ToLower(output), "no such")
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys
}
