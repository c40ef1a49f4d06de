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
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/distribution/reference"
	docker "github.com/fsouza/go-dockerclient"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// APIClient talks to the docker daemon over its API (DOCKER_HOST or the default socket)
type APIClient struct {
	logger      logger.Logger
	client      *docker.Client
	buildOutput io.Writer
}

// NewAPIClient creates a docker client from the environment and pings the daemon
func NewAPIClient(ctx context.Context, parentLogger logger.Logger, buildOutput io.Writer) (*APIClient, error) {
	client, err := docker.NewClientFromEnv()
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create docker API client")
	}

	if err := client.PingWithContext(ctx); err != nil {
		return nil, errors.Wrap(err, "Docker daemon is not reachable")
	}

	if buildOutput == nil {
		buildOutput = io.Discard
	}

	return &APIClient{
		logger:      parentLogger.GetChild("docker"),
		client:      client,
		buildOutput: buildOutput,
	}, nil
}

// GetVersion returns the docker server version
func (c *APIClient) GetVersion(ctx context.Context, quiet bool) (string, error) {
	env, err := c.client.VersionWithContext(ctx)
	if err != nil {
		return "", errors.Wrap(err, "Failed to get docker version")
	}

	if !quiet {
		c.logger.DebugWith("Got docker version", "version", env.Get("Version"))
	}

	return env.Get("Version"), nil
}

// Build will build a docker image, given build options
func (c *APIClient) Build(ctx context.Context, buildOptions *BuildOptions) error {
	c.logger.DebugWith("Building image", "image", buildOptions.Image)

	if _, err := reference.Parse(buildOptions.Image); err != nil {
		return errors.Wrap(err, "Invalid image name in build options")
	}

	contextDir := buildOptions.ContextDir
	if contextDir == "" {
		contextDir = filepath.Dir(buildOptions.DockerfilePath)
	}

	// dockerfile is relative to the context for the API
	dockerfile := "Dockerfile"
	if buildOptions.DockerfilePath != "" {
		relativePath, err := filepath.Rel(contextDir, buildOptions.DockerfilePath)
		if err != nil {
			return errors.Wrap(err, "Dockerfile must reside in the build context")
		}
		dockerfile = relativePath
	}

	var buildArgs []docker.BuildArg
	for _, buildArgName := range sortedKeys(buildOptions.BuildArgs) {
		buildArgs = append(buildArgs, docker.BuildArg{
			Name:  buildArgName,
			Value: buildOptions.BuildArgs[buildArgName],
		})
	}

	if err := c.client.BuildImage(docker.BuildImageOptions{
		Context:             ctx,
		Name:                buildOptions.Image,
		Dockerfile:          dockerfile,
		ContextDir:          contextDir,
		NoCache:             buildOptions.NoCache,
		Pull:                buildOptions.Pull,
		RmTmpContainer:      true,
		ForceRmTmpContainer: true,
		BuildArgs:           buildArgs,
		Labels:              buildOptions.Labels,
		OutputStream:        c.buildOutput,
	}); err != nil {
		return errors.Wrap(err, "Failed to build image")
	}

	return nil
}

// ImageExists returns true if the image is present locally
func (c *APIClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	if _, err := c.client.InspectImage(imageName); err != nil {
		if err == docker.ErrNoSuchImage {
			return false, nil
		}

		return false, errors.Wrap(err, "Failed to inspect image")
	}

	return true, nil
}

// GetImageLabels returns the labels an image was built with
func (c *APIClient) GetImageLabels(ctx context.Context, imageName string) (map[string]string, error) {
	image, err := c.client.InspectImage(imageName)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to inspect image")
	}

	labels := map[string]string{}
	if image.Config != nil {
		for labelName, labelValue := range image.Config.Labels {
			labels[labelName] = labelValue
		}
	}

	return labels, nil
}

// RemoveImage will remove (delete) a local image
func (c *APIClient) RemoveImage(ctx context.Context, imageName string) error {
	c.logger.DebugWith("Removing image", "imageName", imageName)

	if err := c.client.RemoveImageExtended(imageName, docker.RemoveImageOptions{
		Force:   true,
		Context: ctx,
	}); err != nil && err != docker.ErrNoSuchImage {
		return errors.Wrap(err, "Failed to remove image")
	}

	return nil
}

// RunContainer will run a container based on an image and run options
func (c *APIClient) RunContainer(ctx context.Context, imageName string, runOptions *RunOptions) (string, error) {
	c.logger.DebugWith("Running container", "imageName", imageName, "runOptions", runOptions)

	exposedPorts := map[docker.Port]struct{}{}
	portBindings := map[docker.Port][]docker.PortBinding{}
	for hostPort, containerPort := range runOptions.Ports {
		port := docker.Port(fmt.Sprintf("%d/tcp", containerPort))
		exposedPorts[port] = struct{}{}
		portBindings[port] = append(portBindings[port], docker.PortBinding{
			HostPort: strconv.Itoa(hostPort),
		})
	}

	var env []string
	for _, envName := range sortedKeys(runOptions.Env) {
		env = append(env, fmt.Sprintf("%s=%s", envName, runOptions.Env[envName]))
	}

	var binds []string
	for _, volumeHostPath := range sortedKeys(runOptions.Volumes) {
		binds = append(binds, fmt.Sprintf("%s:%s", volumeHostPath, runOptions.Volumes[volumeHostPath]))
	}

	config := &docker.Config{
		Image:        imageName,
		Env:          env,
		Labels:       runOptions.Labels,
		ExposedPorts: exposedPorts,
	}

	if runOptions.Command != "" {
		config.Cmd = []string{"/bin/sh", "-c", runOptions.Command}
	}

	container, err := c.client.CreateContainer(docker.CreateContainerOptions{
		Name:   runOptions.ContainerName,
		Config: config,
		HostConfig: &docker.HostConfig{
			PortBindings: portBindings,
			Binds:        binds,
			AutoRemove:   runOptions.Remove,
			NetworkMode:  runOptions.Network,
		},
		Context: ctx,
	})
	if err != nil {
		return "", errors.Wrap(err, "Failed to create container")
	}

	if err := c.client.StartContainerWithContext(container.ID, nil, ctx); err != nil {

		// best effort, the container never started
		c.client.RemoveContainer(docker.RemoveContainerOptions{ID: container.ID, Force: true}) // nolint: errcheck
		return "", errors.Wrap(err, "Failed to start container")
	}

	return container.ID, nil
}

// GetContainer returns the inspected state of a container
func (c *APIClient) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	inspected, err := c.client.InspectContainerWithOptions(docker.InspectContainerOptions{
		ID:      containerID,
		Context: ctx,
	})
	if err != nil {
		if _, ok := err.(*docker.NoSuchContainer); ok {
			return nil, &ErrNoSuchContainer{ID: containerID}
		}

		return nil, errors.Wrap(err, "Failed to inspect container")
	}

	container := &Container{
		ID:    inspected.ID,
		Name:  strings.TrimPrefix(inspected.Name, "/"),
		Image: inspected.Image,
		State: &ContainerState{
			Status:     inspected.State.Status,
			Running:    inspected.State.Running,
			OOMKilled:  inspected.State.OOMKilled,
			Dead:       inspected.State.Dead,
			Pid:        inspected.State.Pid,
			ExitCode:   inspected.State.ExitCode,
			Error:      inspected.State.Error,
			StartedAt:  inspected.State.StartedAt.Format(time.RFC3339Nano),
			FinishedAt: inspected.State.FinishedAt.Format(time.RFC3339Nano),
		},
	}

	if inspected.Config != nil {
		container.Config = &ContainerConfig{
			Image:  inspected.Config.Image,
			Cmd:    inspected.Config.Cmd,
			Env:    inspected.Config.Env,
			Labels: inspected.Config.Labels,
		}
	}

	return container, nil
}

// WaitContainer blocks until the container exits and returns its exit code
func (c *APIClient) WaitContainer(ctx context.Context, containerID string) (int, error) {
	exitCode, err := c.client.WaitContainerWithContext(containerID, ctx)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		return 0, errors.Wrap(err, "Failed to wait for container")
	}

	return exitCode, nil
}

// StopContainer sends SIGTERM to the container, killing it after timeout
func (c *APIClient) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	c.logger.DebugWith("Stopping container", "containerID", containerID, "timeout", timeout)

	err := c.client.StopContainerWithContext(containerID, uint(timeout.Seconds()), ctx)
	if err != nil {

		// already stopped is fine
		if _, ok := err.(*docker.ContainerNotRunning); ok {
			return nil
		}

		return errors.Wrap(err, "Failed to stop container")
	}

	return nil
}

// RemoveContainer removes a container given a container ID
func (c *APIClient) RemoveContainer(ctx context.Context, containerID string) error {
	c.logger.DebugWith("Removing container", "containerID", containerID)

	if err := c.client.RemoveContainer(docker.RemoveContainerOptions{
		ID:      containerID,
		Force:   true,
		Context: ctx,
	}); err != nil {
		if _, ok := err.(*docker.NoSuchContainer); ok {
			return nil
		}

		return errors.Wrap(err, "Failed to remove container")
	}

	return nil
}

// GetContainerLogs returns raw logs from a given container ID
func (c *APIClient) GetContainerLogs(ctx context.Context, containerID string) (string, error) {
	var logs strings.Builder

	if err := c.client.Logs(docker.LogsOptions{
		Context:      ctx,
		Container:    containerID,
		OutputStream: &logs,
		ErrorStream:  &logs,
		Stdout:       true,
		Stderr:       true,
	}); err != nil {
		return "", errors.Wrap(err, "Failed to get container logs")
	}

	return logs.String(), nil
}
