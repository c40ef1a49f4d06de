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
	"time"
)

// Client is a docker client
type Client interface {

	// GetVersion returns the docker server version
	GetVersion(ctx context.Context, quiet bool) (string, error)

	// Build will build a docker image, given build options
	Build(ctx context.Context, buildOptions *BuildOptions) error

	// ImageExists returns true if the image is present locally
	ImageExists(ctx context.Context, imageName string) (bool, error)

	// GetImageLabels returns the labels an image was built with
	GetImageLabels(ctx context.Context, imageName string) (map[string]string, error)

	// RemoveImage will remove (delete) a local image
	RemoveImage(ctx context.Context, imageName string) error

	// RunContainer will run a container based on an image and run options, returning its ID
	RunContainer(ctx context.Context, imageName string, runOptions *RunOptions) (string, error)

	// GetContainer returns the inspected state of a container
	GetContainer(ctx context.Context, containerID string) (*Container, error)

	// WaitContainer blocks until the container exits and returns its exit code
	WaitContainer(ctx context.Context, containerID string) (int, error)

	// StopContainer sends SIGTERM to the container, killing it after timeout
	StopContainer(ctx context.Context, containerID string, timeout time.Duration) error

	// RemoveContainer removes a container given a container ID
	RemoveContainer(ctx context.Context, containerID string) error

	// GetContainerLogs returns raw logs from a given container ID
	GetContainerLogs(ctx context.Context, containerID string) (string, error)
}
