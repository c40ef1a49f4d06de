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

	"github.com/stretchr/testify/mock"
)

//
// Docker client mock
//

type MockDockerClient struct {
	mock.Mock
}

func NewMockDockerClient() *MockDockerClient {
	return &MockDockerClient{}
}

// GetVersion returns the docker server version
func (mdc *MockDockerClient) GetVersion(ctx context.Context, quiet bool) (string, error) {
	args := mdc.Called(ctx, quiet)
	return args.String(0), args.Error(1)
}

// Build will build a docker image, given build options
func (mdc *MockDockerClient) Build(ctx context.Context, buildOptions *BuildOptions) error {
	args := mdc.Called(ctx, buildOptions)
	return args.Error(0)
}

// ImageExists returns true if the image is present locally
func (mdc *MockDockerClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	args := mdc.Called(ctx, imageName)
	return args.Bool(0), args.Error(1)
}

// GetImageLabels returns the labels an image was built with
func (mdc *MockDockerClient) GetImageLabels(ctx context.Context, imageName string) (map[string]string, error) {
	args := mdc.Called(ctx, imageName)
	labels, _ := args.Get(0).(map[string]string)
	return labels, args.Error(1)
}

// RemoveImage will remove (delete) a local image
func (mdc *MockDockerClient) RemoveImage(ctx context.Context, imageName string) error {
	args := mdc.Called(ctx, imageName)
	return args.Error(0)
}

// RunContainer will run a container based on an image and run options
func (mdc *MockDockerClient) RunContainer(ctx context.Context,
	imageName string,
	runOptions *RunOptions) (string, error) {
	args := mdc.Called(ctx, imageName, runOptions)
	return args.String(0), args.Error(1)
}

// GetContainer returns the inspected state of a container
func (mdc *MockDockerClient) GetContainer(ctx context.Context, containerID string) (*Container, error) {
	args := mdc.Called(ctx, containerID)
	container, _ := args.Get(0).(*Container)
	return container, args.Error(1)
}

// WaitContainer blocks until the container exits and returns its exit code
func (mdc *MockDockerClient) WaitContainer(ctx context.Context, containerID string) (int, error) {
	args := mdc.Called(ctx, containerID)
	return args.Int(0), args.Error(1)
}

// StopContainer sends SIGTERM to the container, killing it after timeout
func (mdc *MockDockerClient) StopContainer(ctx context.Context, containerID string, timeout time.Duration) error {
	args := mdc.Called(ctx, containerID, timeout)
	return args.Error(0)
}

// RemoveContainer removes a container given a container ID
func (mdc *MockDockerClient) RemoveContainer(ctx context.Context, containerID string) error {
	args := mdc.Called(ctx, containerID)
	return args.Error(0)
}

// GetContainerLogs returns raw logs from a given container ID
func (mdc *MockDockerClient) GetContainerLogs(ctx context.Context, containerID string) (string, error) {
	args := mdc.Called(ctx, containerID)
	return args.String(0), args.Error(1)
}
