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
	"fmt"
)

type ClientKind string

const (
	ClientKindShell ClientKind = "shell"
	ClientKindAPI   ClientKind = "api"
)

// BuildOptions are options for building a docker image
type BuildOptions struct {
	Image          string
	ContextDir     string
	DockerfilePath string
	NoCache        bool
	Pull           bool
	BuildArgs      map[string]string
	Labels         map[string]string
}

// RunOptions are options for running a docker image
type RunOptions struct {

	// host port -> container port
	Ports         map[int]int
	ContainerName string
	Network       string
	Env           map[string]string
	Labels        map[string]string
	Volumes       map[string]string
	Remove        bool
	Command       string
}

// Container holds the parts of "docker inspect" this project reads
type Container struct {
	ID     string `json:"Id"`
	Name   string
	Image  string
	State  *ContainerState
	Config *ContainerConfig
}

// ContainerState stores container's running state
type ContainerState struct {

	// one of "created", "running", "paused", "restarting", "removing", "exited", or "dead"
	Status     string
	Running    bool
	OOMKilled  bool
	Dead       bool
	Pid        int
	ExitCode   int
	Error      string
	StartedAt  string
	FinishedAt string
}

// ContainerConfig is the portable configuration of a container
type ContainerConfig struct {
	Image  string
	Cmd    []string
	Env    []string
	Labels map[string]string
}

// ErrNoSuchContainer is returned when a container can't be found
type ErrNoSuchContainer struct {
	ID string
}

func (e *ErrNoSuchContainer) Error() string {
	return fmt.Sprintf("No such container: %s", e.ID)
}
