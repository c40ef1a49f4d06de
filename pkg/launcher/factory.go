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

package launcher

import (
	"context"
	"io"

	"github.com/dataflowassess/dfa/pkg/cmdrunner"
	"github.com/dataflowassess/dfa/pkg/dockerclient"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

// NewDockerClient creates the docker client of the given kind
func NewDockerClient(ctx context.Context,
	parentLogger logger.Logger,
	kind dockerclient.ClientKind,
	buildOutput io.Writer) (dockerclient.Client, error) {

	switch kind {
	case dockerclient.ClientKindAPI:
		return dockerclient.NewAPIClient(ctx, parentLogger, buildOutput)

	case dockerclient.ClientKindShell, "":
		runner, err := cmdrunner.NewShellRunner(parentLogger)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create command runner")
		}

		return dockerclient.NewShellClient(ctx, parentLogger, runner)

	default:
		return nil, errors.Errorf("Unknown docker client kind: %s", kind)
	}
}
