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

package command

import (
	"github.com/dataflowassess/dfa/pkg/renderer"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
	"github.com/v3io/version-go"
)

type versionCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	output         string
	docker         bool
}

type versionInfo struct {
	Label         string `json:"label"`
	GitCommit     string `json:"gitCommit"`
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	GoVersion     string `json:"goVersion"`
	DockerVersion string `json:"dockerVersion,omitempty"`
}

func newVersionCommandeer(rootCommandeer *RootCommandeer) *versionCommandeer {
	commandeer := &versionCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Display the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			buildInfo := version.Get()

			info := &versionInfo{
				Label:     buildInfo.Label,
				GitCommit: buildInfo.GitCommit,
				OS:        buildInfo.OS,
				Arch:      buildInfo.Arch,
				GoVersion: buildInfo.GoVersion,
			}

			if commandeer.docker {
				if err := rootCommandeer.initialize(nil); err != nil {
					return errors.Wrap(err, "Failed to initialize root")
				}

				ctx, cancel := rootCommandeer.signalContext()
				defer cancel()

				dockerClient, err := rootCommandeer.createDockerClient(ctx)
				if err != nil {
					return errors.Wrap(err, "Failed to create docker client")
				}

				info.DockerVersion, err = dockerClient.GetVersion(ctx, true)
				if err != nil {
					return errors.Wrap(err, "Failed to get docker version")
				}
			}

			rendererInstance := renderer.NewRenderer(rootCommandeer.output)

			return rendererInstance.Render(commandeer.output, info, func() error {
				return rendererInstance.RenderFields(info)
			})
		},
	}

	cmd.Flags().StringVarP(&commandeer.output, "output", "o", renderer.OutputFormatText, "Output format - \"text\", \"json\" or \"yaml\"")
	cmd.Flags().BoolVar(&commandeer.docker, "docker", false, "Also show the docker server version")

	commandeer.cmd = cmd

	return commandeer
}
