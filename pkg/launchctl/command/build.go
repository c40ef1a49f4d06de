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
	"github.com/dataflowassess/dfa/pkg/launcher"
	"github.com/dataflowassess/dfa/pkg/renderer"

	"github.com/fatih/color"
	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type buildCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	overrides      recipeOverrides
	output         string
}

func newBuildCommandeer(rootCommandeer *RootCommandeer) *buildCommandeer {
	commandeer := &buildCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:     "build [options]",
		Aliases: []string{"bu"},
		Short:   "Build the dashboard image from the source tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCommandeer.initialize(&commandeer.overrides); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			ctx, cancel := rootCommandeer.signalContext()
			defer cancel()

			launcherInstance, err := rootCommandeer.createLauncher(ctx)
			if err != nil {
				return errors.Wrap(err, "Failed to create launcher")
			}

			buildResult, err := launcherInstance.Build(ctx)
			if err != nil {
				return errors.Wrap(err, "Failed to build")
			}

			return rootCommandeer.renderBuildResult(commandeer.output, buildResult)
		},
	}

	addBuildOverrideFlags(cmd, &commandeer.overrides)
	cmd.Flags().StringVarP(&commandeer.output, "output", "o", renderer.OutputFormatText, "Output format - \"text\", \"json\" or \"yaml\"")

	commandeer.cmd = cmd

	return commandeer
}

func (rc *RootCommandeer) renderBuildResult(format string, buildResult *launcher.BuildResult) error {
	rendererInstance := renderer.NewRenderer(rc.output)

	return rendererInstance.Render(format, buildResult, func() error {
		if buildResult.Skipped {
			rc.printStatus(color.FgYellow, "Skipped, %s is up to date", describeImage(buildResult))
		} else {
			rc.printStatus(color.FgGreen, "Built %s", describeImage(buildResult))
		}

		return rendererInstance.RenderFields(buildResult)
	})
}

func describeImage(buildResult *launcher.BuildResult) string {
	if buildResult.Image == "" {
		return "source tree"
	}

	return buildResult.Image
}
