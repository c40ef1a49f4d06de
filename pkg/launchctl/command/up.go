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
)

type upCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	overrides      recipeOverrides
}

func newUpCommandeer(rootCommandeer *RootCommandeer) *upCommandeer {
	commandeer := &upCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "up [options]",
		Short: "Build the image, then run it",
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

			if err := rootCommandeer.renderBuildResult(renderer.OutputFormatText, buildResult); err != nil {
				return errors.Wrap(err, "Failed to render build result")
			}

			return rootCommandeer.run(func() error {
				return launcherInstance.Run(ctx, buildResult.Image)
			})
		},
	}

	addBuildOverrideFlags(cmd, &commandeer.overrides)
	addRunOverrideFlags(cmd, &commandeer.overrides)

	commandeer.cmd = cmd

	return commandeer
}
