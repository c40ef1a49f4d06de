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
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/fatih/color"
	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type runCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	overrides      recipeOverrides
	image          string
}

func newRunCommandeer(rootCommandeer *RootCommandeer) *runCommandeer {
	commandeer := &runCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "run [options]",
		Short: "Run a built image and serve until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCommandeer.initialize(&commandeer.overrides); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			if commandeer.image == "" && rootCommandeer.recipe.Run.Runtime == recipe.RuntimeKindDocker {
				return errors.New("Run requires --image, or use \"up\" to build first")
			}

			ctx, cancel := rootCommandeer.signalContext()
			defer cancel()

			launcherInstance, err := rootCommandeer.createLauncher(ctx)
			if err != nil {
				return errors.Wrap(err, "Failed to create launcher")
			}

			return rootCommandeer.run(func() error {
				return launcherInstance.Run(ctx, commandeer.image)
			})
		},
	}

	addRunOverrideFlags(cmd, &commandeer.overrides)
	cmd.Flags().StringVar(&commandeer.image, "image", "", "Image to run (name:tag)")

	commandeer.cmd = cmd

	return commandeer
}

// run blocks on the service and reports how it ended. errors pass through unwrapped so the
// service exit code reaches main
func (rc *RootCommandeer) run(runner func() error) error {
	rc.printStatus(color.FgCyan, "Serving on port %d, press Ctrl+C to stop", rc.recipe.Run.Port)

	if err := runner(); err != nil {
		return err
	}

	rc.printStatus(color.FgGreen, "Stopped")

	return nil
}
