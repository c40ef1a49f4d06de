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
	"fmt"
	"strings"

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/launcher"
	"github.com/dataflowassess/dfa/pkg/renderer"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

type inspectCommandeer struct {
	cmd            *cobra.Command
	rootCommandeer *RootCommandeer
	overrides      recipeOverrides
	output         string
	showDockerfile bool
}

// recipeSummary is the flattened text view of an effective recipe
type recipeSummary struct {
	Name         string
	Base         string
	Source       string
	Manifest     string
	Image        string
	Labels       string
	Port         int
	Runtime      string
	Command      string
	Requirements int
}

func newInspectCommandeer(rootCommandeer *RootCommandeer) *inspectCommandeer {
	commandeer := &inspectCommandeer{
		rootCommandeer: rootCommandeer,
	}

	cmd := &cobra.Command{
		Use:   "inspect [options]",
		Short: "Show the effective recipe and the declared dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rootCommandeer.initialize(&commandeer.overrides); err != nil {
				return errors.Wrap(err, "Failed to initialize root")
			}

			ctx, cancel := rootCommandeer.signalContext()
			defer cancel()

			// inspecting never talks to docker
			launcherInstance, err := launcher.NewLauncher(rootCommandeer.loggerInstance,
				rootCommandeer.recipe,
				nil,
				nil)
			if err != nil {
				return errors.Wrap(err, "Failed to create launcher")
			}

			inspectResult, err := launcherInstance.Inspect(ctx)
			if err != nil {
				return errors.Wrap(err, "Failed to inspect")
			}

			return commandeer.render(inspectResult)
		},
	}

	addBuildOverrideFlags(cmd, &commandeer.overrides)
	addRunOverrideFlags(cmd, &commandeer.overrides)
	cmd.Flags().StringVarP(&commandeer.output, "output", "o", renderer.OutputFormatText, "Output format - \"text\", \"json\" or \"yaml\"")
	cmd.Flags().BoolVar(&commandeer.showDockerfile, "dockerfile", false, "Also print the generated Dockerfile")

	commandeer.cmd = cmd

	return commandeer
}

func (i *inspectCommandeer) render(inspectResult *launcher.InspectResult) error {
	output := i.rootCommandeer.output
	rendererInstance := renderer.NewRenderer(output)

	if !i.showDockerfile {
		inspectResult.Dockerfile = ""
	}

	return rendererInstance.Render(i.output, inspectResult, func() error {
		effectiveRecipe := inspectResult.Recipe

		image := effectiveRecipe.Build.Image + ":" + effectiveRecipe.Build.Tag
		if effectiveRecipe.Build.Tag == "" {
			image = effectiveRecipe.Build.Image + ":<fingerprint>"
		}

		if err := rendererInstance.RenderFields(&recipeSummary{
			Name:         effectiveRecipe.Name,
			Base:         effectiveRecipe.Base.Reference(),
			Source:       effectiveRecipe.Source.Path,
			Manifest:     fmt.Sprintf("%s (%s)", effectiveRecipe.Source.Manifest, effectiveRecipe.Source.ManifestKind),
			Image:        image,
			Labels:       common.StringMapToString(effectiveRecipe.Build.Labels),
			Port:         effectiveRecipe.Run.Port,
			Runtime:      string(effectiveRecipe.Run.Runtime),
			Command:      strings.Join(effectiveRecipe.Run.Command, " "),
			Requirements: len(inspectResult.Manifest.Requirements),
		}); err != nil {
			return errors.Wrap(err, "Failed to render recipe")
		}

		if !inspectResult.Manifest.Empty() {
			fmt.Fprintln(output) // nolint: errcheck

			var records [][]interface{}
			for _, requirement := range inspectResult.Manifest.Requirements {
				records = append(records, []interface{}{
					requirement.Name,
					requirement.SpecifierString(),
					requirement.Marker,
					requirement.Line,
				})
			}

			rendererInstance.RenderTable([]interface{}{"Package", "Version", "Marker", "Line"}, records)
		}

		if inspectResult.Dockerfile != "" {
			fmt.Fprintf(output, "\n%s", inspectResult.Dockerfile) // nolint: errcheck
		}

		return nil
	})
}
