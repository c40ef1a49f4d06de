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
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/dockerclient"
	"github.com/dataflowassess/dfa/pkg/launcher"
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/fatih/color"
	"github.com/nuclio/errors"
	"github.com/nuclio/zap"
	"github.com/spf13/cobra"
)

type RootCommandeer struct {
	loggerInstance *nucliozap.NuclioZap
	cmd            *cobra.Command
	verbose        bool
	noColor        bool
	recipePath     string
	output         io.Writer
	recipe         *recipe.Recipe
}

func NewRootCommandeer() *RootCommandeer {
	commandeer := &RootCommandeer{
		output: os.Stdout,
	}

	cmd := &cobra.Command{
		Use:           "dfalaunch [command]",
		Short:         "Build and launch the data flow assessment dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultRecipePath := common.GetEnvOrDefaultString("DFA_RECIPE", "launcher.yaml")

	cmd.PersistentFlags().BoolVarP(&commandeer.verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVar(&commandeer.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVarP(&commandeer.recipePath,
		"recipe",
		"r",
		defaultRecipePath,
		"Path to the launcher recipe, defaults apply when absent (env: DFA_RECIPE)")

	// add children
	cmd.AddCommand(
		newBuildCommandeer(commandeer).cmd,
		newRunCommandeer(commandeer).cmd,
		newUpCommandeer(commandeer).cmd,
		newInspectCommandeer(commandeer).cmd,
		newVersionCommandeer(commandeer).cmd,
	)

	commandeer.cmd = cmd

	return commandeer
}

// Execute uses os.Args to execute the command
func (rc *RootCommandeer) Execute() error {
	return rc.cmd.Execute()
}

// GetCmd returns the underlying cobra command
func (rc *RootCommandeer) GetCmd() *cobra.Command {
	return rc.cmd
}

// SetOutput redirects rendered output (not logs)
func (rc *RootCommandeer) SetOutput(output io.Writer) {
	rc.output = output
	rc.cmd.SetOut(output)
}

func (rc *RootCommandeer) initialize(overrides *recipeOverrides) error {
	var err error

	if rc.noColor {
		color.NoColor = true
	}

	rc.loggerInstance, err = rc.createLogger()
	if err != nil {
		return errors.Wrap(err, "Failed to create logger")
	}

	recipeReader, err := recipe.NewReader(rc.loggerInstance)
	if err != nil {
		return errors.Wrap(err, "Failed to create recipe reader")
	}

	rc.recipe, err = recipeReader.ReadFileOrDefault(rc.recipePath)
	if err != nil {
		return errors.Wrap(err, "Failed to read recipe")
	}

	if overrides != nil {
		if err := overrides.apply(rc.recipe); err != nil {
			return errors.Wrap(err, "Failed to apply flags to recipe")
		}
	}

	// secrets passed as build args or env never reach the logs
	rc.loggerInstance.GetRedactor().AddRedactions(common.GetSensitiveValues(rc.recipe.Build.BuildArgs,
		rc.recipe.Run.Env))

	rc.loggerInstance.DebugWith("Read recipe",
		"path", rc.recipePath,
		"name", rc.recipe.Name,
		"runtime", rc.recipe.Run.Runtime)

	return nil
}

func (rc *RootCommandeer) createLogger() (*nucliozap.NuclioZap, error) {
	var loggerLevel nucliozap.Level

	if rc.verbose {
		loggerLevel = nucliozap.DebugLevel
	} else {
		loggerLevel = nucliozap.InfoLevel
	}

	loggerInstance, err := nucliozap.NewNuclioZapCmd("dfalaunch",
		loggerLevel,
		common.GetRedactorInstance(os.Stdout))
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create logger")
	}

	return loggerInstance, nil
}

func (rc *RootCommandeer) createLauncher(ctx context.Context) (*launcher.Launcher, error) {
	var dockerClient dockerclient.Client

	if rc.recipe.Run.Runtime == recipe.RuntimeKindDocker {
		var err error

		dockerClient, err = rc.createDockerClient(ctx)
		if err != nil {
			return nil, err
		}
	}

	return launcher.NewLauncher(rc.loggerInstance, rc.recipe, dockerClient, nil)
}

func (rc *RootCommandeer) createDockerClient(ctx context.Context) (dockerclient.Client, error) {
	dockerClient, err := launcher.NewDockerClient(ctx, rc.loggerInstance, rc.recipe.Build.Client, rc.output)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create docker client")
	}

	if shellClient, isShellClient := dockerClient.(*dockerclient.ShellClient); isShellClient {
		shellClient.SetRedactedValues(common.GetSensitiveValues(rc.recipe.Build.BuildArgs, rc.recipe.Run.Env))
	}

	return dockerClient, nil
}

// signalContext is cancelled on SIGINT / SIGTERM
func (rc *RootCommandeer) signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (rc *RootCommandeer) printStatus(attribute color.Attribute, format string, args ...interface{}) {
	color.New(attribute, color.Bold).Fprintf(rc.output, format+"\n", args...) // nolint: errcheck
}
