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
	"time"

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/dockerclient"
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/nuclio/errors"
	"github.com/spf13/cobra"
)

// recipeOverrides are flags which take precedence over the recipe file. zero values leave the
// recipe untouched
type recipeOverrides struct {
	sourcePath     string
	baseImage      string
	baseTag        string
	image          string
	tag            string
	port           int
	runtime        string
	client         string
	noCache        bool
	pull           bool
	noCleanup      bool
	startupTimeout time.Duration
	encodedLabels  string
	encodedEnv     string
}

func addBuildOverrideFlags(cmd *cobra.Command, overrides *recipeOverrides) {
	cmd.Flags().StringVarP(&overrides.sourcePath, "source", "s", "", "Source tree directory or archive")
	cmd.Flags().StringVar(&overrides.baseImage, "base-image", "", "Base runtime image name")
	cmd.Flags().StringVar(&overrides.baseTag, "base-tag", "", "Base runtime image tag")
	cmd.Flags().StringVarP(&overrides.image, "image-name", "i", "", "Name of the built image (without tag)")
	cmd.Flags().StringVarP(&overrides.tag, "tag", "t", "", "Tag of the built image, the fingerprint when empty")
	cmd.Flags().StringVar(&overrides.client, "docker-client", "", "Docker client - \"shell\" or \"api\"")
	cmd.Flags().BoolVar(&overrides.noCache, "no-cache", false, "Always build, without layer cache")
	cmd.Flags().BoolVar(&overrides.pull, "pull", false, "Always pull the base image")
	cmd.Flags().BoolVar(&overrides.noCleanup, "no-cleanup", false, "Keep the staging directory")
	cmd.Flags().StringVarP(&overrides.encodedLabels, "labels", "l", "", "Additional image labels (lbl1=val1[,lbl2=val2,...])")
}

func addRunOverrideFlags(cmd *cobra.Command, overrides *recipeOverrides) {
	cmd.Flags().IntVarP(&overrides.port, "port", "p", 0, "Port the service listens on")
	cmd.Flags().StringVar(&overrides.runtime, "runtime", "", "Runtime - \"docker\" or \"process\"")
	cmd.Flags().DurationVar(&overrides.startupTimeout, "startup-timeout", 0, "Time allowed for the service to become ready")
	cmd.Flags().StringVarP(&overrides.encodedEnv, "env", "e", "", "Environment variables (env1=val1[,env2=val2,...])")
}

func (ro *recipeOverrides) apply(target *recipe.Recipe) error {
	if ro.sourcePath != "" {
		target.Source.Path = ro.sourcePath
	}

	// a new base image doesn't inherit the tag of the one it replaces
	if ro.baseImage != "" {
		target.Base = recipe.Base{Image: ro.baseImage}
	}

	if ro.baseTag != "" {
		target.Base.Tag = ro.baseTag
	}

	if ro.image != "" {
		target.Build.Image = ro.image
	}

	if ro.tag != "" {
		target.Build.Tag = ro.tag
	}

	if ro.port != 0 {
		target.Run.Port = ro.port
	}

	if ro.runtime != "" {
		target.Run.Runtime = recipe.RuntimeKind(ro.runtime)
	}

	if ro.client != "" {
		target.Build.Client = dockerclient.ClientKind(ro.client)
	}

	if ro.startupTimeout != 0 {
		target.Run.StartupTimeout = ro.startupTimeout
	}

	for labelName, labelValue := range common.StringToStringMap(ro.encodedLabels, "=") {
		if target.Build.Labels == nil {
			target.Build.Labels = map[string]string{}
		}

		target.Build.Labels[labelName] = labelValue
	}

	for envName, envValue := range common.StringToStringMap(ro.encodedEnv, "=") {
		if target.Run.Env == nil {
			target.Run.Env = map[string]string{}
		}

		target.Run.Env[envName] = envValue
	}

	target.Build.NoCache = target.Build.NoCache || ro.noCache
	target.Build.Pull = target.Build.Pull || ro.pull
	target.Build.NoCleanup = target.Build.NoCleanup || ro.noCleanup

	if err := target.Validate(); err != nil {
		return errors.Wrap(err, "Invalid recipe")
	}

	return nil
}
