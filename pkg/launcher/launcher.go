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
	"path/filepath"
	"time"

	"github.com/dataflowassess/dfa/pkg/dockerclient"
	"github.com/dataflowassess/dfa/pkg/launcher/dockerfile"
	"github.com/dataflowassess/dfa/pkg/launcher/manifest"
	"github.com/dataflowassess/dfa/pkg/launcher/probe"
	"github.com/dataflowassess/dfa/pkg/launcher/process"
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"
	"github.com/dataflowassess/dfa/pkg/launcher/staging"
	"github.com/dataflowassess/dfa/pkg/launcher/status"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

var errDockerClientRequired = errors.New("A docker client is required for the docker runtime")

// time allowed for docker housekeeping after the run context is cancelled
const cleanupGracePeriod = 30 * time.Second

// Launcher builds an image from a recipe and runs exactly one service process from it
type Launcher struct {
	logger        logger.Logger
	recipe        *recipe.Recipe
	dockerClient  dockerclient.Client
	stager        *staging.Stager
	prober        *probe.Prober
	processRunner *process.Runner
}

// NewLauncher creates a launcher. dockerClient may be nil when nothing is built or run in docker
func NewLauncher(parentLogger logger.Logger,
	launcherRecipe *recipe.Recipe,
	dockerClient dockerclient.Client,
	prober *probe.Prober) (*Launcher, error) {
	var err error

	if err = launcherRecipe.Validate(); err != nil {
		return nil, errors.Wrap(err, "Invalid recipe")
	}

	newLauncher := &Launcher{
		logger:       parentLogger.GetChild("launcher"),
		recipe:       launcherRecipe,
		dockerClient: dockerClient,
	}

	if prober == nil {
		prober, err = probe.NewProber(newLauncher.logger, nil)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create prober")
		}
	}

	newLauncher.prober = prober

	newLauncher.stager, err = staging.NewStager(newLauncher.logger, launcherRecipe.Build.TempDir)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create stager")
	}

	newLauncher.processRunner, err = process.NewRunner(newLauncher.logger, prober)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create process runner")
	}

	return newLauncher, nil
}

// Build materializes the image. a malformed or missing manifest fails before any docker call, and a
// failed docker build leaves no image behind
func (l *Launcher) Build(ctx context.Context) (*BuildResult, error) {
	startTime := time.Now()

	area, err := l.stager.Stage(ctx, l.recipe.Source.Path)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to stage source tree")
	}

	defer l.cleanupArea(ctx, area)

	parsedManifest, err := l.readManifest(area.Dir)
	if err != nil {
		return nil, err
	}

	if l.recipe.Run.Runtime == recipe.RuntimeKindProcess {
		l.logger.InfoWithCtx(ctx, "Process runtime has no image to build, manifest verified",
			"manifest", parsedManifest.Path,
			"requirements", len(parsedManifest.Requirements))

		return &BuildResult{
			Skipped:      true,
			Duration:     time.Since(startTime),
			Requirements: len(parsedManifest.Requirements),
		}, nil
	}

	if l.dockerClient == nil {
		return nil, errDockerClientRequired
	}

	dockerfileContents, err := l.renderDockerfile(parsedManifest)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to render Dockerfile")
	}

	fingerprint, err := staging.Fingerprint(&staging.FingerprintInputs{
		BaseImage:          l.recipe.Base.Reference(),
		ManifestKind:       string(l.recipe.Source.ManifestKind),
		Dir:                area.Dir,
		DockerfileContents: dockerfileContents,
		BuildArgs:          l.recipe.Build.BuildArgs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to compute fingerprint")
	}

	result := &BuildResult{
		Image:        l.recipe.ImageName(fingerprint),
		Fingerprint:  fingerprint,
		Requirements: len(parsedManifest.Requirements),
	}

	if !l.recipe.Build.NoCache {
		upToDate, err := l.imageUpToDate(ctx, result.Image, fingerprint)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to inspect existing image")
		}

		if upToDate {
			l.logger.InfoWithCtx(ctx, "Image is up to date, skipping build",
				"image", result.Image,
				"fingerprint", fingerprint)

			result.Skipped = true
			result.Duration = time.Since(startTime)
			return result, nil
		}
	}

	if err := area.WriteFile(dockerfile.FileName, []byte(dockerfileContents)); err != nil {
		return nil, errors.Wrap(err, "Failed to write Dockerfile")
	}

	l.logger.InfoWithCtx(ctx, "Building image",
		"image", result.Image,
		"base", l.recipe.Base.Reference(),
		"fingerprint", fingerprint)

	if err := l.dockerClient.Build(ctx, &dockerclient.BuildOptions{
		Image:          result.Image,
		ContextDir:     area.Dir,
		DockerfilePath: filepath.Join(area.Dir, dockerfile.FileName),
		NoCache:        l.recipe.Build.NoCache,
		Pull:           l.recipe.Build.Pull,
		BuildArgs:      l.recipe.Build.BuildArgs,
		Labels:         map[string]string{FingerprintLabel: fingerprint},
	}); err != nil {
		l.removeFailedImage(result.Image)

		return nil, errors.Wrapf(status.ErrBuildFailed, "Failed to build image %s: %s", result.Image, err.Error())
	}

	result.Duration = time.Since(startTime)

	l.logger.InfoWithCtx(ctx, "Image built",
		"image", result.Image,
		"duration", result.Duration.String())

	return result, nil
}

// Run starts exactly one service process from image and blocks until it exits or ctx is done.
// cancellation is a graceful stop and returns nil
func (l *Launcher) Run(ctx context.Context, image string) error {
	if l.recipe.Run.Runtime == recipe.RuntimeKindProcess {
		return l.runProcess(ctx)
	}

	return l.runContainer(ctx, image)
}

// Up builds the image and runs it. Run is never attempted after a failed build
func (l *Launcher) Up(ctx context.Context) (*BuildResult, error) {
	buildResult, err := l.Build(ctx)
	if err != nil {
		return nil, err
	}

	return buildResult, l.Run(ctx, buildResult.Image)
}

// Inspect returns the effective recipe, its parsed manifest and the Dockerfile a build would use
func (l *Launcher) Inspect(ctx context.Context) (*InspectResult, error) {
	sourceDir := l.recipe.Source.Path

	if staging.IsArchive(sourceDir) {
		area, err := l.stager.Stage(ctx, sourceDir)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to stage source archive")
		}

		defer area.Remove() // nolint: errcheck

		sourceDir = area.Dir
	}

	parsedManifest, err := l.readManifest(sourceDir)
	if err != nil {
		return nil, err
	}

	dockerfileContents, err := l.renderDockerfile(parsedManifest)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to render Dockerfile")
	}

	return &InspectResult{
		Recipe:     l.recipe,
		Manifest:   parsedManifest,
		Dockerfile: dockerfileContents,
	}, nil
}

func (l *Launcher) cleanupArea(ctx context.Context, area *staging.Area) {
	if l.recipe.Build.NoCleanup {
		l.logger.InfoWithCtx(ctx, "Leaving staging area in place", "dir", area.Dir)
		return
	}

	if err := area.Remove(); err != nil {
		l.logger.WarnWithCtx(ctx, "Failed to remove staging area", "dir", area.Dir, "err", err.Error())
	}
}

func (l *Launcher) readManifest(sourceDir string) (*manifest.Manifest, error) {
	parsedManifest, err := manifest.Read(sourceDir,
		l.recipe.Source.Manifest,
		l.recipe.Source.ManifestKind)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read dependency manifest")
	}

	l.logger.DebugWith("Read dependency manifest",
		"path", parsedManifest.Path,
		"kind", parsedManifest.Kind,
		"requirements", len(parsedManifest.Requirements))

	return parsedManifest, nil
}

func (l *Launcher) renderDockerfile(parsedManifest *manifest.Manifest) (string, error) {
	installCommand := l.recipe.Build.InstallCommand
	if installCommand == "" {
		installCommand = manifest.DefaultInstallCommand(parsedManifest.Kind, l.recipe.Source.Manifest)
	}

	labels := map[string]string{}
	for labelName, labelValue := range l.recipe.Build.Labels {
		labels[labelName] = labelValue
	}

	labels[RecipeLabel] = l.recipe.Name

	return dockerfile.Render(&dockerfile.Options{
		BaseImage:      l.recipe.Base.Reference(),
		WorkDir:        l.recipe.Build.WorkDir,
		ManifestPath:   filepath.ToSlash(l.recipe.Source.Manifest),
		InstallCommand: installCommand,
		BuildCommands:  l.recipe.Build.BuildCommands,
		BuildArgs:      l.recipe.Build.BuildArgs,
		Labels:         labels,
		Port:           l.recipe.Run.Port,
		Command:        l.recipe.Run.Command,
	})
}

func (l *Launcher) imageUpToDate(ctx context.Context, image string, fingerprint string) (bool, error) {
	exists, err := l.dockerClient.ImageExists(ctx, image)
	if err != nil || !exists {
		return false, err
	}

	labels, err := l.dockerClient.GetImageLabels(ctx, image)
	if err != nil {
		return false, err
	}

	return labels[FingerprintLabel] == fingerprint, nil
}

func (l *Launcher) removeFailedImage(image string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupGracePeriod)
	defer cancel()

	if err := l.dockerClient.RemoveImage(ctx, image); err != nil {
		l.logger.DebugWith("No image to remove after failed build", "image", image, "err", err.Error())
	}
}

func (l *Launcher) runContainer(ctx context.Context, image string) error {
	if l.dockerClient == nil {
		return errDockerClientRequired
	}

	exists, err := l.dockerClient.ImageExists(ctx, image)
	if err != nil {
		return errors.Wrap(err, "Failed to check image existence")
	}

	if !exists {
		return errors.Wrapf(status.ErrImageNotFound, "Image %s does not exist, build it first", image)
	}

	containerID, err := l.dockerClient.RunContainer(ctx, image, &dockerclient.RunOptions{
		Ports:         map[int]int{l.recipe.Run.Port: l.recipe.Run.Port},
		ContainerName: l.recipe.Run.ContainerName,
		Env:           l.recipe.Run.Env,
		Labels: map[string]string{
			RecipeLabel: l.recipe.Name,
			ImageLabel:  image,
		},
	})
	if err != nil {
		return errors.Wrapf(status.ErrLaunchFailed, "Failed to start container from %s: %s", image, err.Error())
	}

	l.logger.InfoWithCtx(ctx, "Container started",
		"containerID", containerID,
		"image", image,
		"port", l.recipe.Run.Port)

	if err := l.prober.WaitReady(ctx, &probe.Config{
		Port:    l.recipe.Run.Port,
		Path:    l.recipe.Run.ProbePath,
		Timeout: l.recipe.Run.StartupTimeout,
	}, func(ctx context.Context) error {
		return l.containerAlive(ctx, containerID)
	}); err != nil {
		if ctx.Err() != nil {
			return l.stopContainer(containerID)
		}

		l.stopContainer(containerID) // nolint: errcheck

		if errors.RootCause(err) == probe.ErrNotReady {
			return errors.Wrap(status.ErrStartupTimeout, err.Error())
		}

		return err
	}

	l.logger.InfoWithCtx(ctx, "Service is ready",
		"containerID", containerID,
		"port", l.recipe.Run.Port)

	exitCode, err := l.dockerClient.WaitContainer(ctx, containerID)
	if ctx.Err() != nil {
		l.logger.InfoWith("Stopping container", "containerID", containerID)
		return l.stopContainer(containerID)
	}

	if err != nil {
		l.stopContainer(containerID) // nolint: errcheck
		return errors.Wrap(err, "Failed to wait for container")
	}

	l.logger.InfoWith("Container exited", "containerID", containerID, "exitCode", exitCode)

	l.removeContainer(containerID)

	if exitCode != 0 {
		return &status.ExitError{Code: exitCode}
	}

	return nil
}

func (l *Launcher) containerAlive(ctx context.Context, containerID string) error {
	container, err := l.dockerClient.GetContainer(ctx, containerID)
	if err != nil {
		if _, isNoSuchContainer := errors.RootCause(err).(*dockerclient.ErrNoSuchContainer); isNoSuchContainer {
			return errors.Wrap(status.ErrLaunchFailed, "Container disappeared during startup")
		}

		return errors.Wrap(err, "Failed to inspect container")
	}

	if container.State == nil || container.State.Running {
		return nil
	}

	logs, err := l.dockerClient.GetContainerLogs(ctx, containerID)
	if err != nil {
		logs = ""
	}

	return status.NewLaunchFailedError(container.State.ExitCode, logs)
}

// stopContainer stops and removes the container. ctx of the run may be done, so it uses its own
func (l *Launcher) stopContainer(containerID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.recipe.Run.StopTimeout+cleanupGracePeriod)
	defer cancel()

	if err := l.dockerClient.StopContainer(ctx, containerID, l.recipe.Run.StopTimeout); err != nil {
		return errors.Wrap(err, "Failed to stop container")
	}

	l.removeContainer(containerID)

	return nil
}

func (l *Launcher) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupGracePeriod)
	defer cancel()

	if err := l.dockerClient.RemoveContainer(ctx, containerID); err != nil {
		l.logger.WarnWith("Failed to remove container", "containerID", containerID, "err", err.Error())
	}
}

func (l *Launcher) runProcess(ctx context.Context) error {
	sourceDir := l.recipe.Source.Path

	if staging.IsArchive(sourceDir) {
		area, err := l.stager.Stage(ctx, sourceDir)
		if err != nil {
			return errors.Wrap(err, "Failed to stage source archive")
		}

		defer area.Remove() // nolint: errcheck

		sourceDir = area.Dir
	}

	return l.processRunner.Run(ctx, &process.Options{
		Dir:            sourceDir,
		Command:        l.recipe.Run.Command,
		Env:            l.recipe.Run.Env,
		Port:           l.recipe.Run.Port,
		ProbePath:      l.recipe.Run.ProbePath,
		StartupTimeout: l.recipe.Run.StartupTimeout,
		StopTimeout:    l.recipe.Run.StopTimeout,
	})
}
