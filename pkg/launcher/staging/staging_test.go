//go:build test_unit

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

package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/launcher/dockerfile"

	"github.com/mholt/archiver/v3"
	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type StagingTestSuite struct {
	suite.Suite
	logger    logger.Logger
	ctx       context.Context
	stager    *Stager
	sourceDir string
}

func (suite *StagingTestSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.ctx = context.Background()
	suite.stager, err = NewStager(suite.logger, suite.T().TempDir())
	suite.Require().NoError(err)

	suite.sourceDir = filepath.Join(suite.T().TempDir(), "app")
	suite.writeSourceFile("app.py", "print('hello')\n", 0644)
	suite.writeSourceFile("requirements.txt", "streamlit\n", 0644)
	suite.writeSourceFile("bin/run.sh", "#!/bin/sh\n", 0755)
	suite.writeSourceFile(".git/HEAD", "ref: refs/heads/main\n", 0644)
	suite.writeSourceFile(dockerfile.FileName, "FROM stale\n", 0644)
}

func (suite *StagingTestSuite) TestStageDirectory() {
	area, err := suite.stager.Stage(suite.ctx, suite.sourceDir)
	suite.Require().NoError(err)
	defer area.Remove() // nolint: errcheck

	suite.Require().True(common.IsFile(filepath.Join(area.Dir, "app.py")))
	suite.Require().True(common.IsFile(filepath.Join(area.Dir, "bin", "run.sh")))
	suite.Require().False(common.FileExists(filepath.Join(area.Dir, ".git")))
	suite.Require().False(common.FileExists(filepath.Join(area.Dir, dockerfile.FileName)))

	info, err := os.Stat(filepath.Join(area.Dir, "bin", "run.sh"))
	suite.Require().NoError(err)
	suite.Require().Equal(os.FileMode(0755), info.Mode().Perm())

	// writes go to the staging area only
	suite.Require().NoError(area.WriteFile(dockerfile.FileName, []byte("FROM python\n")))
	contents, err := os.ReadFile(filepath.Join(suite.sourceDir, dockerfile.FileName))
	suite.Require().NoError(err)
	suite.Require().Equal("FROM stale\n", string(contents))

	suite.Require().NoError(area.Remove())
	suite.Require().False(common.FileExists(area.Dir))
}

func (suite *StagingTestSuite) TestStageArchive() {
	archivePath := filepath.Join(suite.T().TempDir(), "app.tar.gz")
	suite.Require().NoError(archiver.Archive([]string{suite.sourceDir}, archivePath))

	archiveArea, err := suite.stager.Stage(suite.ctx, archivePath)
	suite.Require().NoError(err)
	defer archiveArea.Remove() // nolint: errcheck

	// the wrapping dir is stripped
	suite.Require().True(common.IsFile(filepath.Join(archiveArea.Dir, "app.py")))
	suite.Require().False(common.FileExists(filepath.Join(archiveArea.Dir, ".git")))

	dirArea, err := suite.stager.Stage(suite.ctx, suite.sourceDir)
	suite.Require().NoError(err)
	defer dirArea.Remove() // nolint: errcheck

	suite.Require().Equal(suite.fingerprint(dirArea.Dir, "python:3.11-slim"),
		suite.fingerprint(archiveArea.Dir, "python:3.11-slim"))
}

func (suite *StagingTestSuite) TestStageRejectsUnknownSources() {
	_, err := suite.stager.Stage(suite.ctx, filepath.Join(suite.sourceDir, "missing"))
	suite.Require().Error(err)

	_, err = suite.stager.Stage(suite.ctx, filepath.Join(suite.sourceDir, "app.py"))
	suite.Require().Error(err)
}

func (suite *StagingTestSuite) TestFingerprint() {
	baseline := suite.fingerprint(suite.sourceDir, "python:3.11-slim")

	// stable
	suite.Require().Equal(baseline, suite.fingerprint(suite.sourceDir, "python:3.11-slim"))
	suite.Require().Len(baseline, 64)

	// base image
	suite.Require().NotEqual(baseline, suite.fingerprint(suite.sourceDir, "python:3.12-slim"))

	// excluded entries don't count
	suite.writeSourceFile(".git/HEAD", "ref: refs/heads/other\n", 0644)
	suite.Require().Equal(baseline, suite.fingerprint(suite.sourceDir, "python:3.11-slim"))

	// executable bit
	suite.Require().NoError(os.Chmod(filepath.Join(suite.sourceDir, "app.py"), 0755))
	suite.Require().NotEqual(baseline, suite.fingerprint(suite.sourceDir, "python:3.11-slim"))
	suite.Require().NoError(os.Chmod(filepath.Join(suite.sourceDir, "app.py"), 0644))

	// contents
	suite.writeSourceFile("app.py", "print('changed')\n", 0644)
	suite.Require().NotEqual(baseline, suite.fingerprint(suite.sourceDir, "python:3.11-slim"))
}

func (suite *StagingTestSuite) TestFingerprintBuildArgs() {
	fingerprintWithArgs := func(buildArgs map[string]string) string {
		fingerprint, err := Fingerprint(&FingerprintInputs{
			BaseImage:          "python:3.11-slim",
			ManifestKind:       "pip",
			Dir:                suite.sourceDir,
			DockerfileContents: "FROM python:3.11-slim\nARG APP_ENV\n",
			BuildArgs:          buildArgs,
		})
		suite.Require().NoError(err)

		return fingerprint
	}

	staging := fingerprintWithArgs(map[string]string{"APP_ENV": "staging", "REGION": "eu"})

	// map order doesn't matter
	suite.Require().Equal(staging, fingerprintWithArgs(map[string]string{"REGION": "eu", "APP_ENV": "staging"}))

	// values do
	suite.Require().NotEqual(staging, fingerprintWithArgs(map[string]string{"APP_ENV": "production", "REGION": "eu"}))
	suite.Require().NotEqual(staging, fingerprintWithArgs(map[string]string{"APP_ENV": "staging"}))

	// separators can't be shifted between name and value
	suite.Require().NotEqual(fingerprintWithArgs(map[string]string{"A": "B=C"}),
		fingerprintWithArgs(map[string]string{"A=B": "C"}))
}

func (suite *StagingTestSuite) TestIsArchive() {
	for _, archivePath := range []string{"a.zip", "a.tar", "a.tar.gz", "A.TGZ"} {
		suite.Require().True(IsArchive(archivePath), archivePath)
	}

	suite.Require().False(IsArchive("a.rar"))
	suite.Require().False(IsArchive("dir"))
}

func (suite *StagingTestSuite) fingerprint(dir string, baseImage string) string {
	fingerprint, err := Fingerprint(&FingerprintInputs{
		BaseImage:          baseImage,
		ManifestKind:       "pip",
		Dir:                dir,
		DockerfileContents: "FROM " + baseImage + "\n",
	})
	suite.Require().NoError(err)

	return fingerprint
}

func (suite *StagingTestSuite) writeSourceFile(relativePath string, contents string, mode os.FileMode) {
	filePath := filepath.Join(suite.sourceDir, relativePath)

	suite.Require().NoError(os.MkdirAll(filepath.Dir(filePath), 0755))
	suite.Require().NoError(os.WriteFile(filePath, []byte(contents), mode))
	suite.Require().NoError(os.Chmod(filePath, mode))
}

func TestStagingTestSuite(t *testing.T) {
	suite.Run(t, new(StagingTestSuite))
}
