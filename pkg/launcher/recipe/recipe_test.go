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

package recipe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dataflowassess/dfa/pkg/dockerclient"

	"github.com/nuclio/logger"
	"github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type RecipeTestSuite struct {
	suite.Suite
	logger logger.Logger
	reader *Reader
}

func (suite *RecipeTestSuite) SetupTest() {
	var err error

	suite.logger, _ = nucliozap.NewNuclioZapTest("test")
	suite.reader, err = NewReader(suite.logger)
	suite.Require().NoError(err)
}

func (suite *RecipeTestSuite) TestDefaultRecipeIsValid() {
	recipe := NewDefault()
	suite.Require().NoError(recipe.Validate())
	suite.Require().Equal("python:3.11-slim", recipe.Base.Reference())
	suite.Require().Equal(8501, recipe.Run.Port)
	suite.Require().Equal([]string{
		"streamlit", "run", "app.py", "--server.port=8501", "--server.address=0.0.0.0",
	}, recipe.Run.Command)
}

func (suite *RecipeTestSuite) TestReadMergesDefaults() {
	recipe, err := suite.reader.Read(strings.NewReader(`
name: custom
base:
  image: python
  tag: "3.12-slim"
run:
  port: "9000"
  command: python -m http.server 9000
  startupTimeout: 5s
`))
	suite.Require().NoError(err)

	suite.Require().Equal("custom", recipe.Name)
	suite.Require().Equal("python:3.12-slim", recipe.Base.Reference())
	suite.Require().Equal(9000, recipe.Run.Port)
	suite.Require().Equal([]string{"python", "-m", "http.server", "9000"}, recipe.Run.Command)
	suite.Require().Equal(5*time.Second, recipe.Run.StartupTimeout)

	// untouched sections come from the defaults
	suite.Require().Equal(DefaultStopTimeout, recipe.Run.StopTimeout)
	suite.Require().Equal(DefaultManifest, recipe.Source.Manifest)
	suite.Require().Equal(ManifestKindPip, recipe.Source.ManifestKind)
	suite.Require().Equal(DefaultWorkDir, recipe.Build.WorkDir)
	suite.Require().Equal(dockerclient.ClientKindShell, recipe.Build.Client)
	suite.Require().NoError(recipe.Validate())
}

func (suite *RecipeTestSuite) TestReadBaseImageWithoutDefaultTag() {
	for _, testCase := range []struct {
		name              string
		document          string
		expectedReference string
	}{
		{"untagged", "base:\n  image: golang\n", "golang"},
		{"tagged", "base:\n  image: python:3.12\n", "python:3.12"},
		{"tagged with separate tag", "base:\n  image: python:3.12\n  tag: 3.11-slim\n", "python:3.12"},
		{"digest", "base:\n  image: python@sha256:" + strings.Repeat("a", 64) + "\n",
			"python@sha256:" + strings.Repeat("a", 64)},
		{"registry port", "base:\n  image: localhost:5000/python\n  tag: \"3.12\"\n", "localhost:5000/python:3.12"},
		{"omitted", "name: x\n", "python:3.11-slim"},
	} {
		suite.Run(testCase.name, func() {
			recipe, err := suite.reader.Read(strings.NewReader(testCase.document))
			suite.Require().NoError(err)
			suite.Require().Equal(testCase.expectedReference, recipe.Base.Reference())
			suite.Require().NoError(recipe.Validate())
		})
	}
}

func (suite *RecipeTestSuite) TestReadKeepsExplicitZeroStopTimeout() {
	recipe, err := suite.reader.Read(strings.NewReader(`
run:
  stopTimeout: 0s
`))
	suite.Require().NoError(err)
	suite.Require().Equal(time.Duration(0), recipe.Run.StopTimeout)
	suite.Require().NoError(recipe.Validate())

	recipe, err = suite.reader.Read(strings.NewReader(`
run:
  port: 9000
`))
	suite.Require().NoError(err)
	suite.Require().Equal(DefaultStopTimeout, recipe.Run.StopTimeout)
}

func (suite *RecipeTestSuite) TestReadCommandList() {
	recipe, err := suite.reader.Read(strings.NewReader(`
run:
  command: ["sh", "-c", "echo hi && sleep 1"]
`))
	suite.Require().NoError(err)
	suite.Require().Equal([]string{"sh", "-c", "echo hi && sleep 1"}, recipe.Run.Command)
}

func (suite *RecipeTestSuite) TestReadInfersManifestKind() {
	recipe, err := suite.reader.Read(strings.NewReader(`
source:
  manifest: go.mod
`))
	suite.Require().NoError(err)
	suite.Require().Equal(ManifestKindGoMod, recipe.Source.ManifestKind)
}

func (suite *RecipeTestSuite) TestReadExpandsEnv() {
	suite.T().Setenv("DFA_TEST_BASE_TAG", "3.10-slim")

	recipe, err := suite.reader.Read(strings.NewReader(`
base:
  image: python
  tag: ${DFA_TEST_BASE_TAG}
run:
  env:
    LANGUAGE: ${DFA_TEST_UNSET_LANGUAGE:-de}
    EMPTY: ${DFA_TEST_UNSET_OTHER}
`))
	suite.Require().NoError(err)
	suite.Require().Equal("3.10-slim", recipe.Base.Tag)
	suite.Require().Equal("de", recipe.Run.Env["LANGUAGE"])
	suite.Require().Equal("", recipe.Run.Env["EMPTY"])
}

func (suite *RecipeTestSuite) TestReadRejectsUnknownFields() {
	_, err := suite.reader.Read(strings.NewReader(`
run:
  prot: 8501
`))
	suite.Require().Error(err)
}

func (suite *RecipeTestSuite) TestReadFileOrDefault() {
	tempDir := suite.T().TempDir()

	// missing file
	recipe, err := suite.reader.ReadFileOrDefault(filepath.Join(tempDir, "missing.yaml"))
	suite.Require().NoError(err)
	suite.Require().Equal(DefaultName, recipe.Name)
	suite.Require().True(filepath.IsAbs(recipe.Source.Path))

	// relative source path resolves against the recipe dir
	recipePath := filepath.Join(tempDir, "launcher.yaml")
	suite.Require().NoError(os.WriteFile(recipePath, []byte("source:\n  path: app\n"), 0644))

	recipe, err = suite.reader.ReadFileOrDefault(recipePath)
	suite.Require().NoError(err)
	suite.Require().Equal(filepath.Join(tempDir, "app"), recipe.Source.Path)
}

func (suite *RecipeTestSuite) TestValidate() {
	for _, testCase := range []struct {
		name   string
		mutate func(*Recipe)
	}{
		{"bad base image", func(r *Recipe) { r.Base.Image = "Not Valid" }},
		{"empty base image", func(r *Recipe) { r.Base = Base{} }},
		{"port zero", func(r *Recipe) { r.Run.Port = 0 }},
		{"port too large", func(r *Recipe) { r.Run.Port = 70000 }},
		{"empty command", func(r *Recipe) { r.Run.Command = nil }},
		{"absolute manifest", func(r *Recipe) { r.Source.Manifest = "/etc/passwd" }},
		{"escaping manifest", func(r *Recipe) { r.Source.Manifest = "../requirements.txt" }},
		{"unknown runtime", func(r *Recipe) { r.Run.Runtime = "vm" }},
		{"unknown client", func(r *Recipe) { r.Build.Client = "grpc" }},
		{"unknown manifest kind", func(r *Recipe) { r.Source.ManifestKind = "npm" }},
		{"relative work dir", func(r *Recipe) { r.Build.WorkDir = "app" }},
		{"bad tag", func(r *Recipe) { r.Build.Tag = "has space" }},
		{"zero startup timeout", func(r *Recipe) { r.Run.StartupTimeout = 0 }},
	} {
		suite.Run(testCase.name, func() {
			recipe := NewDefault()
			testCase.mutate(recipe)
			suite.Require().Error(recipe.Validate())
		})
	}
}

func (suite *RecipeTestSuite) TestImageName() {
	recipe := NewDefault()
	suite.Require().Equal("dfa/dashboard:0123456789ab", recipe.ImageName("0123456789abcdef"))

	recipe.Build.Tag = "v1"
	suite.Require().Equal("dfa/dashboard:v1", recipe.ImageName("0123456789abcdef"))
}

func TestRecipeTestSuite(t *testing.T) {
	suite.Run(t, new(RecipeTestSuite))
}
