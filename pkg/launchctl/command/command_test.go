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

package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dataflowassess/dfa/pkg/launcher"
	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/suite"
)

type CommandTestSuite struct {
	suite.Suite
	recipeDir  string
	recipePath string
	output     *bytes.Buffer
}

func (suite *CommandTestSuite) SetupTest() {
	suite.recipeDir = suite.T().TempDir()
	suite.recipePath = filepath.Join(suite.recipeDir, "launcher.yaml")
	suite.output = &bytes.Buffer{}

	suite.writeFile("launcher.yaml", `name: assessment
source:
  path: ./src
build:
  tag: dev
  labels:
    team: privacy
run:
  runtime: process
`)
	suite.writeFile("src/requirements.txt", "streamlit>=1.30\npandas==2.1.4\n")
	suite.writeFile("src/app.py", "import streamlit as st\n")
}

func (suite *CommandTestSuite) TestInspectJSON() {
	err := suite.execute("inspect", "-o", "json", "--dockerfile")
	suite.Require().NoError(err)

	inspectResult := launcher.InspectResult{}
	suite.Require().NoError(json.Unmarshal(suite.output.Bytes(), &inspectResult))

	suite.Require().Equal("assessment", inspectResult.Recipe.Name)
	suite.Require().Equal(filepath.Join(suite.recipeDir, "src"), inspectResult.Recipe.Source.Path)
	suite.Require().Len(inspectResult.Manifest.Requirements, 2)
	suite.Require().Contains(inspectResult.Dockerfile, `LABEL team="privacy"`)
}

func (suite *CommandTestSuite) TestInspectText() {
	err := suite.execute("inspect", "--port", "9000")
	suite.Require().NoError(err)

	rendered := suite.output.String()
	suite.Require().Contains(rendered, "dfa/dashboard:dev")
	suite.Require().Contains(rendered, "9000")
	suite.Require().Contains(rendered, "pandas")
	suite.Require().NotContains(rendered, "FROM python")
}

func (suite *CommandTestSuite) TestBuildFailsOnMalformedManifest() {
	suite.writeFile("src/requirements.txt", "streamlit >=\n")

	err := suite.execute("build")
	suite.Require().Error(err)
	suite.Require().Equal(launcher.ErrManifestMalformed, errors.RootCause(err))
}

func (suite *CommandTestSuite) TestBuildProcessRuntimeVerifiesManifest() {
	err := suite.execute("build", "-o", "yaml")
	suite.Require().NoError(err)
	suite.Require().Contains(suite.output.String(), "skipped: true")
	suite.Require().Contains(suite.output.String(), "requirements: 2")
}

func (suite *CommandTestSuite) TestRunRequiresImageOnDocker() {
	err := suite.execute("run", "--runtime", "docker")
	suite.Require().Error(err)
}

func (suite *CommandTestSuite) TestInvalidOverrideIsRejected() {
	err := suite.execute("inspect", "--port", "70000")
	suite.Require().Error(err)
}

func (suite *CommandTestSuite) TestVersion() {
	err := suite.execute("version", "-o", "json")
	suite.Require().NoError(err)
	suite.Require().Contains(suite.output.String(), `"goVersion"`)
}

func (suite *CommandTestSuite) TestBaseImageOverrideDropsRecipeTag() {
	target := recipe.NewDefault()
	target.Source.Path = suite.recipeDir

	suite.Require().NoError((&recipeOverrides{baseImage: "golang"}).apply(target))
	suite.Require().Equal("golang", target.Base.Reference())

	suite.Require().NoError((&recipeOverrides{baseImage: "golang:1.19-alpine"}).apply(target))
	suite.Require().Equal("golang:1.19-alpine", target.Base.Reference())
}

func (suite *CommandTestSuite) TestOverridesApply() {
	overrides := &recipeOverrides{
		baseImage:     "python",
		baseTag:       "3.12-slim",
		port:          8080,
		noCache:       true,
		encodedLabels: "team=privacy,stage=dev",
		encodedEnv:    "LOG_LEVEL=debug",
	}

	target := recipe.NewDefault()
	target.Source.Path = suite.recipeDir

	suite.Require().NoError(overrides.apply(target))
	suite.Require().Equal("python:3.12-slim", target.Base.Reference())
	suite.Require().Equal(8080, target.Run.Port)
	suite.Require().True(target.Build.NoCache)
	suite.Require().False(target.Build.Pull)
	suite.Require().Equal("privacy", target.Build.Labels["team"])
	suite.Require().Equal("dev", target.Build.Labels["stage"])
	suite.Require().Equal("debug", target.Run.Env["LOG_LEVEL"])
}

func (suite *CommandTestSuite) execute(args ...string) error {
	rootCommandeer := NewRootCommandeer()
	rootCommandeer.SetOutput(suite.output)
	rootCommandeer.GetCmd().SetArgs(append([]string{"--no-color", "--recipe", suite.recipePath}, args...))

	return rootCommandeer.Execute()
}

func (suite *CommandTestSuite) writeFile(name string, contents string) {
	filePath := filepath.Join(suite.recipeDir, name)

	suite.Require().NoError(os.MkdirAll(filepath.Dir(filePath), 0755))
	suite.Require().NoError(os.WriteFile(filePath, []byte(contents), 0644))
}

func TestCommandTestSuite(t *testing.T) {
	suite.Run(t, new(CommandTestSuite))
}
