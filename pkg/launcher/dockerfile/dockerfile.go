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

package dockerfile

import (
	"bytes"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"text/template"

	"github.com/nuclio/errors"
)

// FileName is the name of the generated Dockerfile at the root of the staging dir
const FileName = "Dockerfile.dfa"

const dockerfileTemplateContents = `# From the base image
FROM {{ .BaseImage }}
{{- range $buildArg := .BuildArgs }}
ARG {{ $buildArg }}
{{- end }}

WORKDIR {{ .WorkDir }}

# Install the declared dependencies
COPY {{ .ManifestPath }} {{ .ManifestPath }}
RUN {{ .InstallCommand }}

# Copy the source tree
COPY . .
{{- if .BuildCommands }}

# Run the build commands
{{- range $buildCommand := .BuildCommands }}
RUN {{ $buildCommand }}
{{- end }}
{{- end }}
{{- if .Labels }}

# Labels
{{- range $label := .Labels }}
LABEL {{ $label.Name }}={{ json $label.Value }}
{{- end }}
{{- end }}

EXPOSE {{ .Port }}

CMD {{ json .Command }}
`

var dockerfileTemplate = template.Must(template.New("dockerfile").
	Funcs(template.FuncMap{"json": toJSON}).
	Parse(dockerfileTemplateContents))

// Options describe the image to generate a Dockerfile for
type Options struct {
	BaseImage      string
	WorkDir        string
	ManifestPath   string
	InstallCommand string
	BuildCommands  []string
	BuildArgs      map[string]string
	Labels         map[string]string
	Port           int
	Command        []string
}

type label struct {
	Name  string
	Value string
}

// Render returns the contents of a single stage Dockerfile. output only depends on the options
func Render(options *Options) (string, error) {
	if options.BaseImage == "" {
		return "", errors.New("Base image must be set")
	}

	if len(options.Command) == 0 {
		return "", errors.New("Command must be set")
	}

	var buildArgs []string
	for buildArgName := range options.BuildArgs {
		buildArgs = append(buildArgs, buildArgName)
	}
	sort.Strings(buildArgs)

	var labels []label
	for labelName, labelValue := range options.Labels {
		labels = append(labels, label{labelName, labelValue})
	}
	sort.Slice(labels, func(i, j int) bool {
		return labels[i].Name < labels[j].Name
	})

	var dockerfileBuffer bytes.Buffer
	if err := dockerfileTemplate.Execute(&dockerfileBuffer, map[string]interface{}{
		"BaseImage":      options.BaseImage,
		"BuildArgs":      buildArgs,
		"WorkDir":        options.WorkDir,
		"ManifestPath":   path.Clean(options.ManifestPath),
		"InstallCommand": options.InstallCommand,
		"BuildCommands":  options.BuildCommands,
		"Labels":         labels,
		"Port":           options.Port,
		"Command":        options.Command,
	}); err != nil {
		return "", errors.Wrap(err, "Failed to run template")
	}

	return dockerfileBuffer.String(), nil
}

func toJSON(value interface{}) (string, error) {
	var encoded bytes.Buffer

	encoder := json.NewEncoder(&encoded)
	encoder.SetEscapeHTML(false)

	if err := encoder.Encode(value); err != nil {
		return "", err
	}

	return strings.TrimSuffix(encoded.String(), "\n"), nil
}
