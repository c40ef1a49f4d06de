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
	"io"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/imdario/mergo"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"sigs.k8s.io/yaml"
)

// ${NAME} or ${NAME:-default}
var envReferenceRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

type Reader struct {
	logger logger.Logger
}

func NewReader(parentLogger logger.Logger) (*Reader, error) {
	return &Reader{
		logger: parentLogger.GetChild("recipe"),
	}, nil
}

// Read parses a recipe document, merging it over the default recipe
func (r *Reader) Read(reader io.Reader) (*Recipe, error) {
	recipeBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to read recipe")
	}

	recipeMap := map[string]interface{}{}
	if err := yaml.Unmarshal([]byte(expandEnv(string(recipeBytes))), &recipeMap); err != nil {
		return nil, errors.Wrap(err, "Failed to parse recipe")
	}

	var recipe Recipe

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToFieldsHookFunc(),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &recipe,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create recipe decoder")
	}

	if err := decoder.Decode(recipeMap); err != nil {
		return nil, errors.Wrap(err, "Failed to decode recipe")
	}

	if err := r.applyDefaults(&recipe, recipeMap); err != nil {
		return nil, errors.Wrap(err, "Failed to apply recipe defaults")
	}

	return &recipe, nil
}

// ReadFileOrDefault reads the recipe at path. a missing file yields the default recipe. a relative source
// path is resolved against the directory holding the recipe
func (r *Reader) ReadFileOrDefault(recipePath string) (*Recipe, error) {
	expandedPath, err := homedir.Expand(recipePath)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to expand recipe path")
	}

	recipeFile, err := os.Open(expandedPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "Failed to open recipe file")
		}

		r.logger.DebugWith("Recipe file not found, using defaults", "path", expandedPath)

		recipe := NewDefault()
		if err := r.resolvePaths(recipe, "."); err != nil {
			return nil, errors.Wrap(err, "Failed to resolve recipe paths")
		}

		return recipe, nil
	}

	// close after
	defer recipeFile.Close() // nolint: errcheck

	recipe, err := r.Read(recipeFile)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read recipe file %s", expandedPath)
	}

	if err := r.resolvePaths(recipe, filepath.Dir(expandedPath)); err != nil {
		return nil, errors.Wrap(err, "Failed to resolve recipe paths")
	}

	r.logger.DebugWith("Read recipe", "path", expandedPath, "name", recipe.Name)

	return recipe, nil
}

// applyDefaults fills unset fields from the default recipe. the base image is merged as a unit, and
// values explicitly set to zero in the document (e.g. stopTimeout: 0s) are kept
func (r *Reader) applyDefaults(recipe *Recipe, recipeMap map[string]interface{}) error {
	defaultRecipe := NewDefault()

	// a custom manifest implies its own kind, don't inherit pip from the defaults
	if recipe.Source.Manifest != "" && recipe.Source.ManifestKind == "" {
		recipe.Source.ManifestKind = InferManifestKind(recipe.Source.Manifest)
	}

	// a base image without a tag means its latest tag, not the default python tag
	if recipe.Base.Image != "" {
		defaultRecipe.Base = recipe.Base
	}

	if isSet(recipeMap, "run", "stopTimeout") {
		defaultRecipe.Run.StopTimeout = recipe.Run.StopTimeout
	}

	return mergo.Merge(recipe, defaultRecipe)
}

func isSet(document map[string]interface{}, section string, key string) bool {
	sectionMap, isMap := document[section].(map[string]interface{})
	if !isMap {
		return false
	}

	_, found := sectionMap[key]
	return found
}

func (r *Reader) resolvePaths(recipe *Recipe, baseDir string) error {
	var err error

	for _, pathField := range []*string{&recipe.Source.Path, &recipe.Build.TempDir} {
		if *pathField == "" {
			continue
		}

		if *pathField, err = homedir.Expand(*pathField); err != nil {
			return errors.Wrapf(err, "Failed to expand %s", *pathField)
		}

		if !filepath.IsAbs(*pathField) {
			*pathField = filepath.Join(baseDir, *pathField)
		}

		if *pathField, err = filepath.Abs(*pathField); err != nil {
			return errors.Wrapf(err, "Failed to resolve %s", *pathField)
		}
	}

	return nil
}

func expandEnv(input string) string {
	return envReferenceRegex.ReplaceAllStringFunc(input, func(match string) string {
		submatches := envReferenceRegex.FindStringSubmatch(match)

		if value, found := os.LookupEnv(submatches[1]); found && value != "" {
			return value
		}

		return submatches[3]
	})
}

// a command may be given as a string ("streamlit run app.py") or a list
func stringToFieldsHookFunc() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}

		return strings.Fields(data.(string)), nil
	}
}
