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

package manifest

import (
	"golang.org/x/mod/modfile"
)

func parseGoMod(manifestPath string, contents []byte) (*Manifest, error) {
	modFile, err := modfile.Parse(manifestPath, contents, nil)
	if err != nil {
		return nil, malformedf(0, "%s", err.Error())
	}

	if modFile.Module == nil || modFile.Module.Mod.Path == "" {
		return nil, malformedf(0, "missing module directive")
	}

	parsedManifest := &Manifest{
		ModulePath: modFile.Module.Mod.Path,
	}

	if modFile.Go != nil {
		parsedManifest.GoVersion = modFile.Go.Version
	}

	seen := map[string]string{}

	for _, require := range modFile.Require {
		if existingVersion, found := seen[require.Mod.Path]; found && existingVersion != require.Mod.Version {
			return nil, malformedf(require.Syntax.Start.Line,
				"conflicting requirements for %s: %s and %s",
				require.Mod.Path,
				existingVersion,
				require.Mod.Version)
		}

		seen[require.Mod.Path] = require.Mod.Version

		parsedManifest.Requirements = append(parsedManifest.Requirements, Requirement{
			Name: require.Mod.Path,

			// minimal version selection treats a requirement as a minimum
			Specifiers: []Specifier{{Operator: ">=", Version: require.Mod.Version}},
			Indirect:   require.Indirect,
			Line:       require.Syntax.Start.Line,
		})
	}

	return parsedManifest, nil
}
