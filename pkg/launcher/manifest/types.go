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
	"fmt"
	"strings"

	"github.com/dataflowassess/dfa/pkg/launcher/recipe"

	"github.com/nuclio/errors"
)

var ErrManifestNotFound = errors.New("Manifest not found or unreadable")
var ErrManifestMalformed = errors.New("Manifest is malformed")

// Specifier is a single version clause, e.g. ">= 1.2"
type Specifier struct {
	Operator string `json:"operator"`
	Version  string `json:"version"`
}

func (s Specifier) String() string {
	return s.Operator + s.Version
}

// Requirement is one declared dependency
type Requirement struct {

	// normalized (lower case, runs of -_. folded to -)
	Name       string      `json:"name"`
	RawName    string      `json:"rawName,omitempty"`
	Extras     []string    `json:"extras,omitempty"`
	Specifiers []Specifier `json:"specifiers,omitempty"`
	URL        string      `json:"url,omitempty"`
	Marker     string      `json:"marker,omitempty"`
	Indirect   bool        `json:"indirect,omitempty"`
	Line       int         `json:"line"`
}

// SpecifierString returns the comma separated specifiers, e.g. ">=1.0,<2"
func (r *Requirement) SpecifierString() string {
	var specifiers []string
	for _, specifier := range r.Specifiers {
		specifiers = append(specifiers, specifier.String())
	}

	return strings.Join(specifiers, ",")
}

// Manifest is a parsed dependency manifest
type Manifest struct {
	Kind         recipe.ManifestKind `json:"kind"`
	Path         string              `json:"path"`
	Requirements []Requirement       `json:"requirements"`

	// pip only
	IndexURLs []string `json:"indexURLs,omitempty"`

	// gomod only
	ModulePath string `json:"modulePath,omitempty"`
	GoVersion  string `json:"goVersion,omitempty"`
}

// Empty returns true if no dependency is declared
func (m *Manifest) Empty() bool {
	return len(m.Requirements) == 0
}

func malformedf(line int, format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	if line > 0 {
		message = fmt.Sprintf("line %d: %s", line, message)
	}

	return errors.Wrap(ErrManifestMalformed, message)
}
