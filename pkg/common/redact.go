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

package common

import (
	"io"
	"regexp"
	"sort"

	nucliozap "github.com/nuclio/zap"
)

var sensitiveNameRegex = regexp.MustCompile(`(?i)(password|passwd|secret|token|api_?key|credential)`)

func GetRedactorInstance(output io.Writer) *nucliozap.Redactor {
	return nucliozap.NewRedactor(output)
}

// GetSensitiveValues returns the non empty values whose names look like credentials, sorted
func GetSensitiveValues(valueMaps ...map[string]string) []string {
	var sensitiveValues []string

	for _, valueMap := range valueMaps {
		for name, value := range valueMap {
			if value != "" && sensitiveNameRegex.MatchString(name) {
				sensitiveValues = append(sensitiveValues, value)
			}
		}
	}

	sort.Strings(sensitiveValues)
	return sensitiveValues
}
