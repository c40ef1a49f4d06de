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
	"sort"
	"strings"
)

// StringMapToString converts a map of a: x, b: y to a string in the form of "a=x,b=y", sorted by key
func StringMapToString(source map[string]string) string {
	list := []string{}

	for k, v := range source {
		list = append(list, k+"="+v)
	}

	sort.Strings(list)
	return strings.Join(list, ",")
}

// StringToStringMap converts a string in the form of a{separator}x,b{separator}y to a map of a: x, b: y,
// inputs source-string & string-separator
func StringToStringMap(source string, separator string) map[string]string {
	result := map[string]string{}
	if source == "" {
		return result
	}

	for _, keyAndValue := range strings.Split(source, ",") {
		kv := strings.SplitN(keyAndValue, separator, 2)
		if len(kv) > 1 {
			result[strings.TrimSpace(kv[0])] = kv[1]
		}
	}

	return result
}
