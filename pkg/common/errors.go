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
	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

// ResolveErrorStatusCodeOrDefault returns the status code carried by err (or its root cause)
func ResolveErrorStatusCodeOrDefault(err error, defaultStatusCode int) int {

	// resolve from top level
	if statusCode, hasStatusCode := ErrorStatusCode(err); hasStatusCode {
		return statusCode
	}

	// resolve from root cause
	if statusCode, hasStatusCode := ErrorStatusCode(errors.RootCause(err)); hasStatusCode {
		return statusCode
	}

	// unable to resolve, returning default
	return defaultStatusCode
}

// ErrorStatusCode returns the status code of err itself. sentinels such as nuclio.ErrNotFound are
// values, and StatusCode has a pointer receiver, so they don't satisfy nuclio.WithStatusCode
func ErrorStatusCode(err error) (int, bool) {
	switch typedErr := err.(type) {
	case nuclio.ErrorWithStatusCode:
		return typedErr.StatusCode(), true
	case nuclio.WithStatusCode:
		return typedErr.StatusCode(), true
	}

	return 0, false
}
