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

package main

import (
	"os"

	"github.com/dataflowassess/dfa/pkg/launchctl/command"
	"github.com/dataflowassess/dfa/pkg/launcher/status"

	"github.com/nuclio/errors"
)

func main() {
	if err := command.NewRootCommandeer().Execute(); err != nil {
		exitCode := status.ExitCode(err)

		// a service exiting on its own has already said why
		if _, isExitError := errors.RootCause(err).(*status.ExitError); !isExitError {
			errors.PrintErrorStack(os.Stderr, err, 5)
		}

		os.Exit(exitCode)
	}

	os.Exit(0)
}
