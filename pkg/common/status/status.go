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

package status

type Status int

const (
	Initializing Status = iota
	Ready
	Error
	Stopped
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Ready:
		return "Ready"
	case Error:
		return "Error"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// OneOf returns whether the status is one of the given ones
func (s Status) OneOf(statuses ...Status) bool {
	for _, status := range statuses {
		if s == status {
			return true
		}
	}

	return false
}

// Provider is implemented by anything whose health can be probed
type Provider interface {

	// GetStatus returns the current status
	GetStatus() Status
}
