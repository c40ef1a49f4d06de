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

package restful

import (
	"encoding/json"
	"net/http"
)

type Encoder interface {

	// EncodeResource encodes a single resource. A non empty id is added as the "id" attribute
	EncodeResource(string, Attributes)

	// EncodeResources encodes resources as an object keyed by id
	EncodeResources(map[string]Attributes)
}

type EncoderFactory interface {
	NewEncoder(http.ResponseWriter, string) Encoder
}

type jsonEncoder struct {
	encoder        *json.Encoder
	responseWriter http.ResponseWriter
	resourceType   string
}

func (je *jsonEncoder) EncodeResource(resourceID string, resourceAttributes Attributes) {
	if resourceID != "" {
		if _, found := resourceAttributes["id"]; !found {
			resourceAttributes["id"] = resourceID
		}
	}

	je.encoder.Encode(resourceAttributes) // nolint: errcheck
}

func (je *jsonEncoder) EncodeResources(resources map[string]Attributes) {
	if resources == nil {
		resources = map[string]Attributes{}
	}

	je.encoder.Encode(resources) // nolint: errcheck
}

type JSONEncoderFactory struct{}

func (jef *JSONEncoderFactory) NewEncoder(responseWriter http.ResponseWriter, resourceType string) Encoder {
	return &jsonEncoder{
		encoder:        json.NewEncoder(responseWriter),
		responseWriter: responseWriter,
		resourceType:   resourceType,
	}
}
