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

package resource

import (
	"net/http"

	"github.com/dataflowassess/dfa/pkg/dashboard"
	"github.com/dataflowassess/dfa/pkg/restful"

	"github.com/nuclio/nuclio-sdk-go"
)

type translationResource struct {
	*resource
}

// GetAll returns the catalogs of all languages
func (tr *translationResource) GetAll(request *http.Request) (map[string]restful.Attributes, error) {
	translator := tr.getDashboard().Translator
	response := map[string]restful.Attributes{}

	for _, languageCode := range translator.Languages() {
		catalog, err := translator.Catalog(languageCode)
		if err != nil {
			return nil, nuclio.WrapErrInternalServerError(err)
		}

		response[languageCode] = catalogAttributes(catalog)
	}

	return response, nil
}

// GetByID returns the catalog of one language
func (tr *translationResource) GetByID(request *http.Request, id string) (restful.Attributes, error) {
	catalog, err := tr.getDashboard().Translator.Catalog(id)
	if err != nil {
		return nil, nuclio.NewErrNotFound("Unsupported language: " + id)
	}

	return catalogAttributes(catalog), nil
}

func catalogAttributes(catalog map[string]string) restful.Attributes {
	attributes := restful.Attributes{}
	for key, text := range catalog {
		attributes[key] = text
	}

	return attributes
}

// register the resource
var translationResourceInstance = &translationResource{
	resource: newResource("api/translations", []restful.ResourceMethod{
		restful.ResourceMethodGetList,
		restful.ResourceMethodGetDetail,
	}),
}

func init() {
	translationResourceInstance.Resource = translationResourceInstance
	translationResourceInstance.Register(dashboard.DashboardResourceRegistrySingleton)
}
