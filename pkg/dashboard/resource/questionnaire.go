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
)

type questionnaireResource struct {
	*resource
}

func (qr *questionnaireResource) getQuestionnaire(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	questionnaire := qr.getDashboard().Questionnaire

	return &restful.CustomRouteFuncResponse{
		ResourceType: "questionnaire",
		Single:       true,
		Resources: map[string]restful.Attributes{
			"questionnaire": {
				"steps":     questionnaire.Steps(),
				"total":     questionnaire.NumSteps(),
				"languages": qr.getDashboard().Translator.Languages(),
			},
		},
	}, nil
}

// the questionnaire is a singleton, served from the resource root
func (qr *questionnaireResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{
			Pattern:   "/",
			Method:    http.MethodGet,
			RouteFunc: qr.getQuestionnaire,
		},
	}, nil
}

// register the resource
var questionnaireResourceInstance = &questionnaireResource{
	resource: newResource("api/questionnaire", []restful.ResourceMethod{}),
}

func init() {
	questionnaireResourceInstance.Resource = questionnaireResourceInstance
	questionnaireResourceInstance.Register(dashboard.DashboardResourceRegistrySingleton)
}
