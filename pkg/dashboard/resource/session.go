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

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/dashboard"
	"github.com/dataflowassess/dfa/pkg/policy"
	"github.com/dataflowassess/dfa/pkg/restful"
	"github.com/dataflowassess/dfa/pkg/session"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
	"github.com/samber/lo"
)

type sessionResource struct {
	*resource
}

type createSessionRequest struct {
	Language string `json:"language,omitempty"`
}

type submitAnswersRequest struct {
	Answers map[string]interface{} `json:"answers"`
}

// GetAll returns all sessions, without their answers
func (sr *sessionResource) GetAll(request *http.Request) (map[string]restful.Attributes, error) {
	sessions, err := sr.getDashboard().Sessions.List(request.Context())
	if err != nil {
		return nil, sr.convertError(err)
	}

	response := map[string]restful.Attributes{}
	for _, sessionInstance := range sessions {
		response[sessionInstance.ID] = restful.Attributes{
			"language":             sessionInstance.Language,
			"created":              sessionInstance.Created,
			"updated":              sessionInstance.Updated,
			"completed":            sessionInstance.State.Completed,
			"currentQuestionIndex": sessionInstance.State.CurrentQuestionIndex,
			"answered":             len(sessionInstance.State.Answers),
		}
	}

	return response, nil
}

// GetByID returns a session along with the step it is at
func (sr *sessionResource) GetByID(request *http.Request, id string) (restful.Attributes, error) {
	sessionInstance, err := sr.getDashboard().Sessions.Get(request.Context(), id)
	if err != nil {
		return nil, sr.convertError(err)
	}

	return sr.sessionAttributes(sessionInstance, sr.getLanguage(request, sessionInstance.Language)), nil
}

// Create starts a new session. the language may be given in the body, otherwise it is negotiated
func (sr *sessionResource) Create(request *http.Request) (string, restful.Attributes, error) {
	createRequest := createSessionRequest{}
	if err := sr.readJSONBody(request, &createRequest); err != nil {
		return "", nil, err
	}

	translator := sr.getDashboard().Translator

	if createRequest.Language != "" && !translator.Supports(createRequest.Language) {
		return "", nil, nuclio.NewErrBadRequest("Unsupported language: " + createRequest.Language)
	}

	languageCode := createRequest.Language
	if languageCode == "" {
		languageCode = sr.getLanguage(request, "")
	}

	sessionInstance, err := sr.getDashboard().Sessions.Create(request.Context(), languageCode)
	if err != nil {
		return "", nil, sr.convertError(err)
	}

	return sessionInstance.ID, sr.sessionAttributes(sessionInstance, languageCode), nil
}

func (sr *sessionResource) Delete(request *http.Request, id string) error {
	return sr.convertError(sr.getDashboard().Sessions.Delete(request.Context(), id))
}

func (sr *sessionResource) GetCustomRoutes() ([]restful.CustomRoute, error) {
	return []restful.CustomRoute{
		{Pattern: "/import", Method: http.MethodPost, RouteFunc: sr.importSession},
		{Pattern: "/{id}/answers", Method: http.MethodPost, RouteFunc: sr.submitAnswers},
		{Pattern: "/{id}/back", Method: http.MethodPost, RouteFunc: sr.back},
		{Pattern: "/{id}/reset", Method: http.MethodPost, RouteFunc: sr.reset},
		{Pattern: "/{id}/summary", Method: http.MethodGet, RouteFunc: sr.getSummary},
		{Pattern: "/{id}/policies", Method: http.MethodGet, RouteFunc: sr.getPolicies},
		{Pattern: "/{id}/policies/export", Method: http.MethodGet, RouteFunc: sr.exportPolicies},
		{Pattern: "/{id}/diagram", Method: http.MethodGet, RouteFunc: sr.getDiagram},
		{Pattern: "/{id}/export", Method: http.MethodGet, RouteFunc: sr.exportSession},
	}, nil
}

func (sr *sessionResource) submitAnswers(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	submitRequest := submitAnswersRequest{}
	if err := sr.readJSONBody(request, &submitRequest); err != nil {
		return nil, err
	}

	id := chi.URLParam(request, "id")
	dashboardServer := sr.getDashboard()

	wasCompleted := false
	if current, err := dashboardServer.Sessions.Get(request.Context(), id); err == nil {
		wasCompleted = current.State.Completed
	}

	sessionInstance, err := dashboardServer.Sessions.Submit(request.Context(), id, submitRequest.Answers)
	if err != nil {
		if validationError, isValidationError := errors.RootCause(err).(*assessment.ValidationError); isValidationError {
			return sr.validationErrorResponse(validationError,
				sr.validationMessage(request, validationError))
		}

		return nil, sr.convertError(err)
	}

	languageCode := sr.getLanguage(request, sessionInstance.Language)
	attributes := sr.sessionAttributes(sessionInstance, languageCode)

	if wasCompleted {
		attributes["message"] = dashboardServer.Translator.Text(languageCode, "changes_saved")
	}

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusOK), nil
}

func (sr *sessionResource) back(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	sessionInstance, err := sr.getDashboard().Sessions.Back(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		return nil, sr.convertError(err)
	}

	attributes := sr.sessionAttributes(sessionInstance, sr.getLanguage(request, sessionInstance.Language))

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusOK), nil
}

func (sr *sessionResource) reset(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	sessionInstance, err := sr.getDashboard().Sessions.Reset(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		return nil, sr.convertError(err)
	}

	languageCode := sr.getLanguage(request, sessionInstance.Language)
	attributes := sr.sessionAttributes(sessionInstance, languageCode)
	attributes["message"] = sr.getDashboard().Translator.Text(languageCode, "session_reset")

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusOK), nil
}

func (sr *sessionResource) getSummary(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	sessionInstance, err := sr.getSession(request)
	if err != nil {
		return nil, err
	}

	dashboardServer := sr.getDashboard()
	languageCode := sr.getLanguage(request, sessionInstance.Language)
	rows := dashboardServer.Questionnaire.Summary(sessionInstance.State.Answers)

	attributes := restful.Attributes{
		"title": dashboardServer.Translator.Text(languageCode, "summary_title"),
		"rows":  rows,
	}

	if len(rows) == 0 {
		attributes["message"] = dashboardServer.Translator.Text(languageCode, "no_answers")
	}

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusOK), nil
}

func (sr *sessionResource) getPolicies(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	sessionInstance, err := sr.getSession(request)
	if err != nil {
		return nil, err
	}

	dashboardServer := sr.getDashboard()
	languageCode := sr.getLanguage(request, sessionInstance.Language)
	suggestions := dashboardServer.Policies.Generate(request.Context(), sessionInstance.State.Answers)

	attributes := restful.Attributes{
		"suggestions": suggestions,
	}

	if len(suggestions) == 0 {
		attributes["message"] = dashboardServer.Translator.Text(languageCode, "no_policy_suggestions")
	} else {
		attributes["message"] = dashboardServer.Translator.Format(languageCode,
			"policy_recommendations",
			map[string]interface{}{"count": len(suggestions)})
	}

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusOK), nil
}

func (sr *sessionResource) exportPolicies(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	format, err := policy.ParseFormat(request.URL.Query().Get("format"))
	if err != nil {
		return nil, sr.convertError(err)
	}

	sessionInstance, err := sr.getSession(request)
	if err != nil {
		return nil, err
	}

	contents, err := sr.getDashboard().Policies.Export(request.Context(), sessionInstance.State.Answers, format)
	if err != nil {
		return nil, sr.convertError(err)
	}

	return &restful.CustomRouteFuncResponse{
		Body:        []byte(contents),
		ContentType: format.ContentType(),
		Headers: map[string]string{
			"Content-Disposition": attachment(policy.ExportFileName(sessionInstance.State.Answers, format)),
		},
	}, nil
}

// getDiagram returns the D2 script as text, or wrapped in JSON with ?format=json
func (sr *sessionResource) getDiagram(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	sessionInstance, err := sr.getSession(request)
	if err != nil {
		return nil, err
	}

	dashboardServer := sr.getDashboard()
	languageCode := sr.getLanguage(request, sessionInstance.Language)
	script := dashboardServer.Diagrams.Generate(sessionInstance.State.Answers, languageCode)

	switch format := request.URL.Query().Get("format"); format {
	case "", "d2":
		return &restful.CustomRouteFuncResponse{
			Body:        []byte(script),
			ContentType: "text/plain; charset=utf-8",
		}, nil
	case "json":
		return sr.sessionResponse(sessionInstance.ID, restful.Attributes{
			"title":  dashboardServer.Translator.Text(languageCode, "diagram_title"),
			"script": script,
		}, http.StatusOK), nil
	default:
		return nil, nuclio.NewErrBadRequest("Unsupported diagram format: " + format)
	}
}

func (sr *sessionResource) exportSession(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	fileName, contents, err := sr.getDashboard().Sessions.Export(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		return nil, sr.convertError(err)
	}

	return &restful.CustomRouteFuncResponse{
		Body:        contents,
		ContentType: "application/json",
		Headers: map[string]string{
			"Content-Disposition": attachment(fileName),
		},
	}, nil
}

// importSession creates a session from a previously exported document, sent as the request body
func (sr *sessionResource) importSession(request *http.Request) (*restful.CustomRouteFuncResponse, error) {
	contents, err := sr.readBody(request)
	if err != nil {
		return nil, err
	}

	dashboardServer := sr.getDashboard()
	languageCode := sr.getLanguage(request, "")

	sessionInstance, err := dashboardServer.Sessions.Import(request.Context(), contents, languageCode)
	if err != nil {
		if errors.RootCause(err) == session.ErrInvalidSession {
			return nil, nuclio.NewErrBadRequest(dashboardServer.Translator.Format(languageCode,
				"import_error",
				map[string]interface{}{"error": err.Error()}))
		}

		return nil, sr.convertError(err)
	}

	languageCode = sr.getLanguage(request, sessionInstance.Language)
	attributes := sr.sessionAttributes(sessionInstance, languageCode)
	attributes["message"] = dashboardServer.Translator.Text(languageCode, "session_imported")

	return sr.sessionResponse(sessionInstance.ID, attributes, http.StatusCreated), nil
}

func (sr *sessionResource) getSession(request *http.Request) (*session.Session, error) {
	sessionInstance, err := sr.getDashboard().Sessions.Get(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		return nil, sr.convertError(err)
	}

	return sessionInstance, nil
}

func (sr *sessionResource) sessionAttributes(sessionInstance *session.Session, languageCode string) restful.Attributes {
	dashboardServer := sr.getDashboard()
	questionnaire := dashboardServer.Questionnaire
	progress := questionnaire.Progress(&sessionInstance.State)

	attributes := restful.Attributes{
		"language": sessionInstance.Language,
		"created":  sessionInstance.Created,
		"updated":  sessionInstance.Updated,
		"state":    sessionInstance.State,
		"progress": progress,
		"progressText": dashboardServer.Translator.Format(languageCode, "question_progress", map[string]interface{}{
			"current": progress.Current,
			"total":   progress.Total,
		}),
	}

	if sessionInstance.State.Completed {
		attributes["message"] = dashboardServer.Translator.Text(languageCode, "completion_success")
		return attributes
	}

	stepView := questionnaire.View(sessionInstance.State.CurrentQuestionIndex, sessionInstance.State.Answers)
	attributes["step"] = stepView

	if !stepView.Applicable {
		attributes["message"] = dashboardServer.Translator.Text(languageCode, "section_not_applicable")
	}

	return attributes
}

func (sr *sessionResource) sessionResponse(id string,
	attributes restful.Attributes,
	statusCode int) *restful.CustomRouteFuncResponse {

	return &restful.CustomRouteFuncResponse{
		ResourceType: "session",
		Single:       true,
		StatusCode:   statusCode,
		Resources:    map[string]restful.Attributes{id: attributes},
	}
}

// validationMessage is the translated warning when answers are only missing, the raw problems otherwise
func (sr *sessionResource) validationMessage(request *http.Request, validationError *assessment.ValidationError) string {
	hasInvalidAnswers := lo.ContainsBy(lo.Values(validationError.Problems), func(problem string) bool {
		return problem != assessment.ProblemRequired
	})

	if hasInvalidAnswers {
		return validationError.Error()
	}

	sessionLanguage := ""
	if sessionInstance, err := sr.getSession(request); err == nil {
		sessionLanguage = sessionInstance.Language
	}

	languageCode := sr.getLanguage(request, sessionLanguage)

	if len(validationError.Problems) > 1 {
		return sr.getDashboard().Translator.Text(languageCode, "section_required_warning")
	}

	return sr.getDashboard().Translator.Text(languageCode, "required_warning")
}

// register the resource
var sessionResourceInstance = &sessionResource{
	resource: newResource("api/sessions", []restful.ResourceMethod{
		restful.ResourceMethodGetList,
		restful.ResourceMethodGetDetail,
		restful.ResourceMethodCreate,
		restful.ResourceMethodDelete,
	}),
}

func init() {
	sessionResourceInstance.Resource = sessionResourceInstance
	sessionResourceInstance.Register(dashboard.DashboardResourceRegistrySingleton)
}
