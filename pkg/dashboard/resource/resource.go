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
	"encoding/json"
	"io"
	"net/http"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/dashboard"
	"github.com/dataflowassess/dfa/pkg/policy"
	"github.com/dataflowassess/dfa/pkg/restful"
	"github.com/dataflowassess/dfa/pkg/session"

	"github.com/nuclio/errors"
	"github.com/nuclio/nuclio-sdk-go"
)

const maxBodySize = 10 * 1024 * 1024

type resource struct {
	*restful.AbstractResource
}

func newResource(name string, resourceMethods []restful.ResourceMethod) *resource {
	return &resource{
		AbstractResource: restful.NewAbstractResource(name, resourceMethods),
	}
}

func (r *resource) getDashboard() *dashboard.Server {
	return r.GetServer().(*dashboard.Server)
}

// getLanguage resolves the response language: ?lang= first, then the given session language, then
// Accept-Language
func (r *resource) getLanguage(request *http.Request, sessionLanguage string) string {
	explicit := request.URL.Query().Get("lang")
	if explicit == "" && sessionLanguage != "" {
		return sessionLanguage
	}

	return r.getDashboard().Translator.Negotiate(explicit, request.Header.Get("Accept-Language"))
}

func (r *resource) readBody(request *http.Request) ([]byte, error) {
	if request.Body == nil {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(request.Body, maxBodySize+1))
	if err != nil {
		return nil, nuclio.WrapErrInternalServerError(errors.Wrap(err, "Failed to read body"))
	}

	if len(body) > maxBodySize {
		return nil, nuclio.NewErrBadRequest("Request body too large")
	}

	return body, nil
}

// readJSONBody decodes the body into target. an empty body leaves target untouched
func (r *resource) readJSONBody(request *http.Request, target interface{}) error {
	body, err := r.readBody(request)
	if err != nil {
		return err
	}

	if len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, target); err != nil {
		return nuclio.WrapErrBadRequest(errors.Wrap(err, "Failed to parse JSON body"))
	}

	return nil
}

// convertError maps domain errors to errors carrying an HTTP status code
func (r *resource) convertError(err error) error {
	if err == nil {
		return nil
	}

	switch errors.RootCause(err) {
	case session.ErrNotFound:
		return nuclio.NewErrNotFound(err.Error())
	case session.ErrInvalidSession, policy.ErrUnsupportedFormat:
		return nuclio.NewErrBadRequest(err.Error())
	}

	if _, hasStatusCode := common.ErrorStatusCode(err); hasStatusCode {
		return err
	}

	return nuclio.WrapErrInternalServerError(err)
}

// validationErrorResponse lists the rejected answers next to the error message
func (r *resource) validationErrorResponse(validationError *assessment.ValidationError,
	message string) (*restful.CustomRouteFuncResponse, error) {

	body, err := json.Marshal(map[string]interface{}{
		"error":    message,
		"problems": validationError.Problems,
	})
	if err != nil {
		return nil, nuclio.WrapErrInternalServerError(errors.Wrap(err, "Failed to encode problems"))
	}

	return &restful.CustomRouteFuncResponse{
		StatusCode:  http.StatusBadRequest,
		Body:        body,
		ContentType: "application/json",
	}, nil
}

func attachment(fileName string) string {
	return `attachment; filename="` + fileName + `"`
}
