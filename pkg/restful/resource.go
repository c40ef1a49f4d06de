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

	"github.com/dataflowassess/dfa/pkg/common"
	"github.com/dataflowassess/dfa/pkg/registry"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
)

type Attributes map[string]interface{}

// CustomRouteFuncResponse is what a custom route returns:
// resource type: name of the encoded resource
// resources: a map of resource ID, resource attributes
// single: whether the first resource is returned on its own, or all of them as a map
// status code: status code to return (defaults to 200)
// body / content type: raw payload, written as is instead of encoding resources
type CustomRouteFuncResponse struct {
	ResourceType string
	Resources    map[string]Attributes
	Single       bool
	StatusCode   int
	Headers      map[string]string
	Body         []byte
	ContentType  string
}

type CustomRouteFunc func(*http.Request) (*CustomRouteFuncResponse, error)

type CustomRoute struct {
	Pattern   string
	Method    string
	RouteFunc CustomRouteFunc
}

type Resource interface {

	// Called after initialization
	OnAfterInitialize() error

	// returns a list of custom routes for the resource
	GetCustomRoutes() ([]CustomRoute, error)

	// return all instances
	GetAll(request *http.Request) (map[string]Attributes, error)

	// return specific instance by ID
	GetByID(request *http.Request, id string) (Attributes, error)

	// returns resource ID, attributes
	Create(request *http.Request) (string, Attributes, error)

	// returns attributes (optionally)
	Update(request *http.Request, id string) (Attributes, error)

	// delete an entity
	Delete(request *http.Request, id string) error
}

type ResourceMethod int

const (
	ResourceMethodGetList ResourceMethod = iota
	ResourceMethodGetDetail
	ResourceMethodCreate
	ResourceMethodUpdate
	ResourceMethodDelete
)

type AbstractResource struct {
	name            string
	Logger          logger.Logger
	router          chi.Router
	Resource        Resource
	resourceMethods []ResourceMethod
	server          interface{}
	encoderFactory  EncoderFactory
}

func NewAbstractResource(name string, resourceMethods []ResourceMethod) *AbstractResource {
	return &AbstractResource{
		name:            name,
		resourceMethods: resourceMethods,
		encoderFactory:  &JSONEncoderFactory{},
	}
}

func (ar *AbstractResource) Initialize(parentLogger logger.Logger, server interface{}) (chi.Router, error) {
	ar.Logger = parentLogger.GetChild(ar.name)

	ar.server = server
	ar.router = chi.NewRouter()

	// register routes based on supported methods
	if err := ar.registerRoutes(); err != nil {
		return nil, errors.Wrap(err, "Failed to register routes")
	}

	if err := ar.Resource.OnAfterInitialize(); err != nil {
		return nil, errors.Wrap(err, "Failed to initialize resource")
	}

	return ar.router, nil
}

func (ar *AbstractResource) Register(registry *registry.Registry) {
	registry.Register(ar.name, ar)
}

func (ar *AbstractResource) GetName() string {
	return ar.name
}

func (ar *AbstractResource) GetServer() interface{} {
	return ar.server
}

// GetRouter returns the resource router, for raw routes
func (ar *AbstractResource) GetRouter() chi.Router {
	return ar.router
}

func (ar *AbstractResource) OnAfterInitialize() error {
	return nil
}

func (ar *AbstractResource) GetCustomRoutes() ([]CustomRoute, error) {
	return nil, nil
}

func (ar *AbstractResource) GetAll(request *http.Request) (map[string]Attributes, error) {
	return nil, nuclio.ErrNotImplemented
}

func (ar *AbstractResource) GetByID(request *http.Request, id string) (Attributes, error) {
	return nil, nuclio.ErrNotImplemented
}

func (ar *AbstractResource) Create(request *http.Request) (string, Attributes, error) {
	return "", nil, nuclio.ErrNotImplemented
}

func (ar *AbstractResource) Update(request *http.Request, id string) (Attributes, error) {
	return nil, nuclio.ErrNotImplemented
}

func (ar *AbstractResource) Delete(request *http.Request, id string) error {
	return nuclio.ErrNotImplemented
}

func (ar *AbstractResource) registerRoutes() error {
	for _, resourceMethod := range ar.resourceMethods {
		switch resourceMethod {
		case ResourceMethodGetList:
			ar.router.Get("/", ar.handleGetList)
		case ResourceMethodGetDetail:
			ar.router.Get("/{id}", ar.handleGetDetails)
		case ResourceMethodCreate:
			ar.router.Post("/", ar.handleCreate)
		case ResourceMethodUpdate:
			ar.router.Put("/{id}", ar.handleUpdate)
		case ResourceMethodDelete:
			ar.router.Delete("/{id}", ar.handleDelete)
		}
	}

	return ar.registerCustomRoutes()
}

func (ar *AbstractResource) registerCustomRoutes() error {
	customRoutes, err := ar.Resource.GetCustomRoutes()
	if err != nil {
		return errors.Wrap(err, "Failed to get custom routes")
	}

	for _, customRoute := range customRoutes {
		customRoute := customRoute

		ar.Logger.DebugWith("Registering custom route",
			"pattern", customRoute.Pattern,
			"method", customRoute.Method)

		ar.router.MethodFunc(customRoute.Method,
			customRoute.Pattern,
			func(responseWriter http.ResponseWriter, request *http.Request) {
				ar.callCustomRouteFunc(responseWriter, request, customRoute.RouteFunc)
			})
	}

	return nil
}

func (ar *AbstractResource) handleGetList(responseWriter http.ResponseWriter, request *http.Request) {
	resources, err := ar.Resource.GetAll(request)
	if err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	writeJSONHeaders(responseWriter, http.StatusOK)
	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResources(resources)
}

func (ar *AbstractResource) handleGetDetails(responseWriter http.ResponseWriter, request *http.Request) {
	resourceID := chi.URLParam(request, "id")

	attributes, err := ar.Resource.GetByID(request, resourceID)
	if err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	if attributes == nil {
		ar.writeError(responseWriter, request, nuclio.NewErrNotFound("Resource not found"))
		return
	}

	writeJSONHeaders(responseWriter, http.StatusOK)
	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(resourceID, attributes)
}

func (ar *AbstractResource) handleCreate(responseWriter http.ResponseWriter, request *http.Request) {
	resourceID, attributes, err := ar.Resource.Create(request)
	if err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	// if no attributes given, return nothing
	if attributes == nil {
		responseWriter.WriteHeader(http.StatusCreated)
		return
	}

	writeJSONHeaders(responseWriter, http.StatusCreated)
	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(resourceID, attributes)
}

func (ar *AbstractResource) handleUpdate(responseWriter http.ResponseWriter, request *http.Request) {
	resourceID := chi.URLParam(request, "id")

	attributes, err := ar.Resource.Update(request, resourceID)
	if err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	if attributes == nil {
		responseWriter.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSONHeaders(responseWriter, http.StatusOK)
	ar.encoderFactory.NewEncoder(responseWriter, ar.name).EncodeResource(resourceID, attributes)
}

func (ar *AbstractResource) handleDelete(responseWriter http.ResponseWriter, request *http.Request) {
	if err := ar.Resource.Delete(request, chi.URLParam(request, "id")); err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	responseWriter.WriteHeader(http.StatusNoContent)
}

func (ar *AbstractResource) callCustomRouteFunc(responseWriter http.ResponseWriter,
	request *http.Request,
	routeFunc CustomRouteFunc) {

	response, err := routeFunc(request)
	if err != nil {
		ar.writeError(responseWriter, request, err)
		return
	}

	if response == nil {
		response = &CustomRouteFuncResponse{}
	}

	statusCode := response.StatusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}

	for headerName, headerValue := range response.Headers {
		responseWriter.Header().Set(headerName, headerValue)
	}

	// raw payloads are written as is
	if response.Body != nil {
		if response.ContentType != "" {
			responseWriter.Header().Set("Content-Type", response.ContentType)
		}

		responseWriter.WriteHeader(statusCode)
		responseWriter.Write(response.Body) // nolint: errcheck
		return
	}

	if statusCode == http.StatusNoContent {
		responseWriter.WriteHeader(statusCode)
		return
	}

	writeJSONHeaders(responseWriter, statusCode)

	if response.Resources == nil {

		// write a valid, empty JSON
		responseWriter.Write([]byte("{}")) // nolint: errcheck
		return
	}

	encoder := ar.encoderFactory.NewEncoder(responseWriter, response.ResourceType)

	if response.Single {

		// to get the first, we must iterate over range
		for resourceKey, resourceAttributes := range response.Resources {
			encoder.EncodeResource(resourceKey, resourceAttributes)
			break
		}

		return
	}

	encoder.EncodeResources(response.Resources)
}

// writeError responds with the status code carried by err (500 if it carries none) and a JSON body
// holding the error message
func (ar *AbstractResource) writeError(responseWriter http.ResponseWriter, request *http.Request, err error) {
	statusCode := common.ResolveErrorStatusCodeOrDefault(err, http.StatusInternalServerError)

	if statusCode >= http.StatusInternalServerError {
		ar.Logger.WarnWithCtx(request.Context(), "Request failed",
			"path", request.URL.Path,
			"err", errors.GetErrorStackString(err, 10))
	} else {
		ar.Logger.DebugWithCtx(request.Context(), "Request rejected",
			"path", request.URL.Path,
			"statusCode", statusCode,
			"err", err.Error())
	}

	WriteErrorResponse(responseWriter, statusCode, err.Error(), nil)
}

// WriteErrorResponse writes {"error": message} along with optional details
func WriteErrorResponse(responseWriter http.ResponseWriter, statusCode int, message string, details Attributes) {
	body := Attributes{}
	for key, value := range details {
		body[key] = value
	}

	body["error"] = message

	writeJSONHeaders(responseWriter, statusCode)
	json.NewEncoder(responseWriter).Encode(body) // nolint: errcheck
}

func writeJSONHeaders(responseWriter http.ResponseWriter, statusCode int) {
	responseWriter.Header().Set("Content-Type", "application/json")
	responseWriter.WriteHeader(statusCode)
}
