//go:build test_unit

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
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/nuclio/logger"
	"github.com/nuclio/nuclio-sdk-go"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

//
// Foo resource
//

type fooResource struct {
	*AbstractResource
}

func (fr *fooResource) GetAll(request *http.Request) (map[string]Attributes, error) {
	return map[string]Attributes{
		"fooID": {"a1": "v1", "a2": 2},
	}, nil
}

func (fr *fooResource) GetByID(request *http.Request, id string) (Attributes, error) {
	if id == "dont_find_me" {
		return nil, nil
	}

	if id == "gone" {
		return nil, nuclio.NewErrNotFound("Foo is gone")
	}

	return Attributes{
		"got_id": id,
	}, nil
}

func (fr *fooResource) GetCustomRoutes() ([]CustomRoute, error) {
	return []CustomRoute{
		{Pattern: "/{id}/single", Method: http.MethodGet, RouteFunc: fr.getCustomSingle},
		{Pattern: "/{id}/multi", Method: http.MethodGet, RouteFunc: fr.getCustomMulti},
		{Pattern: "/{id}/raw", Method: http.MethodGet, RouteFunc: fr.getCustomRaw},
		{Pattern: "/post", Method: http.MethodPost, RouteFunc: fr.postCustom},
	}, nil
}

func (fr *fooResource) Create(request *http.Request) (string, Attributes, error) {
	return "123", Attributes{
		"a": "b",
	}, nil
}

func (fr *fooResource) Update(request *http.Request, id string) (Attributes, error) {
	return Attributes{
		"a": "b",
	}, nil
}

func (fr *fooResource) Delete(request *http.Request, id string) error {
	return nil
}

func (fr *fooResource) getCustomSingle(request *http.Request) (*CustomRouteFuncResponse, error) {
	return &CustomRouteFuncResponse{
		ResourceType: "getCustomSingle",
		Resources: map[string]Attributes{
			chi.URLParam(request, "id"): {"a": "b", "c": "d"},
		},
		Single: true,
	}, nil
}

func (fr *fooResource) getCustomMulti(request *http.Request) (*CustomRouteFuncResponse, error) {
	return &CustomRouteFuncResponse{
		ResourceType: "getCustomMulti",
		Resources: map[string]Attributes{
			chi.URLParam(request, "id"): {"a": "b", "c": "d"},
		},
	}, nil
}

func (fr *fooResource) getCustomRaw(request *http.Request) (*CustomRouteFuncResponse, error) {
	return &CustomRouteFuncResponse{
		Body:        []byte("raw " + chi.URLParam(request, "id")),
		ContentType: "text/plain; charset=utf-8",
		Headers:     map[string]string{"Content-Disposition": `attachment; filename="raw.txt"`},
	}, nil
}

func (fr *fooResource) postCustom(request *http.Request) (*CustomRouteFuncResponse, error) {
	return nil, nuclio.NewErrConflict("Already posted")
}

//
// Moo resource
//

type mooResource struct {
	*AbstractResource
}

func (mr *mooResource) Create(request *http.Request) (string, Attributes, error) {
	return "", nil, nil
}

func (mr *mooResource) Update(request *http.Request, id string) (Attributes, error) {
	return nil, nil
}

func (mr *mooResource) Delete(request *http.Request, id string) error {
	return nuclio.ErrNotFound
}

//
// Test suite
//

type ResourceTestSuite struct {
	suite.Suite
	logger         logger.Logger
	fooResource    *fooResource
	mooResource    *mooResource
	router         chi.Router
	testHTTPServer *httptest.Server
}

func (suite *ResourceTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	suite.router = chi.NewRouter()

	suite.fooResource = &fooResource{
		AbstractResource: NewAbstractResource("foo", []ResourceMethod{
			ResourceMethodGetList,
			ResourceMethodGetDetail,
			ResourceMethodCreate,
			ResourceMethodUpdate,
			ResourceMethodDelete,
		}),
	}
	suite.fooResource.Resource = suite.fooResource
	suite.registerResource("foo", suite.fooResource.AbstractResource)

	suite.mooResource = &mooResource{
		AbstractResource: NewAbstractResource("moo", []ResourceMethod{
			ResourceMethodGetList,
			ResourceMethodCreate,
			ResourceMethodUpdate,
			ResourceMethodDelete,
		}),
	}
	suite.mooResource.Resource = suite.mooResource
	suite.registerResource("moo", suite.mooResource.AbstractResource)

	suite.testHTTPServer = httptest.NewServer(suite.router)
}

func (suite *ResourceTestSuite) TearDownTest() {
	suite.testHTTPServer.Close()
}

func (suite *ResourceTestSuite) TestFooResourceGetList() {
	suite.sendRequest(http.MethodGet, "/foo", http.StatusOK, `{
		"fooID": {
			"a1": "v1",
			"a2": 2
		}
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceGetDetail() {
	suite.sendRequest(http.MethodGet, "/foo/300", http.StatusOK, `{
		"id": "300",
		"got_id": "300"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceGetDetailNotFound() {
	suite.sendRequest(http.MethodGet, "/foo/dont_find_me", http.StatusNotFound, `{
		"error": "Resource not found"
	}`)

	suite.sendRequest(http.MethodGet, "/foo/gone", http.StatusNotFound, `{
		"error": "Foo is gone"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceGetCustomSingle() {
	suite.sendRequest(http.MethodGet, "/foo/abc/single", http.StatusOK, `{
		"id": "abc",
		"a": "b",
		"c": "d"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceGetCustomMulti() {
	suite.sendRequest(http.MethodGet, "/foo/abc/multi", http.StatusOK, `{
		"abc": {
			"a": "b",
			"c": "d"
		}
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceGetCustomRaw() {
	response, err := http.Get(suite.testHTTPServer.URL + "/foo/abc/raw")
	suite.Require().NoError(err)

	defer response.Body.Close() // nolint: errcheck

	body, err := io.ReadAll(response.Body)
	suite.Require().NoError(err)

	suite.Require().Equal(http.StatusOK, response.StatusCode)
	suite.Require().Equal("raw abc", string(body))
	suite.Require().Equal("text/plain; charset=utf-8", response.Header.Get("Content-Type"))
	suite.Require().Equal(`attachment; filename="raw.txt"`, response.Header.Get("Content-Disposition"))
}

func (suite *ResourceTestSuite) TestFooResourcePostCustom() {
	suite.sendRequest(http.MethodPost, "/foo/post", http.StatusConflict, `{
		"error": "Already posted"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceCreate() {
	suite.sendRequest(http.MethodPost, "/foo", http.StatusCreated, `{
		"id": "123",
		"a": "b"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceUpdate() {
	suite.sendRequest(http.MethodPut, "/foo/444", http.StatusOK, `{
		"id": "444",
		"a": "b"
	}`)
}

func (suite *ResourceTestSuite) TestFooResourceDelete() {
	suite.sendRequest(http.MethodDelete, "/foo/123", http.StatusNoContent, "")
}

func (suite *ResourceTestSuite) TestMooResourceGetListNotImplemented() {
	suite.sendRequest(http.MethodGet, "/moo", http.StatusNotImplemented, "")
}

func (suite *ResourceTestSuite) TestMooResourceCreateWithoutAttributes() {
	suite.sendRequest(http.MethodPost, "/moo", http.StatusCreated, "")
}

func (suite *ResourceTestSuite) TestMooResourceUpdate() {
	suite.sendRequest(http.MethodPut, "/moo/444", http.StatusNoContent, "")
}

func (suite *ResourceTestSuite) TestMooResourceDelete() {
	suite.sendRequest(http.MethodDelete, "/moo/123", http.StatusNotFound, "")
}

func (suite *ResourceTestSuite) registerResource(name string, resource *AbstractResource) {
	router, err := resource.Initialize(suite.logger, nil)
	suite.Require().NoError(err)

	suite.router.Mount("/"+name, router)
}

func (suite *ResourceTestSuite) sendRequest(method string,
	path string,
	expectedStatusCode int,
	encodedExpectedResponseBody string) {

	request, err := http.NewRequest(method, suite.testHTTPServer.URL+path, nil)
	suite.Require().NoError(err)

	response, err := http.DefaultClient.Do(request)
	suite.Require().NoError(err)

	defer response.Body.Close() // nolint: errcheck

	encodedResponseBody, err := io.ReadAll(response.Body)
	suite.Require().NoError(err)

	suite.logger.DebugWith("Got response", "response", string(encodedResponseBody))

	suite.Require().Equal(expectedStatusCode, response.StatusCode)

	if encodedExpectedResponseBody == "" {
		return
	}

	suite.Require().Equal("application/json", response.Header.Get("Content-Type"))
	suite.Require().JSONEq(strings.TrimSpace(encodedExpectedResponseBody), string(encodedResponseBody))
}

func TestResourceTestSuite(t *testing.T) {
	suite.Run(t, new(ResourceTestSuite))
}
