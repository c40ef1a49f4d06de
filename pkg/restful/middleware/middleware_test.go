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

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type middlewareTestSuite struct {
	suite.Suite
	logger logger.Logger
	router chi.Router
}

func (suite *middlewareTestSuite) SetupTest() {
	suite.logger, _ = nucliozap.NewNuclioZapTest("test")

	suite.router = chi.NewRouter()
	suite.router.Use(RequestID)
	suite.router.Use(AlignRequestIDKeyToLogger)
	suite.router.Use(RequestResponseLogger(suite.logger))
}

func (suite *middlewareTestSuite) TestGeneratedRequestID() {
	var seenRequestID, seenLoggerRequestID interface{}

	suite.router.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		seenRequestID = middleware.GetReqID(r.Context())
		seenLoggerRequestID = r.Context().Value(LoggerRequestIDKey)
		w.Write([]byte("ok")) // nolint: errcheck
	})

	recorder := httptest.NewRecorder()
	suite.router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("body")))

	suite.Require().Equal(http.StatusOK, recorder.Code)
	suite.Require().Equal("ok", recorder.Body.String())

	responseRequestID := recorder.Header().Get(RequestIDHeaderName)
	_, err := uuid.Parse(responseRequestID)
	suite.Require().NoError(err)
	suite.Require().Equal(responseRequestID, seenRequestID)
	suite.Require().Equal(responseRequestID, seenLoggerRequestID)
}

func (suite *middlewareTestSuite) TestCallerRequestIDIsKept() {
	suite.router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		suite.Require().Equal("abc-123", middleware.GetReqID(r.Context()))
	})

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(RequestIDHeaderName, "abc-123")

	recorder := httptest.NewRecorder()
	suite.router.ServeHTTP(recorder, request)
	suite.Require().Equal("abc-123", recorder.Header().Get(RequestIDHeaderName))
}

func (suite *middlewareTestSuite) TestTruncate() {
	suite.Require().Equal("short", truncate([]byte("short")))
	suite.Require().Len(truncate([]byte(strings.Repeat("x", maxLoggedBodyLength+10))), maxLoggedBodyLength+3)
}

func TestMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(middlewareTestSuite))
}
