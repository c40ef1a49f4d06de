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
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nuclio/logger"
)

// LoggerRequestIDKey is the context key the logger reads request ids from
const LoggerRequestIDKey = "requestID"
const RequestIDHeaderName = "X-Request-Id"

const maxRequestIDLength = 128
const maxLoggedBodyLength = 4096

// RequestID injects a request ID into the context of each request. A caller supplied X-Request-Id is
// kept, otherwise a random one is generated. Either way it is echoed in the response
func RequestID(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeaderName)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeaderName, requestID)

		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// AlignRequestIDKeyToLogger copies the router's request ID to the logger's context key
func AlignRequestIDKeyToLogger(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if requestID := middleware.GetReqID(ctx); requestID != "" {
			ctx = context.WithValue(ctx, LoggerRequestIDKey, requestID) // nolint: staticcheck
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	}

	return http.HandlerFunc(fn)
}

// RequestResponseLogger logs handled requests
func RequestResponseLogger(logger logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, request *http.Request) {
			responseBodyBuffer := bytes.Buffer{}

			// create a response wrapper so we can access stuff
			responseWrapper := middleware.NewWrapResponseWriter(w, request.ProtoMajor)
			responseWrapper.Tee(&responseBodyBuffer)

			requestStartTime := time.Now()

			// read the body and restore it for further processing
			requestBody, _ := io.ReadAll(request.Body)
			request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

			defer func() {
				logger.DebugWithCtx(request.Context(), "Handled request",
					"requestMethod", request.Method,
					"requestPath", request.URL.Path,
					"requestQuery", request.URL.RawQuery,
					"requestBody", truncate(requestBody),
					"responseStatus", responseWrapper.Status(),
					"responseBody", truncate(responseBodyBuffer.Bytes()),
					"responseTime", time.Since(requestStartTime).String())
			}()

			next.ServeHTTP(responseWrapper, request)
		}

		return http.HandlerFunc(fn)
	}
}

func truncate(body []byte) string {
	if len(body) > maxLoggedBodyLength {
		return string(body[:maxLoggedBodyLength]) + "..."
	}

	return string(body)
}
