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

package dashboard

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/diagram"
	"github.com/dataflowassess/dfa/pkg/i18n"
	"github.com/dataflowassess/dfa/pkg/policy"
	"github.com/dataflowassess/dfa/pkg/registry"
	"github.com/dataflowassess/dfa/pkg/restful"
	"github.com/dataflowassess/dfa/pkg/session"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var DashboardResourceRegistrySingleton = registry.NewRegistry("dashboard_resource")

//go:embed assets/index.html
var assets embed.FS

type Options struct {
	ListenAddress  string
	AllowedOrigins []string
}

type Server struct {
	*restful.AbstractServer
	Questionnaire *assessment.Questionnaire
	Translator    *i18n.Translator
	Sessions      *session.Manager
	Policies      *policy.Generator
	Diagrams      *diagram.Generator

	allowedOrigins  []string
	indexTemplate   *template.Template
	metricsRegistry *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewServer(parentLogger logger.Logger,
	questionnaire *assessment.Questionnaire,
	translator *i18n.Translator,
	sessions *session.Manager,
	policies *policy.Generator,
	diagrams *diagram.Generator,
	options *Options) (*Server, error) {
	var err error

	newServer := &Server{
		Questionnaire:   questionnaire,
		Translator:      translator,
		Sessions:        sessions,
		Policies:        policies,
		Diagrams:        diagrams,
		allowedOrigins:  options.AllowedOrigins,
		metricsRegistry: prometheus.NewRegistry(),
	}

	if len(newServer.allowedOrigins) == 0 {
		newServer.allowedOrigins = []string{"*"}
	}

	newServer.indexTemplate, err = template.ParseFS(assets, "assets/index.html")
	if err != nil {
		return nil, errors.Wrap(err, "Failed to parse index template")
	}

	if err := newServer.registerMetrics(); err != nil {
		return nil, errors.Wrap(err, "Failed to register metrics")
	}

	// create server
	newServer.AbstractServer, err = restful.NewAbstractServer(parentLogger,
		DashboardResourceRegistrySingleton,
		newServer,
		options.ListenAddress)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create restful server")
	}

	newServer.Router.Get("/", newServer.serveIndex)
	newServer.Router.Handle("/metrics", promhttp.HandlerFor(newServer.metricsRegistry, promhttp.HandlerOpts{}))

	newServer.Logger.InfoWith("Initialized",
		"listenAddress", options.ListenAddress,
		"allowedOrigins", newServer.allowedOrigins,
		"languages", translator.Languages())

	return newServer, nil
}

func (s *Server) InstallMiddleware(router chi.Router) error {
	corsOptions := cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Accept-Language",
			"Content-Type",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"Content-Disposition",
			"X-Request-Id",
		},
		MaxAge: 300,
	}

	router.Use(cors.New(corsOptions).Handler)
	router.Use(s.instrument)

	return nil
}

// GetMetricsRegistry returns the registry served on /metrics
func (s *Server) GetMetricsRegistry() *prometheus.Registry {
	return s.metricsRegistry
}

func (s *Server) registerMetrics() error {
	s.requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dfa",
		Subsystem: "dashboard",
		Name:      "requests_total",
		Help:      "Total number of handled requests",
	}, []string{"method", "route", "status"})

	s.requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dfa",
		Subsystem: "dashboard",
		Name:      "request_duration_seconds",
		Help:      "Request handling duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	for _, collector := range []prometheus.Collector{
		s.requestsTotal,
		s.requestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := s.metricsRegistry.Register(collector); err != nil {
			return errors.Wrap(err, "Failed to register collector")
		}
	}

	return nil
}

// instrument counts requests by route pattern, which keeps session ids out of the label values
func (s *Server) instrument(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		responseWrapper := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		startTime := time.Now()

		next.ServeHTTP(responseWrapper, r)

		route := "unmatched"
		if routeContext := chi.RouteContext(r.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		statusCode := responseWrapper.Status()
		if statusCode == 0 {
			statusCode = http.StatusOK
		}

		s.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(statusCode)).Inc()
		s.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(startTime).Seconds())
	}

	return http.HandlerFunc(fn)
}

type indexLink struct {
	Method string
	Path   string
}

type indexPage struct {
	Language  string
	Languages []string
	Title     string
	Subtitle  string
	NewLabel  string
	Import    string
	Summary   string
	Policies  string
	Diagram   string
	Links     []indexLink
}

func (s *Server) serveIndex(writer http.ResponseWriter, request *http.Request) {
	languageCode := s.Translator.Negotiate(request.URL.Query().Get("lang"), request.Header.Get("Accept-Language"))

	page := &indexPage{
		Language:  languageCode,
		Languages: s.Translator.Languages(),
		Title:     s.Translator.Text(languageCode, "app_title"),
		Subtitle:  s.Translator.Text(languageCode, "session_management"),
		NewLabel:  s.Translator.Text(languageCode, "new_session"),
		Import:    s.Translator.Text(languageCode, "import_session"),
		Summary:   s.Translator.Text(languageCode, "summary_view"),
		Policies:  s.Translator.Text(languageCode, "policy_view"),
		Diagram:   s.Translator.Text(languageCode, "visualize_view"),
		Links: []indexLink{
			{http.MethodGet, "/api/questionnaire"},
			{http.MethodGet, "/api/translations/" + languageCode},
			{http.MethodPost, "/api/sessions"},
			{http.MethodPost, "/api/sessions/import"},
			{http.MethodGet, "/api/sessions/{id}"},
			{http.MethodPost, "/api/sessions/{id}/answers"},
			{http.MethodPost, "/api/sessions/{id}/back"},
			{http.MethodPost, "/api/sessions/{id}/reset"},
			{http.MethodGet, "/api/sessions/{id}/summary"},
			{http.MethodGet, "/api/sessions/{id}/policies"},
			{http.MethodGet, "/api/sessions/{id}/policies/export?format=markdown"},
			{http.MethodGet, "/api/sessions/{id}/diagram"},
			{http.MethodGet, "/api/sessions/{id}/export"},
		},
	}

	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.Header().Set("Content-Language", languageCode)

	if err := s.indexTemplate.Execute(writer, page); err != nil {
		s.Logger.WarnWithCtx(request.Context(), "Failed to render index", "err", err.Error())
	}
}
