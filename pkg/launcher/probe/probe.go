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

package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

var ErrNotReady = errors.New("Service did not become ready")

const defaultInterval = 250 * time.Millisecond

// AliveFunc reports whether the probed process is still running. a non nil error aborts the probe
type AliveFunc func(ctx context.Context) error

type Config struct {
	Host     string
	Port     int
	Path     string
	Timeout  time.Duration
	Interval time.Duration
}

// Prober waits until a service accepts TCP connections and answers an HTTP request
type Prober struct {
	logger     logger.Logger
	httpClient *http.Client
	dialer     *net.Dialer
}

func NewProber(parentLogger logger.Logger, httpClient *http.Client) (*Prober, error) {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: 5 * time.Second,

			// any answer counts, including redirects
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	return &Prober{
		logger:     parentLogger.GetChild("probe"),
		httpClient: httpClient,
		dialer:     &net.Dialer{Timeout: time.Second},
	}, nil
}

// WaitReady blocks until the service at host:port is ready, alive returns an error, the timeout passes
// or ctx is done
func (p *Prober) WaitReady(ctx context.Context, config *Config, alive AliveFunc) error {
	interval := config.Interval
	if interval == 0 {
		interval = defaultInterval
	}

	host := config.Host
	if host == "" {
		host = "127.0.0.1"
	}

	address := net.JoinHostPort(host, strconv.Itoa(config.Port))
	url := fmt.Sprintf("http://%s%s", address, config.Path)

	probeCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	tcpReady := false
	var lastErr error

	for {
		if alive != nil {
			if err := alive(probeCtx); err != nil {
				return err
			}
		}

		if !tcpReady {
			if lastErr = p.probeTCP(probeCtx, address); lastErr == nil {
				tcpReady = true
				p.logger.DebugWithCtx(ctx, "Port accepts connections", "address", address)
			}
		}

		if tcpReady {
			statusCode, err := p.probeHTTP(probeCtx, url)
			if err == nil {
				p.logger.DebugWithCtx(ctx, "Service answered", "url", url, "statusCode", statusCode)
				return nil
			}

			lastErr = err
		}

		select {
		case <-probeCtx.Done():

			// the caller's cancellation wins over our own timeout
			if ctx.Err() != nil {
				return ctx.Err()
			}

			return errors.Wrapf(ErrNotReady, "%s not ready within %s: %v", address, config.Timeout, lastErr)
		case <-ticker.C:
		}
	}
}

func (p *Prober) probeTCP(ctx context.Context, address string) error {
	connection, err := p.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}

	return connection.Close()
}

func (p *Prober) probeHTTP(ctx context.Context, url string) (int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	response, err := p.httpClient.Do(request)
	if err != nil {
		return 0, err
	}

	response.Body.Close() // nolint: errcheck

	return response.StatusCode, nil
}
