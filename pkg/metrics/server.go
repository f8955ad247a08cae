/*
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

package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// Checker reports an unhealthy state with a non-nil error
type Checker func(*http.Request) error

// Server exposes the registry on /metrics along with /healthz and /readyz probes
type Server struct {
	port            int
	gatherer        prometheus.Gatherer
	livenessChecks  []Checker
	readinessChecks []Checker
	shutdownTimeout time.Duration
}

type Option func(*Server)

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLivenessCheck appends a check executed on /healthz
func WithLivenessCheck(c Checker) Option {
	return func(s *Server) {
		s.livenessChecks = append(s.livenessChecks, c)
	}
}

// WithReadinessCheck appends a check executed on /readyz
func WithReadinessCheck(c Checker) Option {
	return func(s *Server) {
		s.readinessChecks = append(s.readinessChecks, c)
	}
}

func NewServer(port int, opts ...Option) *Server {
	s := &Server{
		port:            port,
		gatherer:        prometheus.DefaultGatherer,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", probe(ctx, "liveness", s.livenessChecks))
	mux.HandleFunc("/readyz", probe(ctx, "readiness", s.readinessChecks))
	return mux
}

func probe(ctx context.Context, name string, checks []Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r); err != nil {
				log.FromContext(ctx).Errorw(fmt.Sprintf("failed %s check", name), zap.Error(err))
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(err.Error()))
				return
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Start serves until the context is cancelled. A port of zero disables the server and blocks until
// cancellation so that it composes with the other members of an errgroup.
func (s *Server) Start(ctx context.Context) error {
	if s.port == 0 {
		log.FromContext(ctx).Debug("metrics server disabled")
		<-ctx.Done()
		return nil
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errs := make(chan error, 1)
	go func() {
		log.FromContext(ctx).With("port", s.port).Info("starting metrics server")
		errs <- httpServer.ListenAndServe()
	}()
	select {
	case err := <-errs:
		return fmt.Errorf("serving metrics, %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down metrics server, %w", err)
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics, %w", err)
	}
	return nil
}
