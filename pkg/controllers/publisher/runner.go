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

package publisher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	awserrors "github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/errors"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/metrics"
	"github.com/aws-samples/deploy-airflow-on-ecs-fargate/pkg/utils/log"
)

// livenessPeriods is how many periods may pass without a successful cycle before the runner reports unhealthy
const livenessPeriods = 3

// Runner publishes on a fixed period until the context is cancelled or too many cycles fail in a row.
type Runner struct {
	publisher              Publisher
	period                 time.Duration
	maxConsecutiveFailures int
	recorder               *metrics.Recorder
	now                    func() time.Time

	mu                  sync.Mutex
	started             time.Time
	lastSuccess         time.Time
	consecutiveFailures int

	stop chan error
}

type RunnerOption func(*Runner)

func WithRecorder(recorder *metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		r.recorder = recorder
	}
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

func NewRunner(publisher Publisher, period time.Duration, maxConsecutiveFailures int, opts ...RunnerOption) *Runner {
	r := &Runner{
		publisher:              publisher,
		period:                 period,
		maxConsecutiveFailures: maxConsecutiveFailures,
		now:                    time.Now,
		stop:                   make(chan error, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start runs the first cycle immediately and then one cycle per period. It blocks until the context is
// cancelled, returning nil, or until more than maxConsecutiveFailures cycles failed, returning the last error.
func (r *Runner) Start(ctx context.Context) error {
	ctx = log.WithLogger(ctx, log.FromContext(ctx).With("publisher", r.publisher.Name()))
	logger := log.Logr(ctx)

	r.mu.Lock()
	r.started = r.now()
	r.mu.Unlock()

	c := cron.New(cron.WithLogger(logger))
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() { r.cycle(ctx) }))
	c.Schedule(cron.Every(r.period), job)

	log.FromContext(ctx).With("period", r.period).Info("starting publisher")
	job.Run()
	c.Start()

	var err error
	select {
	case <-ctx.Done():
	case err = <-r.stop:
	}
	<-c.Stop().Done()
	log.FromContext(ctx).Info("stopped publisher")
	return err
}

func (r *Runner) cycle(ctx context.Context) {
	start := r.now()
	err := r.publish(ctx)
	if r.recorder != nil {
		r.recorder.ObserveCycle(r.publisher.Name(), r.now().Sub(start), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.lastSuccess = r.now()
		r.consecutiveFailures = 0
		r.recordFailures()
		return
	}
	if ctx.Err() != nil {
		return
	}
	r.consecutiveFailures++
	r.recordFailures()
	logger := log.FromContext(ctx).With("consecutive-failures", r.consecutiveFailures)
	if awserrors.IsAccessDenied(err) {
		logger = logger.With("hint", "the task role must allow cloudwatch:PutMetricData, cloudwatch:GetMetricData and ecs:DescribeServices")
	}
	logger.Errorw("failed publish cycle", zap.Error(err))
	if r.consecutiveFailures > r.maxConsecutiveFailures {
		select {
		case r.stop <- fmt.Errorf("publisher %s failed %d consecutive cycles, %w", r.publisher.Name(), r.consecutiveFailures, err):
		default:
		}
	}
}

// publish turns a panicking cycle into a failed one so it counts against maxConsecutiveFailures
func (r *Runner) publish(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic in publisher %s, %v", r.publisher.Name(), p)
		}
	}()
	return r.publisher.Publish(ctx)
}

func (r *Runner) recordFailures() {
	if r.recorder != nil {
		r.recorder.SetConsecutiveFailures(r.publisher.Name(), r.consecutiveFailures)
	}
}

// LivenessProbe fails once no cycle has succeeded for several periods
func (r *Runner) LivenessProbe(_ *http.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() {
		return nil
	}
	last := r.lastSuccess
	if last.IsZero() {
		last = r.started
	}
	if since := r.now().Sub(last); since > livenessPeriods*r.period {
		return fmt.Errorf("no successful %s cycle for %s", r.publisher.Name(), since.Round(time.Second))
	}
	return nil
}
