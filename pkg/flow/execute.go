/*
 * Copyright 2018 The Service Manager Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/Peripli/service-broker/pkg/osb"
)

// Action is the provisioning contract call wrapped by a flow. It may block until the backing service
// answers.
type Action[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Execution describes one run of a flow
type Execution struct {
	Operation osb.Operation
	// Reporter receives the failures of completion and error hooks. Defaults to a LogReporter.
	Reporter FaultReporter
	Metrics  *Metrics
}

func (e Execution) reporter() FaultReporter {
	if e.Reporter == nil {
		return &LogReporter{Metrics: e.Metrics}
	}
	return e.Reporter
}

// Execute runs the action of a lifecycle operation inside the flow. The initialization hooks run
// first, in order, and the first failing one aborts the operation. On success the completion hooks
// run, on failure the error hooks run with the identical error. Failures of completion and error
// hooks are reported as faults and never change the returned result.
func Execute[Req, Resp any](ctx context.Context, exec Execution, f Flow[Req, Resp], req Req, action Action[Req, Resp]) (Resp, error) {
	var zero Resp
	if err := runInitialize(ctx, f, req); err != nil {
		runError(ctx, exec, f, req, err)
		return zero, err
	}

	started := time.Now()
	resp, err := action(ctx, req)
	exec.Metrics.observeAction(exec.Operation, started)
	if err != nil {
		runError(ctx, exec, f, req, err)
		return zero, err
	}

	runComplete(ctx, exec, f, req, resp)
	return resp, nil
}

func runInitialize[Req, Resp any](ctx context.Context, f Flow[Req, Resp], req Req) error {
	for _, hook := range f.hooks {
		hook := hook
		if err := safeCall(func() error { return hook.Initialize(ctx, req) }); err != nil {
			return err
		}
	}
	return nil
}

// runComplete runs the completion hooks on a context that is not cancelled with the request
func runComplete[Req, Resp any](ctx context.Context, exec Execution, f Flow[Req, Resp], req Req, resp Resp) {
	detached := context.WithoutCancel(ctx)
	for _, hook := range f.hooks {
		hook := hook
		if err := safeCall(func() error { return hook.Complete(detached, req, resp) }); err != nil {
			exec.reporter().ReportFault(detached, Fault{
				Operation: exec.Operation,
				Stage:     StageComplete,
				Hook:      hookName(hook),
				Err:       err,
			})
		}
	}
}

// runError runs the error hooks on a context that is not cancelled with the request
func runError[Req, Resp any](ctx context.Context, exec Execution, f Flow[Req, Resp], req Req, failure error) {
	detached := context.WithoutCancel(ctx)
	for _, hook := range f.hooks {
		hook := hook
		if err := safeCall(func() error { return hook.Error(detached, req, failure) }); err != nil {
			exec.reporter().ReportFault(detached, Fault{
				Operation: exec.Operation,
				Stage:     StageError,
				Hook:      hookName(hook),
				Err:       err,
			})
		}
	}
}

func safeCall(call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return call()
}
