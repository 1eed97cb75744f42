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
	"errors"
	"time"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/storage"
)

// Coordinator serves the last operation polls of asynchronous operations. The provisioner's last
// operation query is the source of truth. The completion or error hooks of the last operation flows
// run once for the terminal state of an operation, the first time it is polled. Later polls of the
// same terminal state only return it.
type Coordinator struct {
	flows     *Flows
	instances osb.InstanceProvisioner
	bindings  osb.BindingProvisioner
	reported  storage.ReportedStore
	reporter  FaultReporter
	metrics   *Metrics
}

// PollInstance polls the last operation of a service instance
func (c *Coordinator) PollInstance(ctx context.Context, req *osb.LastOperationRequest) (*osb.LastOperationResponse, error) {
	key := storage.ReportKey{
		Resource:  storage.InstanceResource(req.InstanceID),
		Operation: req.OperationKey,
	}
	return poll(ctx, c, c.execution(osb.OperationInstanceLastOperation), c.flows.InstanceLastOperation(), req, key, c.instances.LastOperation)
}

// PollBinding polls the last operation of a service binding
func (c *Coordinator) PollBinding(ctx context.Context, req *osb.BindingLastOperationRequest) (*osb.LastOperationResponse, error) {
	if c.bindings == nil {
		return nil, osb.InvalidParameters("service bindings are not supported")
	}
	key := storage.ReportKey{
		Resource:  storage.BindingResource(req.InstanceID, req.BindingID),
		Operation: req.OperationKey,
	}
	return poll(ctx, c, c.execution(osb.OperationBindingLastOperation), c.flows.BindingLastOperation(), req, key, c.bindings.LastOperation)
}

func (c *Coordinator) execution(op osb.Operation) Execution {
	return Execution{
		Operation: op,
		Reporter:  c.reporter,
		Metrics:   c.metrics,
	}
}

func poll[Req any](ctx context.Context, c *Coordinator, exec Execution, f Flow[Req, *osb.LastOperationResponse], req Req, key storage.ReportKey, query Action[Req, *osb.LastOperationResponse]) (*osb.LastOperationResponse, error) {
	if err := runInitialize(ctx, f, req); err != nil {
		runError(ctx, exec, f, req, err)
		return nil, err
	}

	started := time.Now()
	resp, err := query(ctx, req)
	exec.Metrics.observeAction(exec.Operation, started)
	if err == nil && resp == nil {
		err = osb.Internal(errors.New("last operation query returned no state"))
	}
	if err != nil {
		runError(ctx, exec, f, req, err)
		return nil, err
	}

	if !osb.IsTerminal(resp.State) {
		return resp, nil
	}

	detached := context.WithoutCancel(ctx)
	first, err := c.reported.MarkReported(detached, key)
	if err != nil {
		exec.reporter().ReportFault(detached, Fault{Operation: exec.Operation, Stage: StageReport, Err: err})
		return resp, nil
	}
	if !first {
		log.C(ctx).Debugf("Terminal state %s of %s was already reported", resp.State, key)
		return resp, nil
	}

	exec.Metrics.observeTerminalState(exec.Operation, resp.State)
	if resp.State == osb.StateSucceeded {
		runComplete(detached, exec, f, req, resp)
	} else {
		runError(detached, exec, f, req, osb.NewOperationFailedError(resp))
	}
	return resp, nil
}
