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
	"fmt"

	"github.com/Peripli/service-broker/pkg/catalog"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/storage"
	osbc "github.com/kubernetes-sigs/go-open-service-broker-client/v2"
)

// EngineOptions are the collaborators of the Engine
type EngineOptions struct {
	Flows     *Flows
	Catalog   osb.CatalogProvider
	Instances osb.InstanceProvisioner
	// Bindings is optional, without it binding operations are rejected
	Bindings osb.BindingProvisioner
	// Reported defaults to an in-memory store
	Reported storage.ReportedStore
	Reporter FaultReporter
	Metrics  *Metrics
}

// Engine runs the lifecycle operations of the broker through their flows
type Engine struct {
	flows       *Flows
	catalog     osb.CatalogProvider
	instances   osb.InstanceProvisioner
	bindings    osb.BindingProvisioner
	reported    storage.ReportedStore
	reporter    FaultReporter
	metrics     *Metrics
	coordinator *Coordinator
}

// NewEngine creates an engine from the options
func NewEngine(options EngineOptions) (*Engine, error) {
	if options.Catalog == nil {
		return nil, errors.New("a catalog provider is required")
	}
	if options.Instances == nil {
		return nil, errors.New("an instance provisioner is required")
	}
	if options.Flows == nil {
		options.Flows = NewFlows()
	}
	if options.Reported == nil {
		options.Reported = storage.NewMemoryStore(storage.DefaultSettings().Retention)
	}
	if options.Reporter == nil {
		options.Reporter = &LogReporter{Metrics: options.Metrics}
	}

	e := &Engine{
		flows:     options.Flows,
		catalog:   options.Catalog,
		instances: options.Instances,
		bindings:  options.Bindings,
		reported:  options.Reported,
		reporter:  options.Reporter,
		metrics:   options.Metrics,
	}
	e.coordinator = &Coordinator{
		flows:     e.flows,
		instances: e.instances,
		bindings:  e.bindings,
		reported:  e.reported,
		reporter:  e.reporter,
		metrics:   e.metrics,
	}
	return e, nil
}

// Coordinator returns the coordinator serving the last operation polls of the engine
func (e *Engine) Coordinator() *Coordinator {
	return e.coordinator
}

func (e *Engine) execution(op osb.Operation) Execution {
	return Execution{
		Operation: op,
		Reporter:  e.reporter,
		Metrics:   e.metrics,
	}
}

func (e *Engine) observe(op osb.Operation, err error, async bool) {
	switch {
	case err != nil:
		e.metrics.observeOperation(op, OutcomeFailed)
	case async:
		e.metrics.observeOperation(op, OutcomeAsync)
	default:
		e.metrics.observeOperation(op, OutcomeSucceeded)
	}
}

// GetCatalog returns the catalog advertised by the broker
func (e *Engine) GetCatalog(ctx context.Context) (*osb.Catalog, error) {
	result, err := e.catalog.GetCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return &osb.Catalog{Services: []osbc.Service{}}, nil
	}
	return result, nil
}

func (e *Engine) findPlan(ctx context.Context, serviceID, planID string) (*osbc.Service, *osbc.Plan, error) {
	current, err := e.GetCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	return catalog.FindPlan(current, serviceID, planID)
}

// clearReported forgets the reported terminal states of the resource, so that the terminal state of
// the asynchronous operation just accepted is reported
func (e *Engine) clearReported(ctx context.Context, op osb.Operation, resource string) {
	if err := e.reported.Clear(ctx, resource); err != nil {
		e.reporter.ReportFault(ctx, Fault{Operation: op, Stage: StageReport, Err: err})
	}
}

// acceptAsync clears the reported terminal states of an accepted asynchronous operation. Provisioners
// reject requests without accepts_incomplete before starting work; an asynchronous answer to such a
// request is an operation that nobody will poll, it is reported as a fault and rejected.
func (e *Engine) acceptAsync(ctx context.Context, op osb.Operation, resource string, acceptsIncomplete bool, operationKey string) error {
	if !acceptsIncomplete {
		e.reporter.ReportFault(ctx, Fault{
			Operation: op,
			Stage:     StageAction,
			Err:       fmt.Errorf("asynchronous operation %q of %s was started for a request that does not accept incomplete results and has no owner", operationKey, resource),
		})
		return osb.AsyncRequired()
	}
	e.clearReported(ctx, op, resource)
	return nil
}

// CreateInstance provisions a service instance
func (e *Engine) CreateInstance(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
	exec := e.execution(osb.OperationCreateInstance)
	if _, _, err := e.findPlan(ctx, req.ServiceID, req.PlanID); err != nil {
		e.observe(exec.Operation, err, false)
		return nil, err
	}

	resp, err := Execute(ctx, exec, e.flows.CreateInstance(), req, func(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
		resp, err := e.instances.Provision(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &osb.ProvisionResponse{}
		}
		if resp.Async {
			if err := e.acceptAsync(ctx, exec.Operation, storage.InstanceResource(req.InstanceID), req.AcceptsIncomplete, resp.OperationKey); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	e.observe(exec.Operation, err, err == nil && resp.Async)
	return resp, err
}

// UpdateInstance updates a service instance. Changing the plan is rejected for services whose plans
// are not updatable.
func (e *Engine) UpdateInstance(ctx context.Context, req *osb.UpdateInstanceRequest) (*osb.UpdateInstanceResponse, error) {
	exec := e.execution(osb.OperationUpdateInstance)
	service, _, err := e.findPlan(ctx, req.ServiceID, req.PlanID)
	if err == nil && planChanged(req) && !catalog.PlanUpdatable(service) {
		err = osb.UpdateNotSupported("service %s does not support changing the plan of its instances", service.Name)
	}
	if err != nil {
		e.observe(exec.Operation, err, false)
		return nil, err
	}

	resp, err := Execute(ctx, exec, e.flows.UpdateInstance(), req, func(ctx context.Context, req *osb.UpdateInstanceRequest) (*osb.UpdateInstanceResponse, error) {
		resp, err := e.instances.Update(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &osb.UpdateInstanceResponse{}
		}
		if resp.Async {
			if err := e.acceptAsync(ctx, exec.Operation, storage.InstanceResource(req.InstanceID), req.AcceptsIncomplete, resp.OperationKey); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	e.observe(exec.Operation, err, err == nil && resp.Async)
	return resp, err
}

func planChanged(req *osb.UpdateInstanceRequest) bool {
	if req.PlanID == "" || req.PreviousValues == nil || req.PreviousValues.PlanID == "" {
		return false
	}
	return req.PlanID != req.PreviousValues.PlanID
}

// DeleteInstance deprovisions a service instance
func (e *Engine) DeleteInstance(ctx context.Context, req *osb.DeprovisionRequest) (*osb.DeprovisionResponse, error) {
	exec := e.execution(osb.OperationDeleteInstance)
	resp, err := Execute(ctx, exec, e.flows.DeleteInstance(), req, func(ctx context.Context, req *osb.DeprovisionRequest) (*osb.DeprovisionResponse, error) {
		resp, err := e.instances.Deprovision(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &osb.DeprovisionResponse{}
		}
		if resp.Async {
			if err := e.acceptAsync(ctx, exec.Operation, storage.InstanceResource(req.InstanceID), req.AcceptsIncomplete, resp.OperationKey); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	e.observe(exec.Operation, err, err == nil && resp.Async)
	return resp, err
}

// GetInstance fetches a service instance if the instance provisioner supports it
func (e *Engine) GetInstance(ctx context.Context, req *osb.GetInstanceRequest) (*osb.GetInstanceResponse, error) {
	fetcher, ok := e.instances.(osb.InstanceFetcher)
	if !ok {
		err := osb.NotFound("fetching service instances is not supported")
		e.observe(osb.OperationGetInstance, err, false)
		return nil, err
	}
	resp, err := fetcher.GetInstance(ctx, req)
	if err == nil && resp == nil {
		err = osb.NotFound("service instance %s not found", req.InstanceID)
	}
	e.observe(osb.OperationGetInstance, err, false)
	return resp, err
}

// InstanceLastOperation polls the last operation of a service instance
func (e *Engine) InstanceLastOperation(ctx context.Context, req *osb.LastOperationRequest) (*osb.LastOperationResponse, error) {
	resp, err := e.coordinator.PollInstance(ctx, req)
	e.observe(osb.OperationInstanceLastOperation, err, false)
	return resp, err
}

func (e *Engine) bindingsSupported() error {
	if e.bindings == nil {
		return osb.InvalidParameters("service bindings are not supported")
	}
	return nil
}

// CreateBinding creates a service binding. Plans that are not bindable are rejected.
func (e *Engine) CreateBinding(ctx context.Context, req *osb.BindRequest) (*osb.BindResponse, error) {
	exec := e.execution(osb.OperationCreateBinding)
	err := e.bindingsSupported()
	if err == nil {
		var service *osbc.Service
		var plan *osbc.Plan
		service, plan, err = e.findPlan(ctx, req.ServiceID, req.PlanID)
		if err == nil && !catalog.Bindable(service, plan) {
			err = osb.InvalidParameters("plan %s of service %s is not bindable", req.PlanID, service.Name)
		}
	}
	if err != nil {
		e.observe(exec.Operation, err, false)
		return nil, err
	}

	resp, err := Execute(ctx, exec, e.flows.CreateBinding(), req, func(ctx context.Context, req *osb.BindRequest) (*osb.BindResponse, error) {
		resp, err := e.bindings.Bind(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &osb.BindResponse{}
		}
		if resp.Async {
			if err := e.acceptAsync(ctx, exec.Operation, storage.BindingResource(req.InstanceID, req.BindingID), req.AcceptsIncomplete, resp.OperationKey); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	e.observe(exec.Operation, err, err == nil && resp.Async)
	return resp, err
}

// GetBinding fetches a service binding
func (e *Engine) GetBinding(ctx context.Context, req *osb.GetBindingRequest) (*osb.GetBindingResponse, error) {
	if err := e.bindingsSupported(); err != nil {
		e.observe(osb.OperationGetBinding, err, false)
		return nil, err
	}
	resp, err := e.bindings.GetBinding(ctx, req)
	if err == nil && resp == nil {
		err = osb.NotFound("service binding %s not found", req.BindingID)
	}
	e.observe(osb.OperationGetBinding, err, false)
	return resp, err
}

// DeleteBinding deletes a service binding
func (e *Engine) DeleteBinding(ctx context.Context, req *osb.UnbindRequest) (*osb.UnbindResponse, error) {
	exec := e.execution(osb.OperationDeleteBinding)
	if err := e.bindingsSupported(); err != nil {
		e.observe(exec.Operation, err, false)
		return nil, err
	}

	resp, err := Execute(ctx, exec, e.flows.DeleteBinding(), req, func(ctx context.Context, req *osb.UnbindRequest) (*osb.UnbindResponse, error) {
		resp, err := e.bindings.Unbind(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = &osb.UnbindResponse{}
		}
		if resp.Async {
			if err := e.acceptAsync(ctx, exec.Operation, storage.BindingResource(req.InstanceID, req.BindingID), req.AcceptsIncomplete, resp.OperationKey); err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	e.observe(exec.Operation, err, err == nil && resp.Async)
	return resp, err
}

// BindingLastOperation polls the last operation of a service binding
func (e *Engine) BindingLastOperation(ctx context.Context, req *osb.BindingLastOperationRequest) (*osb.LastOperationResponse, error) {
	if err := e.bindingsSupported(); err != nil {
		e.observe(osb.OperationBindingLastOperation, err, false)
		return nil, err
	}
	resp, err := e.coordinator.PollBinding(ctx, req)
	e.observe(osb.OperationBindingLastOperation, err, false)
	return resp, err
}
