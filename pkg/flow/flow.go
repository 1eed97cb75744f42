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

import "github.com/Peripli/service-broker/pkg/osb"

// Flow is the ordered list of hooks of one lifecycle operation. A Flow is never changed after it is
// created, With returns a new Flow.
type Flow[Req, Resp any] struct {
	hooks []Hook[Req, Resp]
}

// NewFlow creates a flow running the hooks in the given order
func NewFlow[Req, Resp any](hooks ...Hook[Req, Resp]) Flow[Req, Resp] {
	return Flow[Req, Resp]{}.With(hooks...)
}

// With returns a flow running the hooks of f followed by the given hooks
func (f Flow[Req, Resp]) With(hooks ...Hook[Req, Resp]) Flow[Req, Resp] {
	combined := make([]Hook[Req, Resp], 0, len(f.hooks)+len(hooks))
	combined = append(combined, f.hooks...)
	for _, hook := range hooks {
		if hook != nil {
			combined = append(combined, hook)
		}
	}
	return Flow[Req, Resp]{hooks: combined}
}

// Hooks returns a copy of the hooks of the flow
func (f Flow[Req, Resp]) Hooks() []Hook[Req, Resp] {
	result := make([]Hook[Req, Resp], len(f.hooks))
	copy(result, f.hooks)
	return result
}

// Len returns the number of hooks in the flow
func (f Flow[Req, Resp]) Len() int {
	return len(f.hooks)
}

type (
	// CreateInstanceHook extends the create instance operation
	CreateInstanceHook = Hook[*osb.ProvisionRequest, *osb.ProvisionResponse]
	// UpdateInstanceHook extends the update instance operation
	UpdateInstanceHook = Hook[*osb.UpdateInstanceRequest, *osb.UpdateInstanceResponse]
	// DeleteInstanceHook extends the delete instance operation
	DeleteInstanceHook = Hook[*osb.DeprovisionRequest, *osb.DeprovisionResponse]
	// InstanceLastOperationHook extends the instance last operation poll. Its completion and error
	// stages run once for the terminal state of an asynchronous instance operation.
	InstanceLastOperationHook = Hook[*osb.LastOperationRequest, *osb.LastOperationResponse]
	// CreateBindingHook extends the create binding operation
	CreateBindingHook = Hook[*osb.BindRequest, *osb.BindResponse]
	// DeleteBindingHook extends the delete binding operation
	DeleteBindingHook = Hook[*osb.UnbindRequest, *osb.UnbindResponse]
	// BindingLastOperationHook extends the binding last operation poll. Its completion and error
	// stages run once for the terminal state of an asynchronous binding operation.
	BindingLastOperationHook = Hook[*osb.BindingLastOperationRequest, *osb.LastOperationResponse]
)

// Flows holds the flows of all lifecycle operations. Flows are assembled once with NewFlows.
type Flows struct {
	createInstance        Flow[*osb.ProvisionRequest, *osb.ProvisionResponse]
	updateInstance        Flow[*osb.UpdateInstanceRequest, *osb.UpdateInstanceResponse]
	deleteInstance        Flow[*osb.DeprovisionRequest, *osb.DeprovisionResponse]
	instanceLastOperation Flow[*osb.LastOperationRequest, *osb.LastOperationResponse]
	createBinding         Flow[*osb.BindRequest, *osb.BindResponse]
	deleteBinding         Flow[*osb.UnbindRequest, *osb.UnbindResponse]
	bindingLastOperation  Flow[*osb.BindingLastOperationRequest, *osb.LastOperationResponse]
}

// Registration adds hooks to the flows while they are assembled
type Registration func(flows *Flows)

// NewFlows assembles the flows from the registrations. Registrations are applied in order, so hooks
// of earlier registrations run before hooks of later ones.
func NewFlows(registrations ...Registration) *Flows {
	flows := &Flows{}
	for _, register := range registrations {
		if register != nil {
			register(flows)
		}
	}
	return flows
}

// OnCreateInstance registers hooks for the create instance operation
func OnCreateInstance(hooks ...CreateInstanceHook) Registration {
	return func(flows *Flows) {
		flows.createInstance = flows.createInstance.With(hooks...)
	}
}

// OnUpdateInstance registers hooks for the update instance operation
func OnUpdateInstance(hooks ...UpdateInstanceHook) Registration {
	return func(flows *Flows) {
		flows.updateInstance = flows.updateInstance.With(hooks...)
	}
}

// OnDeleteInstance registers hooks for the delete instance operation
func OnDeleteInstance(hooks ...DeleteInstanceHook) Registration {
	return func(flows *Flows) {
		flows.deleteInstance = flows.deleteInstance.With(hooks...)
	}
}

// OnInstanceLastOperation registers hooks for the instance last operation poll
func OnInstanceLastOperation(hooks ...InstanceLastOperationHook) Registration {
	return func(flows *Flows) {
		flows.instanceLastOperation = flows.instanceLastOperation.With(hooks...)
	}
}

// OnCreateBinding registers hooks for the create binding operation
func OnCreateBinding(hooks ...CreateBindingHook) Registration {
	return func(flows *Flows) {
		flows.createBinding = flows.createBinding.With(hooks...)
	}
}

// OnDeleteBinding registers hooks for the delete binding operation
func OnDeleteBinding(hooks ...DeleteBindingHook) Registration {
	return func(flows *Flows) {
		flows.deleteBinding = flows.deleteBinding.With(hooks...)
	}
}

// OnBindingLastOperation registers hooks for the binding last operation poll
func OnBindingLastOperation(hooks ...BindingLastOperationHook) Registration {
	return func(flows *Flows) {
		flows.bindingLastOperation = flows.bindingLastOperation.With(hooks...)
	}
}

func (f *Flows) CreateInstance() Flow[*osb.ProvisionRequest, *osb.ProvisionResponse] {
	return f.createInstance
}

func (f *Flows) UpdateInstance() Flow[*osb.UpdateInstanceRequest, *osb.UpdateInstanceResponse] {
	return f.updateInstance
}

func (f *Flows) DeleteInstance() Flow[*osb.DeprovisionRequest, *osb.DeprovisionResponse] {
	return f.deleteInstance
}

func (f *Flows) InstanceLastOperation() Flow[*osb.LastOperationRequest, *osb.LastOperationResponse] {
	return f.instanceLastOperation
}

func (f *Flows) CreateBinding() Flow[*osb.BindRequest, *osb.BindResponse] {
	return f.createBinding
}

func (f *Flows) DeleteBinding() Flow[*osb.UnbindRequest, *osb.UnbindResponse] {
	return f.deleteBinding
}

func (f *Flows) BindingLastOperation() Flow[*osb.BindingLastOperationRequest, *osb.LastOperationResponse] {
	return f.bindingLastOperation
}
