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

// Package memory contains in-memory reference provisioners. They keep service instances and bindings in
// process memory and are used by the broker binary and its end-to-end tests.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/gofrs/uuid"
)

// FailParameter is the request parameter which makes an asynchronous operation finish as failed
const FailParameter = "fail"

// Settings type to be loaded from the environment
type Settings struct {
	AsyncDelay time.Duration `mapstructure:"async_delay" description:"duration of asynchronous operations, 0 completes every operation synchronously"`
}

// DefaultSettings returns default values for the in-memory provisioners
func DefaultSettings() *Settings {
	return &Settings{}
}

// Validate validates the in-memory provisioner settings
func (s *Settings) Validate() error {
	if s.AsyncDelay < 0 {
		return fmt.Errorf("validate Settings: AsyncDelay must not be negative")
	}
	return nil
}

type instance struct {
	serviceID  string
	planID     string
	parameters map[string]interface{}
	dashboard  string
}

type binding struct {
	instanceID  string
	serviceID   string
	planID      string
	parameters  map[string]interface{}
	credentials map[string]interface{}
}

type operation struct {
	key     string
	started time.Time
	create  bool
	delete  bool
	fail    bool
	done    bool
}

// Broker keeps service instances in memory. It implements osb.InstanceProvisioner and osb.InstanceFetcher,
// the binding side is available through Bindings.
type Broker struct {
	mutex      sync.Mutex
	asyncDelay time.Duration
	now        func() time.Time

	instances  map[string]*instance
	bindings   map[string]*binding
	operations map[string]*operation
}

// NewBroker creates an in-memory broker. Operations that accept incomplete results take asyncDelay to finish,
// a zero delay makes every operation synchronous.
func NewBroker(settings *Settings) *Broker {
	return &Broker{
		asyncDelay: settings.AsyncDelay,
		now:        time.Now,
		instances:  make(map[string]*instance),
		bindings:   make(map[string]*binding),
		operations: make(map[string]*operation),
	}
}

// Bindings returns the binding provisioner backed by this broker
func (b *Broker) Bindings() *Bindings {
	return &Bindings{broker: b}
}

func bindingKey(instanceID, bindingID string) string {
	return instanceID + "/bindings/" + bindingID
}

func (b *Broker) async(acceptsIncomplete bool) (bool, error) {
	if b.asyncDelay == 0 {
		return false, nil
	}
	if !acceptsIncomplete {
		return false, osb.AsyncRequired()
	}
	return true, nil
}

func (b *Broker) startOperation(resource string, parameters map[string]interface{}, delete bool) (string, error) {
	key, err := uuid.NewV4()
	if err != nil {
		return "", osb.Internal(err)
	}
	fail, _ := parameters[FailParameter].(bool)
	b.operations[resource] = &operation{
		key:     key.String(),
		started: b.now(),
		delete:  delete,
		fail:    fail,
	}
	return key.String(), nil
}

// pending returns the unfinished operation of the resource
func (b *Broker) pending(resource string) *operation {
	if op, found := b.operations[resource]; found && !op.done && b.now().Sub(op.started) < b.asyncDelay {
		return op
	}
	return nil
}

func (b *Broker) checkConcurrency(resource string) error {
	if b.pending(resource) != nil {
		return osb.Concurrency()
	}
	return nil
}

// lastOperation resolves the state of the operation of the resource, finish is called once when the
// operation completes successfully
func (b *Broker) lastOperation(resource, operationKey string, exists bool, finish func()) (*osb.LastOperationResponse, error) {
	op, found := b.operations[resource]
	if !found {
		if !exists {
			return nil, osb.NotFound("%s not found", resource)
		}
		return &osb.LastOperationResponse{State: osb.StateSucceeded}, nil
	}
	if operationKey != "" && operationKey != op.key {
		return nil, osb.InvalidParameters("operation %s is not the last operation of %s", operationKey, resource)
	}
	if b.now().Sub(op.started) < b.asyncDelay {
		return &osb.LastOperationResponse{State: osb.StateInProgress, Description: "in progress"}, nil
	}
	if op.fail {
		op.done = true
		usable := !op.delete
		return &osb.LastOperationResponse{
			State:          osb.StateFailed,
			Description:    "operation failed as requested",
			InstanceUsable: &usable,
		}, nil
	}
	if !op.done {
		op.done = true
		finish()
	}
	return &osb.LastOperationResponse{State: osb.StateSucceeded, Description: "succeeded"}, nil
}

// Provision implements osb.InstanceProvisioner
func (b *Broker) Provision(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	dashboard := fmt.Sprintf("https://dashboard.example.com/instances/%s", req.InstanceID)
	if existing, found := b.instances[req.InstanceID]; found {
		if existing.serviceID != req.ServiceID || existing.planID != req.PlanID || !reflect.DeepEqual(existing.parameters, req.Parameters) {
			return nil, osb.AlreadyExists("instance %s already exists with different attributes", req.InstanceID)
		}
		if op := b.pending(req.InstanceID); op != nil && op.create {
			if !req.AcceptsIncomplete {
				return nil, osb.AsyncRequired()
			}
			return &osb.ProvisionResponse{Async: true, DashboardURL: existing.dashboard, OperationKey: op.key}, nil
		}
		return &osb.ProvisionResponse{InstanceExisted: true, DashboardURL: existing.dashboard}, nil
	}
	async, err := b.async(req.AcceptsIncomplete)
	if err != nil {
		return nil, err
	}

	b.instances[req.InstanceID] = &instance{
		serviceID:  req.ServiceID,
		planID:     req.PlanID,
		parameters: req.Parameters,
		dashboard:  dashboard,
	}
	log.C(ctx).Debugf("Created service instance %s of plan %s", req.InstanceID, req.PlanID)
	if !async {
		return &osb.ProvisionResponse{DashboardURL: dashboard}, nil
	}
	key, err := b.startOperation(req.InstanceID, req.Parameters, false)
	if err != nil {
		return nil, err
	}
	b.operations[req.InstanceID].create = true
	return &osb.ProvisionResponse{Async: true, DashboardURL: dashboard, OperationKey: key}, nil
}

// Update implements osb.InstanceProvisioner
func (b *Broker) Update(ctx context.Context, req *osb.UpdateInstanceRequest) (*osb.UpdateInstanceResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	existing, found := b.instances[req.InstanceID]
	if !found {
		return nil, osb.NotFound("instance %s not found", req.InstanceID)
	}
	if err := b.checkConcurrency(req.InstanceID); err != nil {
		return nil, err
	}
	async, err := b.async(req.AcceptsIncomplete)
	if err != nil {
		return nil, err
	}

	if req.PlanID != "" {
		existing.planID = req.PlanID
	}
	if req.Parameters != nil {
		existing.parameters = req.Parameters
	}
	log.C(ctx).Debugf("Updated service instance %s", req.InstanceID)
	if !async {
		return &osb.UpdateInstanceResponse{DashboardURL: existing.dashboard}, nil
	}
	key, err := b.startOperation(req.InstanceID, req.Parameters, false)
	if err != nil {
		return nil, err
	}
	return &osb.UpdateInstanceResponse{Async: true, DashboardURL: existing.dashboard, OperationKey: key}, nil
}

// Deprovision implements osb.InstanceProvisioner
func (b *Broker) Deprovision(ctx context.Context, req *osb.DeprovisionRequest) (*osb.DeprovisionResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, found := b.instances[req.InstanceID]; !found {
		return nil, osb.NotFound("instance %s not found", req.InstanceID)
	}
	if err := b.checkConcurrency(req.InstanceID); err != nil {
		return nil, err
	}
	async, err := b.async(req.AcceptsIncomplete)
	if err != nil {
		return nil, err
	}
	if !async {
		b.removeInstance(req.InstanceID)
		log.C(ctx).Debugf("Deleted service instance %s", req.InstanceID)
		return &osb.DeprovisionResponse{}, nil
	}
	key, err := b.startOperation(req.InstanceID, nil, true)
	if err != nil {
		return nil, err
	}
	return &osb.DeprovisionResponse{Async: true, OperationKey: key}, nil
}

func (b *Broker) removeInstance(instanceID string) {
	delete(b.instances, instanceID)
	delete(b.operations, instanceID)
	for key, binding := range b.bindings {
		if binding.instanceID == instanceID {
			delete(b.bindings, key)
			delete(b.operations, key)
		}
	}
}

// LastOperation implements osb.InstanceProvisioner
func (b *Broker) LastOperation(ctx context.Context, req *osb.LastOperationRequest) (*osb.LastOperationResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	_, exists := b.instances[req.InstanceID]
	op := b.operations[req.InstanceID]
	return b.lastOperation(req.InstanceID, req.OperationKey, exists, func() {
		if op.delete {
			// later polls of a finished deletion report the instance as gone
			b.removeInstance(req.InstanceID)
			log.C(ctx).Debugf("Deleted service instance %s", req.InstanceID)
		}
	})
}

// GetInstance implements osb.InstanceFetcher
func (b *Broker) GetInstance(_ context.Context, req *osb.GetInstanceRequest) (*osb.GetInstanceResponse, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	existing, found := b.instances[req.InstanceID]
	if !found {
		return nil, osb.NotFound("instance %s not found", req.InstanceID)
	}
	if op, found := b.operations[req.InstanceID]; found && !op.done && !op.delete {
		return nil, osb.Concurrency()
	}
	return &osb.GetInstanceResponse{
		ServiceID:    existing.serviceID,
		PlanID:       existing.planID,
		DashboardURL: existing.dashboard,
		Parameters:   existing.parameters,
	}, nil
}

// Bindings keeps the service bindings of a Broker. It implements osb.BindingProvisioner.
type Bindings struct {
	broker *Broker
}

// Bind implements osb.BindingProvisioner
func (bs *Bindings) Bind(ctx context.Context, req *osb.BindRequest) (*osb.BindResponse, error) {
	b := bs.broker
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, found := b.instances[req.InstanceID]; !found {
		return nil, osb.NotFound("instance %s not found", req.InstanceID)
	}
	key := bindingKey(req.InstanceID, req.BindingID)
	if existing, found := b.bindings[key]; found {
		if existing.serviceID == req.ServiceID && existing.planID == req.PlanID && reflect.DeepEqual(existing.parameters, req.Parameters) {
			return &osb.BindResponse{BindingExisted: true, Credentials: existing.credentials}, nil
		}
		return nil, osb.AlreadyExists("binding %s already exists with different attributes", req.BindingID)
	}

	password, err := uuid.NewV4()
	if err != nil {
		return nil, osb.Internal(err)
	}
	credentials := map[string]interface{}{
		"uri":      fmt.Sprintf("memory://%s/%s", req.InstanceID, req.BindingID),
		"username": req.BindingID,
		"password": password.String(),
	}
	b.bindings[key] = &binding{
		instanceID:  req.InstanceID,
		serviceID:   req.ServiceID,
		planID:      req.PlanID,
		parameters:  req.Parameters,
		credentials: credentials,
	}
	log.C(ctx).Debugf("Created service binding %s for instance %s", req.BindingID, req.InstanceID)

	// bindings complete synchronously unless the platform accepts incomplete results
	if b.asyncDelay == 0 || !req.AcceptsIncomplete {
		return &osb.BindResponse{Credentials: credentials}, nil
	}
	operationKey, err := b.startOperation(key, req.Parameters, false)
	if err != nil {
		return nil, err
	}
	return &osb.BindResponse{Async: true, OperationKey: operationKey}, nil
}

// GetBinding implements osb.BindingProvisioner
func (bs *Bindings) GetBinding(_ context.Context, req *osb.GetBindingRequest) (*osb.GetBindingResponse, error) {
	b := bs.broker
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := bindingKey(req.InstanceID, req.BindingID)
	existing, found := b.bindings[key]
	if !found {
		return nil, osb.NotFound("binding %s not found", req.BindingID)
	}
	if op, found := b.operations[key]; found && !op.done && !op.delete {
		return nil, osb.NotFound("binding %s is being created", req.BindingID)
	}
	return &osb.GetBindingResponse{
		Credentials: existing.credentials,
		Parameters:  existing.parameters,
	}, nil
}

// Unbind implements osb.BindingProvisioner
func (bs *Bindings) Unbind(ctx context.Context, req *osb.UnbindRequest) (*osb.UnbindResponse, error) {
	b := bs.broker
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := bindingKey(req.InstanceID, req.BindingID)
	if _, found := b.bindings[key]; !found {
		return nil, osb.NotFound("binding %s not found", req.BindingID)
	}
	if err := b.checkConcurrency(key); err != nil {
		return nil, err
	}
	if b.asyncDelay == 0 || !req.AcceptsIncomplete {
		delete(b.bindings, key)
		delete(b.operations, key)
		log.C(ctx).Debugf("Deleted service binding %s", req.BindingID)
		return &osb.UnbindResponse{}, nil
	}
	operationKey, err := b.startOperation(key, nil, true)
	if err != nil {
		return nil, err
	}
	return &osb.UnbindResponse{Async: true, OperationKey: operationKey}, nil
}

// LastOperation implements osb.BindingProvisioner
func (bs *Bindings) LastOperation(ctx context.Context, req *osb.BindingLastOperationRequest) (*osb.LastOperationResponse, error) {
	b := bs.broker
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key := bindingKey(req.InstanceID, req.BindingID)
	_, exists := b.bindings[key]
	op := b.operations[key]
	return b.lastOperation(key, req.OperationKey, exists, func() {
		if op.delete {
			delete(b.bindings, key)
			delete(b.operations, key)
			log.C(ctx).Debugf("Deleted service binding %s", req.BindingID)
		}
	})
}
