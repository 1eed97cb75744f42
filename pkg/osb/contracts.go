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

package osb

import "context"

// CatalogProvider provides the catalog advertised by the broker
type CatalogProvider interface {
	GetCatalog(ctx context.Context) (*Catalog, error)
}

// InstanceProvisioner manages service instances. Implementations may block until the backing
// service responds; returning a response with Async set reports that the operation continues
// in the background and its state is available through LastOperation.
//
// Only requests with AcceptsIncomplete may be answered asynchronously. A provisioner that can only
// complete a request in the background must return AsyncRequired before starting any work.
type InstanceProvisioner interface {
	Provision(ctx context.Context, req *ProvisionRequest) (*ProvisionResponse, error)
	Update(ctx context.Context, req *UpdateInstanceRequest) (*UpdateInstanceResponse, error)
	Deprovision(ctx context.Context, req *DeprovisionRequest) (*DeprovisionResponse, error)
	LastOperation(ctx context.Context, req *LastOperationRequest) (*LastOperationResponse, error)
}

// InstanceFetcher is implemented by instance provisioners that support fetching service instances
type InstanceFetcher interface {
	GetInstance(ctx context.Context, req *GetInstanceRequest) (*GetInstanceResponse, error)
}

// BindingProvisioner manages service bindings. The asynchronous contract of InstanceProvisioner
// applies: without AcceptsIncomplete a binding request either completes synchronously or fails
// with AsyncRequired before any work is started.
type BindingProvisioner interface {
	Bind(ctx context.Context, req *BindRequest) (*BindResponse, error)
	GetBinding(ctx context.Context, req *GetBindingRequest) (*GetBindingResponse, error)
	Unbind(ctx context.Context, req *UnbindRequest) (*UnbindResponse, error)
	LastOperation(ctx context.Context, req *BindingLastOperationRequest) (*LastOperationResponse, error)
}
