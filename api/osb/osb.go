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

// Package osb contains the controllers of the Open Service Broker API
package osb

import (
	"context"
	"net/http"

	osbtypes "github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/web"
)

// Broker runs the lifecycle operations behind the OSB API
type Broker interface {
	GetCatalog(ctx context.Context) (*osbtypes.Catalog, error)

	CreateInstance(ctx context.Context, req *osbtypes.ProvisionRequest) (*osbtypes.ProvisionResponse, error)
	UpdateInstance(ctx context.Context, req *osbtypes.UpdateInstanceRequest) (*osbtypes.UpdateInstanceResponse, error)
	DeleteInstance(ctx context.Context, req *osbtypes.DeprovisionRequest) (*osbtypes.DeprovisionResponse, error)
	GetInstance(ctx context.Context, req *osbtypes.GetInstanceRequest) (*osbtypes.GetInstanceResponse, error)
	InstanceLastOperation(ctx context.Context, req *osbtypes.LastOperationRequest) (*osbtypes.LastOperationResponse, error)

	CreateBinding(ctx context.Context, req *osbtypes.BindRequest) (*osbtypes.BindResponse, error)
	GetBinding(ctx context.Context, req *osbtypes.GetBindingRequest) (*osbtypes.GetBindingResponse, error)
	DeleteBinding(ctx context.Context, req *osbtypes.UnbindRequest) (*osbtypes.UnbindResponse, error)
	BindingLastOperation(ctx context.Context, req *osbtypes.BindingLastOperationRequest) (*osbtypes.LastOperationResponse, error)
}

// Controller implements web.Controller by providing the OSB API routes
type Controller struct {
	Broker Broker
}

// NewController creates an OSB controller for the broker
func NewController(broker Broker) *Controller {
	return &Controller{Broker: broker}
}

// Routes implements web.Controller.Routes by providing the routes for the OSB API
func (c *Controller) Routes() []web.Route {
	return []web.Route{
		{Endpoint: web.Endpoint{Method: http.MethodGet, Path: web.CatalogURL}, Handler: c.getCatalog},

		{Endpoint: web.Endpoint{Method: http.MethodPut, Path: web.ServiceInstanceURL}, Handler: c.createInstance},
		{Endpoint: web.Endpoint{Method: http.MethodGet, Path: web.ServiceInstanceURL}, Handler: c.getInstance},
		{Endpoint: web.Endpoint{Method: http.MethodPatch, Path: web.ServiceInstanceURL}, Handler: c.updateInstance},
		{Endpoint: web.Endpoint{Method: http.MethodDelete, Path: web.ServiceInstanceURL}, Handler: c.deleteInstance},
		{Endpoint: web.Endpoint{Method: http.MethodGet, Path: web.ServiceInstanceLastOperationURL}, Handler: c.instanceLastOperation},

		{Endpoint: web.Endpoint{Method: http.MethodPut, Path: web.ServiceBindingURL}, Handler: c.createBinding},
		{Endpoint: web.Endpoint{Method: http.MethodGet, Path: web.ServiceBindingURL}, Handler: c.getBinding},
		{Endpoint: web.Endpoint{Method: http.MethodDelete, Path: web.ServiceBindingURL}, Handler: c.deleteBinding},
		{Endpoint: web.Endpoint{Method: http.MethodGet, Path: web.ServiceBindingLastOperationURL}, Handler: c.bindingLastOperation},
	}
}
