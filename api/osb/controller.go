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

import (
	"net/http"
	"strconv"

	"github.com/Peripli/service-broker/pkg/log"
	osbtypes "github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/util"
	"github.com/Peripli/service-broker/pkg/web"
)

const (
	queryAcceptsIncomplete = "accepts_incomplete"
	queryServiceID         = "service_id"
	queryPlanID            = "plan_id"
	queryOperation         = "operation"
)

func (c *Controller) getCatalog(req *web.Request) (*web.Response, error) {
	catalog, err := c.Broker.GetCatalog(req.Context())
	if err != nil {
		return nil, osbtypes.ToHTTPError(osbtypes.OperationGetCatalog, err)
	}
	return util.NewJSONResponse(http.StatusOK, catalog)
}

func (c *Controller) createInstance(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationCreateInstance
	provisionRequest := &osbtypes.ProvisionRequest{}
	if err := util.BytesToObject(req.Body, provisionRequest); err != nil {
		return nil, err
	}
	metadata, acceptsIncomplete, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	provisionRequest.RequestMetadata = metadata
	provisionRequest.InstanceID = req.PathParams[web.PathParamInstanceID]
	provisionRequest.AcceptsIncomplete = acceptsIncomplete

	log.C(req.Context()).Debugf("Provisioning service instance %s of plan %s", provisionRequest.InstanceID, provisionRequest.PlanID)
	resp, err := c.Broker.CreateInstance(req.Context(), provisionRequest)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	status := http.StatusCreated
	switch {
	case resp.Async:
		status = http.StatusAccepted
	case resp.InstanceExisted:
		status = http.StatusOK
	}
	return util.NewJSONResponse(status, resp)
}

func (c *Controller) updateInstance(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationUpdateInstance
	updateRequest := &osbtypes.UpdateInstanceRequest{}
	if err := util.BytesToObject(req.Body, updateRequest); err != nil {
		return nil, err
	}
	metadata, acceptsIncomplete, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	updateRequest.RequestMetadata = metadata
	updateRequest.InstanceID = req.PathParams[web.PathParamInstanceID]
	updateRequest.AcceptsIncomplete = acceptsIncomplete

	resp, err := c.Broker.UpdateInstance(req.Context(), updateRequest)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(asyncStatus(resp.Async), resp)
}

func (c *Controller) deleteInstance(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationDeleteInstance
	metadata, acceptsIncomplete, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	serviceID, planID, err := requiredServiceAndPlan(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}

	resp, err := c.Broker.DeleteInstance(req.Context(), &osbtypes.DeprovisionRequest{
		RequestMetadata:   metadata,
		InstanceID:        req.PathParams[web.PathParamInstanceID],
		ServiceID:         serviceID,
		PlanID:            planID,
		AcceptsIncomplete: acceptsIncomplete,
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(asyncStatus(resp.Async), resp)
}

func (c *Controller) getInstance(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationGetInstance
	metadata, _, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	query := req.URL.Query()

	resp, err := c.Broker.GetInstance(req.Context(), &osbtypes.GetInstanceRequest{
		RequestMetadata: metadata,
		InstanceID:      req.PathParams[web.PathParamInstanceID],
		ServiceID:       query.Get(queryServiceID),
		PlanID:          query.Get(queryPlanID),
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(http.StatusOK, resp)
}

func (c *Controller) instanceLastOperation(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationInstanceLastOperation
	metadata, _, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	query := req.URL.Query()

	resp, err := c.Broker.InstanceLastOperation(req.Context(), &osbtypes.LastOperationRequest{
		RequestMetadata: metadata,
		InstanceID:      req.PathParams[web.PathParamInstanceID],
		ServiceID:       query.Get(queryServiceID),
		PlanID:          query.Get(queryPlanID),
		OperationKey:    query.Get(queryOperation),
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(http.StatusOK, resp)
}

func (c *Controller) createBinding(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationCreateBinding
	bindRequest := &osbtypes.BindRequest{}
	if err := util.BytesToObject(req.Body, bindRequest); err != nil {
		return nil, err
	}
	metadata, acceptsIncomplete, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	bindRequest.RequestMetadata = metadata
	bindRequest.InstanceID = req.PathParams[web.PathParamInstanceID]
	bindRequest.BindingID = req.PathParams[web.PathParamBindingID]
	bindRequest.AcceptsIncomplete = acceptsIncomplete
	if bindRequest.AppGUID == "" && bindRequest.BindResource != nil {
		bindRequest.AppGUID = bindRequest.BindResource.AppGUID
	}

	resp, err := c.Broker.CreateBinding(req.Context(), bindRequest)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	status := http.StatusCreated
	switch {
	case resp.Async:
		status = http.StatusAccepted
	case resp.BindingExisted:
		status = http.StatusOK
	}
	return util.NewJSONResponse(status, resp)
}

func (c *Controller) getBinding(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationGetBinding
	metadata, _, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	query := req.URL.Query()

	resp, err := c.Broker.GetBinding(req.Context(), &osbtypes.GetBindingRequest{
		RequestMetadata: metadata,
		InstanceID:      req.PathParams[web.PathParamInstanceID],
		BindingID:       req.PathParams[web.PathParamBindingID],
		ServiceID:       query.Get(queryServiceID),
		PlanID:          query.Get(queryPlanID),
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(http.StatusOK, resp)
}

func (c *Controller) deleteBinding(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationDeleteBinding
	metadata, acceptsIncomplete, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	serviceID, planID, err := requiredServiceAndPlan(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}

	resp, err := c.Broker.DeleteBinding(req.Context(), &osbtypes.UnbindRequest{
		RequestMetadata:   metadata,
		InstanceID:        req.PathParams[web.PathParamInstanceID],
		BindingID:         req.PathParams[web.PathParamBindingID],
		ServiceID:         serviceID,
		PlanID:            planID,
		AcceptsIncomplete: acceptsIncomplete,
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(asyncStatus(resp.Async), resp)
}

func (c *Controller) bindingLastOperation(req *web.Request) (*web.Response, error) {
	op := osbtypes.OperationBindingLastOperation
	metadata, _, err := commonParameters(req)
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	query := req.URL.Query()

	resp, err := c.Broker.BindingLastOperation(req.Context(), &osbtypes.BindingLastOperationRequest{
		RequestMetadata: metadata,
		InstanceID:      req.PathParams[web.PathParamInstanceID],
		BindingID:       req.PathParams[web.PathParamBindingID],
		ServiceID:       query.Get(queryServiceID),
		PlanID:          query.Get(queryPlanID),
		OperationKey:    query.Get(queryOperation),
	})
	if err != nil {
		return nil, osbtypes.ToHTTPError(op, err)
	}
	return util.NewJSONResponse(http.StatusOK, resp)
}

// commonParameters reads the protocol headers and the accepts_incomplete query parameter
func commonParameters(req *web.Request) (osbtypes.RequestMetadata, bool, error) {
	metadata := osbtypes.RequestMetadata{
		APIVersion:      req.Header.Get(osbtypes.HeaderAPIVersion),
		RequestIdentity: req.Header.Get(osbtypes.HeaderRequestIdentity),
	}
	identity, err := osbtypes.ParseOriginatingIdentity(req.Header.Get(osbtypes.HeaderOriginatingIdentity))
	if err != nil {
		return metadata, false, err
	}
	metadata.OriginatingIdentity = identity

	acceptsIncomplete := false
	if value := req.URL.Query().Get(queryAcceptsIncomplete); value != "" {
		acceptsIncomplete, err = strconv.ParseBool(value)
		if err != nil {
			return metadata, false, osbtypes.InvalidParameters("%s must be a boolean", queryAcceptsIncomplete)
		}
	}
	return metadata, acceptsIncomplete, nil
}

func requiredServiceAndPlan(req *web.Request) (string, string, error) {
	query := req.URL.Query()
	serviceID := query.Get(queryServiceID)
	if serviceID == "" {
		return "", "", osbtypes.InvalidParameters("%s query parameter is required", queryServiceID)
	}
	planID := query.Get(queryPlanID)
	if planID == "" {
		return "", "", osbtypes.InvalidParameters("%s query parameter is required", queryPlanID)
	}
	return serviceID, planID, nil
}

func asyncStatus(async bool) int {
	if async {
		return http.StatusAccepted
	}
	return http.StatusOK
}
