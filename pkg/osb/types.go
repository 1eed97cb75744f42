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

// Package osb contains the Open Service Broker protocol model of the broker: the lifecycle requests and
// responses, the provisioning contracts implemented by broker authors, the failure taxonomy, the
// API version gate and the mapping of failures to protocol responses.
package osb

import (
	"fmt"

	osbc "github.com/kubernetes-sigs/go-open-service-broker-client/v2"
)

// OperationState is the state of an asynchronous operation as reported by the last operation endpoints
type OperationState = osbc.LastOperationState

const (
	// StateInProgress means that the operation is still running
	StateInProgress = osbc.StateInProgress
	// StateSucceeded means that the operation finished successfully
	StateSucceeded = osbc.StateSucceeded
	// StateFailed means that the operation finished with a failure
	StateFailed = osbc.StateFailed
)

// IsTerminal returns true for the states after which the operation will not change anymore
func IsTerminal(state OperationState) bool {
	return state == StateSucceeded || state == StateFailed
}

// Catalog is the broker's advertised list of services and plans
type Catalog = osbc.CatalogResponse

// MaintenanceInfo describes the maintenance version of a service instance
type MaintenanceInfo struct {
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// RequestMetadata carries the protocol headers of a lifecycle request
type RequestMetadata struct {
	// APIVersion is the value of the X-Broker-API-Version header
	APIVersion string `json:"-"`
	// OriginatingIdentity is the parsed X-Broker-API-Originating-Identity header, nil when absent
	OriginatingIdentity *OriginatingIdentity `json:"-"`
	// RequestIdentity is the value of the X-Broker-API-Request-Identity header
	RequestIdentity string `json:"-"`
}

// ProvisionRequest is a request to create a service instance
type ProvisionRequest struct {
	RequestMetadata

	InstanceID        string                 `json:"-"`
	AcceptsIncomplete bool                   `json:"-"`
	ServiceID         string                 `json:"service_id"`
	PlanID            string                 `json:"plan_id"`
	OrganizationGUID  string                 `json:"organization_guid,omitempty"`
	SpaceGUID         string                 `json:"space_guid,omitempty"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Context           map[string]interface{} `json:"context,omitempty"`
	MaintenanceInfo   *MaintenanceInfo       `json:"maintenance_info,omitempty"`
}

// Validate implements util.InputValidator
func (r *ProvisionRequest) Validate() error {
	if r.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if r.PlanID == "" {
		return fmt.Errorf("plan_id is required")
	}
	return nil
}

// ProvisionResponse is the outcome of a create instance operation
type ProvisionResponse struct {
	// Async reports that the instance is being created asynchronously
	Async bool `json:"-"`
	// InstanceExisted reports that an identical instance already existed
	InstanceExisted bool              `json:"-"`
	DashboardURL    string            `json:"dashboard_url,omitempty"`
	OperationKey    string            `json:"operation,omitempty"`
	Metadata        *InstanceMetadata `json:"metadata,omitempty"`
}

// InstanceMetadata contains the labels and attributes returned for a service instance
type InstanceMetadata struct {
	Labels     map[string]interface{} `json:"labels,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// PreviousValues contains the values of a service instance before an update
type PreviousValues struct {
	ServiceID       string           `json:"service_id,omitempty"`
	PlanID          string           `json:"plan_id,omitempty"`
	OrganizationID  string           `json:"organization_id,omitempty"`
	SpaceID         string           `json:"space_id,omitempty"`
	MaintenanceInfo *MaintenanceInfo `json:"maintenance_info,omitempty"`
}

// UpdateInstanceRequest is a request to update a service instance
type UpdateInstanceRequest struct {
	RequestMetadata

	InstanceID        string                 `json:"-"`
	AcceptsIncomplete bool                   `json:"-"`
	ServiceID         string                 `json:"service_id"`
	PlanID            string                 `json:"plan_id,omitempty"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Context           map[string]interface{} `json:"context,omitempty"`
	PreviousValues    *PreviousValues        `json:"previous_values,omitempty"`
	MaintenanceInfo   *MaintenanceInfo       `json:"maintenance_info,omitempty"`
}

// Validate implements util.InputValidator
func (r *UpdateInstanceRequest) Validate() error {
	if r.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	return nil
}

// UpdateInstanceResponse is the outcome of an update instance operation
type UpdateInstanceResponse struct {
	Async        bool              `json:"-"`
	DashboardURL string            `json:"dashboard_url,omitempty"`
	OperationKey string            `json:"operation,omitempty"`
	Metadata     *InstanceMetadata `json:"metadata,omitempty"`
}

// DeprovisionRequest is a request to delete a service instance
type DeprovisionRequest struct {
	RequestMetadata

	InstanceID        string
	ServiceID         string
	PlanID            string
	AcceptsIncomplete bool
}

// DeprovisionResponse is the outcome of a delete instance operation
type DeprovisionResponse struct {
	Async        bool   `json:"-"`
	OperationKey string `json:"operation,omitempty"`
}

// GetInstanceRequest is a request to fetch a service instance
type GetInstanceRequest struct {
	RequestMetadata

	InstanceID string
	ServiceID  string
	PlanID     string
}

// GetInstanceResponse describes a fetched service instance
type GetInstanceResponse struct {
	ServiceID       string                 `json:"service_id,omitempty"`
	PlanID          string                 `json:"plan_id,omitempty"`
	DashboardURL    string                 `json:"dashboard_url,omitempty"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	MaintenanceInfo *MaintenanceInfo       `json:"maintenance_info,omitempty"`
	Metadata        *InstanceMetadata      `json:"metadata,omitempty"`
}

// LastOperationRequest is a poll for the last operation of a service instance
type LastOperationRequest struct {
	RequestMetadata

	InstanceID   string
	ServiceID    string
	PlanID       string
	OperationKey string
}

// LastOperationResponse is the state of the last operation of a service instance or binding
type LastOperationResponse struct {
	State            OperationState `json:"state"`
	Description      string         `json:"description,omitempty"`
	InstanceUsable   *bool          `json:"instance_usable,omitempty"`
	UpdateRepeatable *bool          `json:"update_repeatable,omitempty"`
}

// BindResource contains data for platform resources associated with a binding
type BindResource struct {
	AppGUID string `json:"app_guid,omitempty"`
	Route   string `json:"route,omitempty"`
}

// BindRequest is a request to create a service binding
type BindRequest struct {
	RequestMetadata

	InstanceID        string                 `json:"-"`
	BindingID         string                 `json:"-"`
	AcceptsIncomplete bool                   `json:"-"`
	ServiceID         string                 `json:"service_id"`
	PlanID            string                 `json:"plan_id"`
	AppGUID           string                 `json:"app_guid,omitempty"`
	BindResource      *BindResource          `json:"bind_resource,omitempty"`
	Parameters        map[string]interface{} `json:"parameters,omitempty"`
	Context           map[string]interface{} `json:"context,omitempty"`
}

// Validate implements util.InputValidator
func (r *BindRequest) Validate() error {
	if r.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if r.PlanID == "" {
		return fmt.Errorf("plan_id is required")
	}
	return nil
}

// BindResponse is the outcome of a create binding operation
type BindResponse struct {
	Async bool `json:"-"`
	// BindingExisted reports that an identical binding already existed
	BindingExisted  bool                   `json:"-"`
	Credentials     map[string]interface{} `json:"credentials,omitempty"`
	SyslogDrainURL  string                 `json:"syslog_drain_url,omitempty"`
	RouteServiceURL string                 `json:"route_service_url,omitempty"`
	VolumeMounts    []interface{}          `json:"volume_mounts,omitempty"`
	OperationKey    string                 `json:"operation,omitempty"`
	Metadata        *BindingMetadata       `json:"metadata,omitempty"`
}

// BindingMetadata contains the metadata returned for a service binding
type BindingMetadata struct {
	ExpiresAt   string `json:"expires_at,omitempty"`
	RenewBefore string `json:"renew_before,omitempty"`
}

// GetBindingRequest is a request to fetch a service binding
type GetBindingRequest struct {
	RequestMetadata

	InstanceID string
	BindingID  string
	ServiceID  string
	PlanID     string
}

// GetBindingResponse describes a fetched service binding
type GetBindingResponse struct {
	Credentials     map[string]interface{} `json:"credentials,omitempty"`
	SyslogDrainURL  string                 `json:"syslog_drain_url,omitempty"`
	RouteServiceURL string                 `json:"route_service_url,omitempty"`
	VolumeMounts    []interface{}          `json:"volume_mounts,omitempty"`
	Parameters      map[string]interface{} `json:"parameters,omitempty"`
	Metadata        *BindingMetadata       `json:"metadata,omitempty"`
}

// UnbindRequest is a request to delete a service binding
type UnbindRequest struct {
	RequestMetadata

	InstanceID        string
	BindingID         string
	ServiceID         string
	PlanID            string
	AcceptsIncomplete bool
}

// UnbindResponse is the outcome of a delete binding operation
type UnbindResponse struct {
	Async        bool   `json:"-"`
	OperationKey string `json:"operation,omitempty"`
}

// BindingLastOperationRequest is a poll for the last operation of a service binding
type BindingLastOperationRequest struct {
	RequestMetadata

	InstanceID   string
	BindingID    string
	ServiceID    string
	PlanID       string
	OperationKey string
}
