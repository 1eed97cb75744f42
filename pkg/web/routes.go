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

package web

const (
	osbVersion = "v2"

	// PathParamInstanceID is the name of the service instance id path parameter
	PathParamInstanceID = "instance_id"

	// PathParamBindingID is the name of the service binding id path parameter
	PathParamBindingID = "binding_id"

	// CatalogURL is the URL path of the OSB catalog
	CatalogURL = "/" + osbVersion + "/catalog"

	// ServiceInstancesURL is the URL path to manage service instances
	ServiceInstancesURL = "/" + osbVersion + "/service_instances"

	// ServiceInstanceURL is the URL path of a single service instance
	ServiceInstanceURL = ServiceInstancesURL + "/{" + PathParamInstanceID + "}"

	// ServiceInstanceLastOperationURL is the URL path of the last operation of a service instance
	ServiceInstanceLastOperationURL = ServiceInstanceURL + "/last_operation"

	// ServiceBindingURL is the URL path of a single service binding
	ServiceBindingURL = ServiceInstanceURL + "/service_bindings/{" + PathParamBindingID + "}"

	// ServiceBindingLastOperationURL is the URL path of the last operation of a service binding
	ServiceBindingLastOperationURL = ServiceBindingURL + "/last_operation"

	// OSBPathPattern matches every OSB endpoint
	OSBPathPattern = "/" + osbVersion + "/**"

	// MonitorHealthURL is the path of the healthcheck endpoint
	MonitorHealthURL = "/health"

	// MetricsURL is the path of the prometheus metrics endpoint
	MetricsURL = "/metrics"
)
