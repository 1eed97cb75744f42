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

package filters

import (
	"net/http"

	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/web"
)

// APIVersionFilterName is the name of the broker API version filter
const APIVersionFilterName = "APIVersionFilter"

// APIVersionFilter rejects OSB requests whose X-Broker-API-Version header does not match the version
// served by the broker
type APIVersionFilter struct {
	Version osb.BrokerAPIVersion
}

// NewAPIVersionFilter creates a version filter for the given broker API version
func NewAPIVersionFilter(version osb.BrokerAPIVersion) *APIVersionFilter {
	return &APIVersionFilter{Version: version}
}

// Name implements the web.Filter interface and returns the identifier of the filter.
func (*APIVersionFilter) Name() string {
	return APIVersionFilterName
}

// Run checks the version header before the request reaches the OSB controllers
func (f *APIVersionFilter) Run(req *web.Request, next web.Handler) (*web.Response, error) {
	var provided *string
	if values := req.Header.Values(osb.HeaderAPIVersion); len(values) > 0 {
		provided = &values[0]
	}
	if err := osb.CheckVersion(f.Version, provided); err != nil {
		return nil, osb.ToHTTPError(osb.OperationGetCatalog, err)
	}
	return next.Handle(req)
}

// FilterMatchers implements the web.Filter interface and returns the conditions on which the filter should be executed.
func (*APIVersionFilter) FilterMatchers() []web.FilterMatcher {
	return []web.FilterMatcher{
		{
			Matchers: []web.Matcher{
				web.Path(web.OSBPathPattern),
			},
		},
	}
}

// RequestIdentityFilterName is the name of the request identity filter
const RequestIdentityFilterName = "RequestIdentityFilter"

// RequestIdentity echoes the X-Broker-API-Request-Identity header of OSB requests in their responses
type RequestIdentity struct {
}

// Name implements the web.Filter interface and returns the identifier of the filter.
func (*RequestIdentity) Name() string {
	return RequestIdentityFilterName
}

// Run copies the request identity to the response
func (*RequestIdentity) Run(req *web.Request, next web.Handler) (*web.Response, error) {
	resp, err := next.Handle(req)
	if err != nil {
		return nil, err
	}
	if identity := req.Header.Get(osb.HeaderRequestIdentity); identity != "" {
		if resp.Header == nil {
			resp.Header = http.Header{}
		}
		resp.Header.Set(osb.HeaderRequestIdentity, identity)
	}
	return resp, nil
}

// FilterMatchers implements the web.Filter interface and returns the conditions on which the filter should be executed.
func (*RequestIdentity) FilterMatchers() []web.FilterMatcher {
	return []web.FilterMatcher{
		{
			Matchers: []web.Matcher{
				web.Path(web.OSBPathPattern),
			},
		},
	}
}
