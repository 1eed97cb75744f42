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

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/web"
)

// LoggingFilterName is the name of the logging filter
const LoggingFilterName = "LoggingFilter"

// Logging is filter that configures logging per request.
type Logging struct {
}

// Name implements the web.Filter interface and returns the identifier of the filter.
func (*Logging) Name() string {
	return LoggingFilterName
}

// Run represents the logging middleware function that processes the request and configures the request-scoped logging.
func (l *Logging) Run(req *web.Request, next web.Handler) (*web.Response, error) {
	correlationID := log.CorrelationIDForRequest(req.Request)
	entry := log.C(req.Context()).WithField(log.FieldCorrelationID, correlationID)
	req.Request = req.WithContext(log.ContextWithLogger(req.Context(), entry))

	entry.Debugf("Handling %s %s", req.Method, req.URL.Path)
	resp, err := next.Handle(req)
	if err != nil {
		entry.WithError(err).Debugf("%s %s failed", req.Method, req.URL.Path)
		return nil, err
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	resp.Header.Set(log.CorrelationIDHeaders[0], correlationID)
	entry.Debugf("%s %s returned %d", req.Method, req.URL.Path, resp.StatusCode)
	return resp, nil
}

// FilterMatchers implements the web.Filter interface and returns the conditions on which the filter should be executed.
func (*Logging) FilterMatchers() []web.FilterMatcher {
	return []web.FilterMatcher{
		{
			Matchers: []web.Matcher{
				web.Path("/**"),
			},
		},
	}
}
