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

// Package metrics contains the controller exposing the broker metrics in the Prometheus format
package metrics

import (
	"net/http"
	"net/http/httptest"

	"github.com/Peripli/service-broker/pkg/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type controller struct {
	handler http.Handler
}

// NewController returns a controller serving the metrics collected by the gatherer
func NewController(gatherer prometheus.Gatherer) web.Controller {
	return &controller{
		handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// Routes implements web.Controller
func (c *controller) Routes() []web.Route {
	return []web.Route{
		{
			Endpoint: web.Endpoint{
				Method: http.MethodGet,
				Path:   web.MetricsURL,
			},
			Handler: c.metrics,
		},
	}
}

func (c *controller) metrics(req *web.Request) (*web.Response, error) {
	recorder := httptest.NewRecorder()
	c.handler.ServeHTTP(recorder, req.Request)
	return &web.Response{
		StatusCode: recorder.Code,
		Header:     recorder.Header(),
		Body:       recorder.Body.Bytes(),
	}, nil
}
