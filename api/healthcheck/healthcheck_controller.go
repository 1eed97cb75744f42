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

package healthcheck

import (
	"context"
	"net/http"

	h "github.com/InVisionApp/go-health/v2"
	"github.com/Peripli/service-broker/pkg/health"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/util"
	"github.com/Peripli/service-broker/pkg/web"
)

// controller healthcheck controller
type controller struct {
	health     h.IHealth
	thresholds map[string]int64
}

// NewController returns a new healthcheck controller with the given health and thresholds
func NewController(health h.IHealth, thresholds map[string]int64) web.Controller {
	return &controller{
		health:     health,
		thresholds: thresholds,
	}
}

// healthCheck handler for GET /health
func (c *controller) healthCheck(r *web.Request) (*web.Response, error) {
	ctx := r.Context()
	log.C(ctx).Debugf("Performing health check...")
	healthState, _, err := c.health.State()
	if err != nil {
		log.C(ctx).WithError(err).Error("Could not get health state")
	}
	healthResult := c.aggregate(ctx, healthState)
	var status int
	if healthResult.Status == health.StatusUp {
		status = http.StatusOK
	} else {
		status = http.StatusServiceUnavailable
	}
	return util.NewJSONResponse(status, healthResult)
}

// aggregate reports DOWN as soon as a fatal indicator failed more times in a row than its threshold
func (c *controller) aggregate(ctx context.Context, overallState map[string]h.State) *health.Health {
	if len(overallState) == 0 {
		return health.New().WithStatus(health.StatusUp)
	}
	overallStatus := health.StatusUp
	for name, state := range overallState {
		if state.Fatal && state.ContiguousFailures >= c.thresholds[name] {
			log.C(ctx).Warnf("Health indicator %s failed %d times in a row", name, state.ContiguousFailures)
			overallStatus = health.StatusDown
			break
		}
	}
	details := make(map[string]interface{})
	for name, state := range overallState {
		state.Status = convertStatus(state.Status)
		details[name] = state
	}
	return health.New().WithStatus(overallStatus).WithDetails(details)
}

func convertStatus(status string) string {
	switch status {
	case "ok":
		return string(health.StatusUp)
	case "failed":
		return string(health.StatusDown)
	default:
		return string(health.StatusUnknown)
	}
}
