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

package health

import (
	"context"
	"fmt"

	h "github.com/InVisionApp/go-health/v2"
	logrusShim "github.com/InVisionApp/go-logger/shims/logrus"
	"github.com/Peripli/service-broker/pkg/log"
)

// Configure registers the indicators of the registry as periodic go-health checks and returns the
// health instance along with the failure thresholds per indicator name. The checks are not started.
func Configure(ctx context.Context, registry *Registry) (h.IHealth, map[string]int64, error) {
	healthz := h.New()
	healthz.Logger = logrusShim.New(log.C(ctx).Logger)
	healthz.StatusListener = &StatusListener{}

	thresholds := make(map[string]int64)
	for _, indicator := range registry.HealthIndicators() {
		settings := registry.IndicatorSettings(indicator.Name())
		if err := healthz.AddCheck(&h.Config{
			Name:     indicator.Name(),
			Checker:  indicator,
			Interval: settings.Interval,
			Fatal:    settings.Fatal,
		}); err != nil {
			return nil, nil, fmt.Errorf("could not register health indicator %s: %s", indicator.Name(), err)
		}
		thresholds[indicator.Name()] = settings.FailuresThreshold
	}
	return healthz, thresholds, nil
}
