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

import "sync"

// Registry stores the health indicators of the broker together with their settings
type Registry struct {
	mutex      sync.RWMutex
	indicators []Indicator

	// HealthSettings contains the per indicator settings, keyed by indicator name
	HealthSettings map[string]*IndicatorSettings
}

// NewDefaultRegistry returns a default health registry with a single ping indicator
func NewDefaultRegistry() *Registry {
	return &Registry{
		indicators:     []Indicator{&pingIndicator{}},
		HealthSettings: make(map[string]*IndicatorSettings),
	}
}

// AddHealthIndicator adds a new health indicator to the registry
func (r *Registry) AddHealthIndicator(indicator Indicator) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.indicators = append(r.indicators, indicator)
}

// HealthIndicators returns the currently registered health indicators
func (r *Registry) HealthIndicators() []Indicator {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	result := make([]Indicator, len(r.indicators))
	copy(result, r.indicators)
	return result
}

// IndicatorSettings returns the settings for the indicator with the given name, falling back to the defaults
func (r *Registry) IndicatorSettings(name string) *IndicatorSettings {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if settings, ok := r.HealthSettings[name]; ok && settings != nil {
		return settings
	}
	return DefaultIndicatorSettings()
}
