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

// Package web exposes the extension points of the service broker. One can add additional controllers
// and filters to the already built broker.
package web

import (
	"github.com/Peripli/service-broker/pkg/health"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/util/slice"
)

// API is the primary point for REST API registration
type API struct {
	// Controllers contains the registered controllers
	Controllers []Controller

	// Filters contains the registered filters
	Filters []Filter

	// Registry is the health indicators registry for this API
	*health.Registry
}

// RegisterControllers registers a set of controllers
func (api *API) RegisterControllers(controllers ...Controller) {
	api.Controllers = append(api.Controllers, controllers...)
}

// RegisterFilters registers a set of filters
func (api *API) RegisterFilters(filters ...Filter) {
	api.validateFilters(filters...)
	api.Filters = append(api.Filters, filters...)
}

// RegisterFiltersBefore registers the specified filters before the one with the given name.
func (api *API) RegisterFiltersBefore(beforeFilterName string, filters ...Filter) {
	for _, filter := range filters {
		log.D().Debugf("Registering filter %s before %s", filter.Name(), beforeFilterName)
		api.validateFilters(filter)
		api.registerFilterRelativelyOrDie(beforeFilterName, filter, func(beforeFilterPosition int) int {
			return beforeFilterPosition
		})
	}
}

// RegisterFiltersAfter registers the specified filters after the one with the given name.
func (api *API) RegisterFiltersAfter(afterFilterName string, filters ...Filter) {
	for i, filter := range filters {
		log.D().Debugf("Registering filter %s after %s", filter.Name(), afterFilterName)
		api.validateFilters(filter)
		api.registerFilterRelativelyOrDie(afterFilterName, filter, func(filterPosition int) int {
			return filterPosition + 1 + i
		})
	}
}

// ReplaceFilter registers the given filter in the place of the filter with the given name.
func (api *API) ReplaceFilter(replacedFilterName string, filter Filter) {
	log.D().Debugf("Replacing filter %s with %s", replacedFilterName, filter.Name())
	registeredFilterPosition := api.findFilterPosition(replacedFilterName)
	if registeredFilterPosition < 0 {
		log.D().Panicf("Filter with name %s is not found", replacedFilterName)
	}
	api.Filters[registeredFilterPosition] = filter
}

// RemoveFilter removes the filter with the given name
func (api *API) RemoveFilter(name string) {
	position := api.findFilterPosition(name)
	if position < 0 {
		log.D().Panicf("Filter with name %s is not found", name)
	}
	copy(api.Filters[position:], api.Filters[position+1:])
	api.Filters[len(api.Filters)-1] = nil
	api.Filters = api.Filters[:len(api.Filters)-1]
}

func (api *API) validateFilters(filters ...Filter) {
	newFilterNames := api.filterNames(filters)
	if slice.StringsAnyEquals(newFilterNames, "") {
		log.D().Panicf("Filters cannot have empty names")
	}
	for _, name := range newFilterNames {
		if api.findFilterPosition(name) >= 0 {
			log.D().Panicf("Filter %s is already registered", name)
		}
	}
}

func (api *API) registerFilterRelativelyOrDie(filterName string, newFilter Filter, newFilterPosition func(filterPosition int) int) {
	registeredFilterPosition := api.findFilterPosition(filterName)
	if registeredFilterPosition < 0 {
		log.D().Panicf("Filter with name %s is not found", filterName)
	}
	filterPosition := newFilterPosition(registeredFilterPosition)
	api.Filters = append(api.Filters, nil)
	copy(api.Filters[filterPosition+1:], api.Filters[filterPosition:])
	api.Filters[filterPosition] = newFilter
}

func (api *API) findFilterPosition(filterName string) int {
	for i := range api.Filters {
		if api.Filters[i].Name() == filterName {
			return i
		}
	}
	return -1
}

func (api *API) filterNames(filters []Filter) []string {
	var filterNames []string
	for i := range filters {
		filterNames = append(filterNames, filters[i].Name())
	}
	return filterNames
}
