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

// Package catalog loads the catalog advertised by the broker from configuration, normalizes the catalog
// metadata and provides lookups of services and plans.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
	osbc "github.com/kubernetes-sigs/go-open-service-broker-client/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Settings type to be loaded from the environment
type Settings struct {
	File string `mapstructure:"file" description:"path to a YAML or JSON file containing the catalog. When empty the catalog section of the configuration is used"`
	Path string `mapstructure:"path" description:"gjson path selecting the catalog document inside the catalog file"`
}

// DefaultSettings returns the default catalog settings
func DefaultSettings() *Settings {
	return &Settings{}
}

// Validate validates the catalog settings
func (s *Settings) Validate() error {
	if s.Path != "" && s.File == "" {
		return fmt.Errorf("validate Settings: catalog path requires a catalog file")
	}
	return nil
}

// ErrPathNotFound is returned by a file source whose path selects nothing
var ErrPathNotFound = errors.New("catalog path does not exist")

// Source returns the raw catalog configuration tree
type Source func(ctx context.Context) (map[string]interface{}, error)

// FileSource reads the catalog tree from a YAML or JSON file. When path is set, only the document
// selected by the gjson path is used.
func FileSource(file, path string) Source {
	return func(ctx context.Context) (map[string]interface{}, error) {
		log.C(ctx).Debugf("Loading catalog from file %s", file)
		bytes, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("could not read catalog file %s: %s", file, err)
		}
		var tree map[string]interface{}
		if err := yaml.Unmarshal(bytes, &tree); err != nil {
			return nil, fmt.Errorf("could not parse catalog file %s: %s", file, err)
		}
		if path == "" {
			return tree, nil
		}
		return selectPath(tree, path)
	}
}

// TreeSource returns a fixed catalog tree, usually the catalog section of the configuration
func TreeSource(tree map[string]interface{}) Source {
	return func(ctx context.Context) (map[string]interface{}, error) {
		return tree, nil
	}
}

// selectPath applies the gjson path on the normalized tree
func selectPath(tree map[string]interface{}, path string) (map[string]interface{}, error) {
	bytes, err := json.Marshal(Normalize(tree))
	if err != nil {
		return nil, err
	}
	result := gjson.GetBytes(bytes, path)
	if !result.Exists() {
		return nil, fmt.Errorf("%w: %s", ErrPathNotFound, path)
	}
	selected, ok := result.Value().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("catalog path %s does not select an object", path)
	}
	return selected, nil
}

// Load reads the tree from the source, normalizes it and decodes it into a validated catalog
func Load(ctx context.Context, source Source) (*osb.Catalog, error) {
	tree, err := source(ctx)
	if err != nil {
		return nil, err
	}
	return Decode(tree)
}

// Decode normalizes the catalog tree and decodes it into a validated catalog
func Decode(tree map[string]interface{}) (*osb.Catalog, error) {
	result := &osb.Catalog{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           result,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(Normalize(tree)); err != nil {
		return nil, fmt.Errorf("could not decode catalog: %s", err)
	}
	if err := Validate(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate checks that services and plans have ids and names and that the ids are unique
func Validate(catalog *osb.Catalog) error {
	serviceIDs := make(map[string]bool)
	planIDs := make(map[string]bool)
	for _, service := range catalog.Services {
		if service.ID == "" || service.Name == "" {
			return fmt.Errorf("catalog service %q must have an id and a name", service.Name)
		}
		if serviceIDs[service.ID] {
			return fmt.Errorf("catalog service id %s is not unique", service.ID)
		}
		serviceIDs[service.ID] = true
		if len(service.Plans) == 0 {
			return fmt.Errorf("catalog service %s has no plans", service.ID)
		}
		for _, plan := range service.Plans {
			if plan.ID == "" || plan.Name == "" {
				return fmt.Errorf("catalog plan %q of service %s must have an id and a name", plan.Name, service.ID)
			}
			if planIDs[plan.ID] {
				return fmt.Errorf("catalog plan id %s is not unique", plan.ID)
			}
			planIDs[plan.ID] = true
		}
	}
	return nil
}

// FindPlan looks up a plan of a service. An empty plan id only looks up the service.
func FindPlan(catalog *osb.Catalog, serviceID, planID string) (*osbc.Service, *osbc.Plan, error) {
	for i := range catalog.Services {
		service := &catalog.Services[i]
		if service.ID != serviceID {
			continue
		}
		if planID == "" {
			return service, nil, nil
		}
		for j := range service.Plans {
			if service.Plans[j].ID == planID {
				return service, &service.Plans[j], nil
			}
		}
		return service, nil, osb.NotFound("plan %s of service %s not found", planID, serviceID)
	}
	return nil, nil, osb.NotFound("service %s not found", serviceID)
}

// PlanUpdatable reports whether a service allows changing the plan of its instances
func PlanUpdatable(service *osbc.Service) bool {
	return service.PlanUpdatable != nil && *service.PlanUpdatable
}

// Bindable reports whether instances of the plan can be bound. The plan setting overrides the service setting.
func Bindable(service *osbc.Service, plan *osbc.Plan) bool {
	if plan != nil && plan.Bindable != nil {
		return *plan.Bindable
	}
	return service.Bindable
}
