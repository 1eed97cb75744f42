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

package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/fsnotify/fsnotify"
)

// StaticProvider serves a fixed catalog
type StaticProvider struct {
	catalog *osb.Catalog
}

// NewStaticProvider returns a provider for the given catalog
func NewStaticProvider(catalog *osb.Catalog) *StaticProvider {
	return &StaticProvider{catalog: catalog}
}

// GetCatalog implements osb.CatalogProvider
func (p *StaticProvider) GetCatalog(ctx context.Context) (*osb.Catalog, error) {
	return p.catalog, nil
}

// ReloadingProvider serves the last successfully loaded catalog and reloads it on configuration changes.
// A failed reload keeps the previous catalog and is reported by the health indicator.
type ReloadingProvider struct {
	source Source

	mutex     sync.RWMutex
	catalog   *osb.Catalog
	reloadErr error
}

// NewReloadingProvider loads the catalog from the source. An error is returned if the initial load fails.
func NewReloadingProvider(ctx context.Context, source Source) (*ReloadingProvider, error) {
	provider := &ReloadingProvider{source: source}
	if err := provider.Reload(ctx); err != nil {
		return nil, err
	}
	return provider, nil
}

// GetCatalog implements osb.CatalogProvider
func (p *ReloadingProvider) GetCatalog(ctx context.Context) (*osb.Catalog, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.catalog, nil
}

// Reload loads the catalog from the source again
func (p *ReloadingProvider) Reload(ctx context.Context) error {
	catalog, err := Load(ctx, p.source)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.reloadErr = err
	if err != nil {
		return err
	}
	p.catalog = catalog
	log.C(ctx).Infof("Loaded catalog with %d services", len(catalog.Services))
	return nil
}

// OnConfigChange returns a handler that reloads the catalog when the configuration file changes
func (p *ReloadingProvider) OnConfigChange(ctx context.Context) env.ConfigChangeHandler {
	return func(environment env.Environment) func(event fsnotify.Event) {
		return func(event fsnotify.Event) {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				return
			}
			if err := p.Reload(ctx); err != nil {
				log.C(ctx).WithError(err).Error("Could not reload catalog, keeping the previous one")
			}
		}
	}
}

// Name implements health.Indicator
func (p *ReloadingProvider) Name() string {
	return "catalog"
}

// Status implements health.Indicator
func (p *ReloadingProvider) Status() (interface{}, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	details := map[string]interface{}{}
	if p.catalog != nil {
		details["services"] = len(p.catalog.Services)
	}
	if p.reloadErr != nil {
		return details, fmt.Errorf("last catalog reload failed: %s", p.reloadErr)
	}
	return details, nil
}
