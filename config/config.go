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

// Package config contains the aggregated configuration of the service broker
package config

import (
	"fmt"

	"github.com/Peripli/service-broker/api"
	"github.com/Peripli/service-broker/pkg/catalog"
	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/pkg/health"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/server"
	"github.com/Peripli/service-broker/storage"
	"github.com/Peripli/service-broker/storage/redis"
	"github.com/spf13/pflag"
)

// Settings is used to setup the service broker
type Settings struct {
	Server  *server.Settings
	Log     *log.Settings
	API     *api.Settings
	Health  *health.Settings
	Storage *storage.Settings
	Redis   *redis.Settings
	Catalog *catalog.Settings
}

// DefaultSettings returns the default values for configuring the service broker
func DefaultSettings() *Settings {
	return &Settings{
		Server:  server.DefaultSettings(),
		Log:     log.DefaultSettings(),
		API:     api.DefaultSettings(),
		Health:  health.DefaultSettings(),
		Storage: storage.DefaultSettings(),
		Redis:   redis.DefaultSettings(),
		Catalog: catalog.DefaultSettings(),
	}
}

// AddPFlags adds the broker config flags to the provided flag set
func AddPFlags(set *pflag.FlagSet) {
	env.CreatePFlags(set, DefaultSettings())
}

// New creates a configuration from the default env
func New(environment env.Environment) (*Settings, error) {
	config := DefaultSettings()
	if err := environment.Unmarshal(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates that the configuration contains all mandatory properties
func (c *Settings) Validate() error {
	validatable := []interface{ Validate() error }{c.Server, c.Log, c.API, c.Health, c.Storage, c.Redis, c.Catalog}

	for _, item := range validatable {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	if c.Storage.Type == storage.TypeRedis && !c.Redis.Enabled() {
		return fmt.Errorf("validate Settings: storage type %s requires redis.uri", storage.TypeRedis)
	}
	return nil
}
