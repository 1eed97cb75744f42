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

// Package redis contains the Redis backed reported store. The same client is shared with the
// distributed request rate limiter.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/storage"
	goredis "github.com/go-redis/redis"
)

// Settings type to be loaded from the environment
type Settings struct {
	URI    string `mapstructure:"uri" description:"URI of the redis server, for example redis://:password@host:6379/0"`
	Name   string `mapstructure:"name" description:"name of the bound CF redis service"`
	Prefix string `mapstructure:"prefix" description:"prefix of all keys written by the broker"`
}

// DefaultSettings returns the default values for the redis connection
func DefaultSettings() *Settings {
	return &Settings{
		Prefix: "osb:",
	}
}

// Validate validates the redis settings
func (s *Settings) Validate() error {
	if len(s.URI) == 0 {
		return nil
	}
	if _, err := goredis.ParseURL(s.URI); err != nil {
		return fmt.Errorf("validate Settings: invalid redis URI: %s", err)
	}
	return nil
}

// Enabled returns true if a redis server is configured
func (s *Settings) Enabled() bool {
	return len(s.URI) > 0
}

// NewClient connects to the configured redis server
func NewClient(ctx context.Context, settings *Settings) (*goredis.Client, error) {
	options, err := goredis.ParseURL(settings.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URI: %s", err)
	}
	client := goredis.NewClient(options)
	if err := client.WithContext(ctx).Ping().Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("could not ping redis at %s: %s", options.Addr, err)
	}
	log.C(ctx).Infof("Connected to redis at %s", options.Addr)
	return client, nil
}

// ReportedStore is a storage.ReportedStore keeping one hash per resource. The hash fields are the
// reported operations.
type ReportedStore struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewReportedStore creates a reported store on the redis client
func NewReportedStore(client *goredis.Client, prefix string, retention time.Duration) *ReportedStore {
	return &ReportedStore{
		client:    client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

func (s *ReportedStore) key(resource string) string {
	return s.prefix + "reported:" + resource
}

// MarkReported implements storage.ReportedStore
func (s *ReportedStore) MarkReported(ctx context.Context, key storage.ReportKey) (bool, error) {
	client := s.client.WithContext(ctx)
	hashKey := s.key(key.Resource)
	first, err := client.HSetNX(hashKey, key.Operation, s.now().UTC().Format(time.RFC3339)).Result()
	if err != nil {
		return false, err
	}
	if first && s.retention > 0 {
		if err := client.Expire(hashKey, s.retention).Err(); err != nil {
			log.C(ctx).WithError(err).Warnf("Could not set expiration of %s", hashKey)
		}
	}
	return first, nil
}

// Clear implements storage.ReportedStore
func (s *ReportedStore) Clear(ctx context.Context, resource string) error {
	return s.client.WithContext(ctx).Del(s.key(resource)).Err()
}

// HealthIndicator reports the availability of the redis server
type HealthIndicator struct {
	client *goredis.Client
}

// NewHealthIndicator creates a health indicator pinging the redis server
func NewHealthIndicator(client *goredis.Client) *HealthIndicator {
	return &HealthIndicator{client: client}
}

// Name implements health.Indicator
func (i *HealthIndicator) Name() string {
	return "redis"
}

// Status implements health.Indicator
func (i *HealthIndicator) Status() (interface{}, error) {
	pong, err := i.client.Ping().Result()
	if err != nil {
		return nil, fmt.Errorf("redis ping failed: %s", err)
	}
	return pong, nil
}
