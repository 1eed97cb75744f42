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

// Package api contains logic for building the broker REST API
package api

import (
	"context"
	"fmt"

	"github.com/Peripli/service-broker/api/filters"
	"github.com/Peripli/service-broker/api/metrics"
	"github.com/Peripli/service-broker/api/osb"
	"github.com/Peripli/service-broker/pkg/health"
	"github.com/Peripli/service-broker/pkg/log"
	osbtypes "github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/web"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ulule/limiter"
	"github.com/ulule/limiter/drivers/store/memory"
	redisstore "github.com/ulule/limiter/drivers/store/redis"
)

const osbVersion = "2.14"

// Settings type to be loaded from the environment
type Settings struct {
	OSBVersion          string `mapstructure:"osb_version" description:"broker API version served by the broker, * accepts any version"`
	RateLimit           string `mapstructure:"rate_limit" description:"rate limiter configuration defined in format: rate<:path<:method>><,rate<:path<:method>>,...>"`
	RateLimitingEnabled bool   `mapstructure:"rate_limiting_enabled" description:"enable rate limiting"`
	TrustForwardHeader  bool   `mapstructure:"trust_forward_header" description:"take the client IP for rate limiting from the X-Forwarded-For and X-Real-IP headers"`
}

// DefaultSettings returns default values for API settings
func DefaultSettings() *Settings {
	return &Settings{
		OSBVersion:          osbVersion,
		RateLimit:           "10000-H,1000-M",
		RateLimitingEnabled: false,
	}
}

// Validate validates the API settings
func (s *Settings) Validate() error {
	if len(s.OSBVersion) == 0 {
		return fmt.Errorf("validate Settings: OSBVersion missing")
	}
	if s.RateLimitingEnabled {
		if _, err := filters.ParseRateLimits(s.RateLimit); err != nil {
			return fmt.Errorf("validate Settings: %s", err)
		}
	}
	return nil
}

// Options are the collaborators of the broker REST API
type Options struct {
	APISettings *Settings
	Broker      osb.Broker
	// RedisClient is optional, when set the rate limiter counters are shared through redis
	RedisClient *redis.Client
	RedisPrefix string
	// Gatherer is optional, when set the metrics are served on /metrics
	Gatherer prometheus.Gatherer
}

// New returns the REST API of the broker
func New(ctx context.Context, options *Options) (*web.API, error) {
	if options.Broker == nil {
		return nil, fmt.Errorf("a broker is required")
	}
	settings := options.APISettings
	if settings == nil {
		settings = DefaultSettings()
	}

	api := &web.API{
		// Default controllers - more controllers can be registered using the relevant API methods
		Controllers: []web.Controller{
			osb.NewController(options.Broker),
		},
		// Default filters - more filters can be registered using the relevant API methods
		Filters: []web.Filter{
			&filters.Logging{},
			filters.NewAPIVersionFilter(osbtypes.NewBrokerAPIVersion(settings.OSBVersion)),
			&filters.RequestIdentity{},
		},
		Registry: health.NewDefaultRegistry(),
	}
	if options.Gatherer != nil {
		api.RegisterControllers(metrics.NewController(options.Gatherer))
	}

	if settings.RateLimitingEnabled {
		rateLimiter, err := newRateLimiterFilter(ctx, settings, options)
		if err != nil {
			return nil, err
		}
		api.RegisterFiltersAfter(filters.APIVersionFilterName, rateLimiter)
	}

	return api, nil
}

func newRateLimiterFilter(ctx context.Context, settings *Settings, options *Options) (*filters.RateLimiterFilter, error) {
	limits, err := filters.ParseRateLimits(settings.RateLimit)
	if err != nil {
		return nil, err
	}

	var store limiter.Store
	if options.RedisClient != nil {
		store, err = redisstore.NewStoreWithOptions(options.RedisClient, limiter.StoreOptions{
			Prefix:   options.RedisPrefix + "limiter",
			MaxRetry: 3,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create redis rate limiter store: %s", err)
		}
		log.C(ctx).Info("Rate limiter counters are shared through redis")
	} else {
		store = memory.NewStore()
	}
	return filters.NewRateLimiterFilter(store, limits, settings.TrustForwardHeader), nil
}
