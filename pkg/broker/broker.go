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

// Package broker assembles a runnable service broker from its configuration and the provisioning
// contracts implemented by the broker author.
package broker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	h "github.com/InVisionApp/go-health/v2"
	"github.com/Peripli/service-broker/api"
	"github.com/Peripli/service-broker/api/filters"
	"github.com/Peripli/service-broker/api/healthcheck"
	"github.com/Peripli/service-broker/config"
	"github.com/Peripli/service-broker/pkg/catalog"
	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/pkg/flow"
	"github.com/Peripli/service-broker/pkg/health"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/server"
	"github.com/Peripli/service-broker/pkg/util"
	"github.com/Peripli/service-broker/pkg/web"
	"github.com/Peripli/service-broker/storage"
	"github.com/Peripli/service-broker/storage/postgres"
	"github.com/Peripli/service-broker/storage/redis"
	goredis "github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
)

// catalogConfigKey is the configuration section holding an inline catalog
const catalogConfigKey = "catalog"

// DefaultEnv creates a default environment that can be used to boot up a service broker
func DefaultEnv(ctx context.Context, additionalPFlags ...func(set *pflag.FlagSet)) (env.Environment, error) {
	return env.Default(ctx, append([]func(set *pflag.FlagSet){config.AddPFlags}, additionalPFlags...)...)
}

// Builder is the extension point of the broker. Provisioners, flows, filters, controllers and health
// indicators are registered on it before the broker is built.
type Builder struct {
	ctx         context.Context
	cfg         *config.Settings
	environment env.Environment

	catalog   osb.CatalogProvider
	instances osb.InstanceProvisioner
	bindings  osb.BindingProvisioner

	flows       []flow.Registration
	filters     []web.Filter
	controllers []web.Controller
	indicators  []health.Indicator

	reported    storage.ReportedStore
	redisClient *goredis.Client
	registry    *prometheus.Registry
	metrics     *flow.Metrics
	closers     []func() error
}

// New loads and validates the configuration, sets up logging and connects the configured storage.
// The context is cancelled on OS interrupts.
func New(ctx context.Context, cancel context.CancelFunc, environment env.Environment) (*Builder, error) {
	// graceful shutdown and handle interrupts
	util.HandleInterrupts(ctx, cancel)

	cfg, err := config.New(environment)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %s", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating configuration: %s", err)
	}

	ctx, err = log.Configure(ctx, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("error configuring logging: %s", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := flow.NewMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("error registering metrics: %s", err)
	}

	b := &Builder{
		ctx:         ctx,
		cfg:         cfg,
		environment: environment,
		registry:    registry,
		metrics:     metrics,
	}
	if err := b.setupStorage(); err != nil {
		b.close()
		return nil, err
	}
	return b, nil
}

func (b *Builder) setupStorage() error {
	if b.cfg.Redis.Enabled() {
		client, err := redis.NewClient(b.ctx, b.cfg.Redis)
		if err != nil {
			return fmt.Errorf("error connecting to redis: %s", err)
		}
		b.redisClient = client
		b.closers = append(b.closers, client.Close)
		b.indicators = append(b.indicators, redis.NewHealthIndicator(client))
	}

	settings := b.cfg.Storage
	switch settings.Type {
	case storage.TypeMemory:
		b.reported = storage.NewMemoryStore(settings.Retention)
	case storage.TypeRedis:
		b.reported = redis.NewReportedStore(b.redisClient, b.cfg.Redis.Prefix, settings.Retention)
	case storage.TypePostgres:
		db, err := postgres.Open(b.ctx, settings, nil)
		if err != nil {
			return fmt.Errorf("error opening storage: %s", err)
		}
		b.closers = append(b.closers, db.Close)
		indicator, err := postgres.NewHealthIndicator(db)
		if err != nil {
			return fmt.Errorf("error creating storage health indicator: %s", err)
		}
		b.indicators = append(b.indicators, indicator)
		b.reported = postgres.NewReportedStore(db, settings.Retention)
	default:
		return fmt.Errorf("storage type %s is not supported", settings.Type)
	}
	log.C(b.ctx).Infof("Using %s store for reported operation states", settings.Type)
	return nil
}

// Context returns the context of the broker, carrying the configured logger
func (b *Builder) Context() context.Context {
	return b.ctx
}

// Configuration returns the validated configuration of the broker
func (b *Builder) Configuration() *config.Settings {
	return b.cfg
}

// Environment returns the environment the configuration was loaded from
func (b *Builder) Environment() env.Environment {
	return b.environment
}

// WithCatalogProvider replaces the catalog loaded from the configuration
func (b *Builder) WithCatalogProvider(provider osb.CatalogProvider) *Builder {
	b.catalog = provider
	return b
}

// WithInstanceProvisioner sets the provisioner of service instances. It is required.
func (b *Builder) WithInstanceProvisioner(provisioner osb.InstanceProvisioner) *Builder {
	b.instances = provisioner
	return b
}

// WithBindingProvisioner sets the provisioner of service bindings. Without it binding requests are rejected.
func (b *Builder) WithBindingProvisioner(provisioner osb.BindingProvisioner) *Builder {
	b.bindings = provisioner
	return b
}

// RegisterFlows adds hooks to the lifecycle operations
func (b *Builder) RegisterFlows(registrations ...flow.Registration) *Builder {
	b.flows = append(b.flows, registrations...)
	return b
}

// RegisterFilters adds filters to the broker API
func (b *Builder) RegisterFilters(filters ...web.Filter) *Builder {
	b.filters = append(b.filters, filters...)
	return b
}

// RegisterControllers adds controllers to the broker API
func (b *Builder) RegisterControllers(controllers ...web.Controller) *Builder {
	b.controllers = append(b.controllers, controllers...)
	return b
}

// RegisterHealthIndicators adds health indicators reported on the health endpoint
func (b *Builder) RegisterHealthIndicators(indicators ...health.Indicator) *Builder {
	b.indicators = append(b.indicators, indicators...)
	return b
}

// Build assembles the broker
func (b *Builder) Build() (*Broker, error) {
	if b.instances == nil {
		return nil, errors.New("an instance provisioner is required")
	}
	if b.catalog == nil {
		provider, err := b.catalogFromConfiguration()
		if err != nil {
			return nil, err
		}
		b.catalog = provider
	}

	engine, err := flow.NewEngine(flow.EngineOptions{
		Flows:     flow.NewFlows(b.flows...),
		Catalog:   b.catalog,
		Instances: b.instances,
		Bindings:  b.bindings,
		Reported:  b.reported,
		Metrics:   b.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating flow engine: %s", err)
	}

	API, err := api.New(b.ctx, &api.Options{
		APISettings: b.cfg.API,
		Broker:      engine,
		RedisClient: b.redisClient,
		RedisPrefix: b.cfg.Redis.Prefix,
		Gatherer:    b.registry,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating broker API: %s", err)
	}
	API.RegisterControllers(b.controllers...)
	API.RegisterFilters(b.filters...)

	API.HealthSettings = b.cfg.Health.IndicatorsSettings
	for _, indicator := range b.indicators {
		API.AddHealthIndicator(indicator)
	}
	healthz, thresholds, err := health.Configure(b.ctx, API.Registry)
	if err != nil {
		return nil, fmt.Errorf("error configuring health checks: %s", err)
	}
	API.RegisterControllers(healthcheck.NewController(healthz, thresholds))

	// setup server and add relevant global middleware
	srv := server.New(b.cfg.Server, API)
	srv.Use(filters.NewRecoveryMiddleware())

	return &Broker{
		ctx:     b.ctx,
		Server:  srv,
		Engine:  engine,
		health:  healthz,
		closers: b.closers,
	}, nil
}

func (b *Builder) catalogFromConfiguration() (*catalog.ReloadingProvider, error) {
	source := configSource(b.environment)
	if b.cfg.Catalog.File != "" {
		source = catalog.FileSource(b.cfg.Catalog.File, b.cfg.Catalog.Path)
	}
	provider, err := catalog.NewReloadingProvider(b.ctx, source)
	if err != nil {
		return nil, fmt.Errorf("error loading catalog: %s", err)
	}
	if watcher, ok := b.environment.(env.Watcher); ok {
		watcher.AddConfigChangeHandler(provider.OnConfigChange(b.ctx))
	}
	b.indicators = append(b.indicators, provider)
	return provider, nil
}

// configSource reads the inline catalog from the configuration on every load, so that a reload after
// a configuration file change sees the new values. Viper lowercases map keys, so the section is taken
// from the configuration file itself whenever there is one; the environment is only consulted when the
// file has no catalog section.
func configSource(environment env.Environment) catalog.Source {
	return func(ctx context.Context) (map[string]interface{}, error) {
		if file := catalogConfigFile(environment); file != "" {
			tree, err := catalog.FileSource(file, catalogConfigKey)(ctx)
			if err == nil {
				return tree, nil
			}
			if !errors.Is(err, catalog.ErrPathNotFound) {
				return nil, err
			}
		}
		tree, err := cast.ToStringMapE(environment.Get(catalogConfigKey))
		if err != nil {
			return nil, fmt.Errorf("could not read the %s configuration section: %s", catalogConfigKey, err)
		}
		return tree, nil
	}
}

// catalogConfigFile returns the configuration file if it can be decoded as YAML or JSON
func catalogConfigFile(environment env.Environment) string {
	configFile, ok := environment.(env.ConfigFile)
	if !ok {
		return ""
	}
	file := configFile.ConfigFileUsed()
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yml", ".yaml", ".json":
		return file
	}
	return ""
}

func (b *Builder) close() {
	closeAll(b.ctx, b.closers)
}

func closeAll(ctx context.Context, closers []func() error) {
	for _, closer := range closers {
		if err := closer(); err != nil {
			log.C(ctx).WithError(err).Error("Could not release broker resource")
		}
	}
}

// Broker is a runnable service broker
type Broker struct {
	ctx     context.Context
	Server  *server.Server
	Engine  *flow.Engine
	health  h.IHealth
	closers []func() error
}

// Run starts the health checks and serves requests until the context of the broker is cancelled
func (b *Broker) Run() {
	defer closeAll(b.ctx, b.closers)

	if err := b.health.Start(); err != nil {
		log.C(b.ctx).WithError(err).Error("Could not start health checks")
	}
	defer func() {
		if err := b.health.Stop(); err != nil {
			log.C(b.ctx).WithError(err).Debug("Could not stop health checks")
		}
	}()

	wg := &sync.WaitGroup{}
	b.Server.Run(b.ctx, wg)
	wg.Wait()
}
