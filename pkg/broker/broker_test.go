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

package broker_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/Peripli/service-broker/config"
	"github.com/Peripli/service-broker/internal/memory"
	"github.com/Peripli/service-broker/pkg/broker"
	"github.com/Peripli/service-broker/pkg/catalog"
	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/alicebob/miniredis/v2"
	"github.com/gavv/httpexpect/v2"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

var _ = Describe("Builder", func() {
	var (
		ctx         context.Context
		cancel      context.CancelFunc
		environment env.Environment
	)

	inlineCatalog := map[string]interface{}{
		"services": []interface{}{
			map[string]interface{}{
				"id":          "service-id",
				"name":        "database",
				"description": "database",
				"bindable":    true,
				"plans": []interface{}{
					map[string]interface{}{"id": "plan-id", "name": "small", "description": "small"},
				},
			},
		},
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		set := pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.AddPFlags(set)
		Expect(set.Parse([]string{})).To(Succeed())

		var err error
		environment, err = env.New(ctx, set)
		Expect(err).ToNot(HaveOccurred())
		environment.Set("api.osb_version", "2.14")
		environment.Set("catalog", inlineCatalog)
	})

	AfterEach(func() {
		cancel()
	})

	build := func() *broker.Broker {
		builder, err := broker.New(ctx, cancel, environment)
		Expect(err).ToNot(HaveOccurred())

		memoryBroker := memory.NewBroker(memory.DefaultSettings())
		b, err := builder.
			WithInstanceProvisioner(memoryBroker).
			WithBindingProvisioner(memoryBroker.Bindings()).
			Build()
		Expect(err).ToNot(HaveOccurred())
		return b
	}

	It("fails for invalid configuration", func() {
		environment.Set("storage.type", "cassandra")
		_, err := broker.New(ctx, cancel, environment)
		Expect(err).To(HaveOccurred())
	})

	It("requires an instance provisioner", func() {
		builder, err := broker.New(ctx, cancel, environment)
		Expect(err).ToNot(HaveOccurred())

		_, err = builder.Build()
		Expect(err).To(MatchError(ContainSubstring("instance provisioner")))
	})

	It("fails for an invalid catalog", func() {
		environment.Set("catalog", map[string]interface{}{
			"services": []interface{}{map[string]interface{}{"id": "service-id", "name": "no-plans"}},
		})
		builder, err := broker.New(ctx, cancel, environment)
		Expect(err).ToNot(HaveOccurred())

		_, err = builder.WithInstanceProvisioner(memory.NewBroker(memory.DefaultSettings())).Build()
		Expect(err).To(HaveOccurred())
	})

	It("accepts a custom catalog provider", func() {
		builder, err := broker.New(ctx, cancel, environment)
		Expect(err).ToNot(HaveOccurred())

		custom, err := catalog.Decode(inlineCatalog)
		Expect(err).ToNot(HaveOccurred())
		b, err := builder.
			WithCatalogProvider(catalog.NewStaticProvider(custom)).
			WithInstanceProvisioner(memory.NewBroker(memory.DefaultSettings())).
			Build()
		Expect(err).ToNot(HaveOccurred())

		served, err := b.Engine.GetCatalog(ctx)
		Expect(err).ToNot(HaveOccurred())
		Expect(served).To(Equal(custom))
	})

	Context("when built", func() {
		var (
			testServer *httptest.Server
			expect     *httpexpect.Expect
		)

		JustBeforeEach(func() {
			testServer = httptest.NewServer(build().Server.Router)
			expect = httpexpect.New(GinkgoT(), testServer.URL)
		})

		AfterEach(func() {
			testServer.Close()
		})

		It("serves the configured catalog", func() {
			expect.GET("/v2/catalog").WithHeader(osb.HeaderAPIVersion, "2.14").
				Expect().Status(http.StatusOK).
				JSON().Path("$.services[0].plans[0].id").String().Equal("plan-id")
		})

		It("serves the health endpoint", func() {
			expect.GET("/health").Expect().Status(http.StatusOK).
				JSON().Object().ContainsKey("status")
		})

		It("serves metrics", func() {
			expect.GET("/metrics").Expect().Status(http.StatusOK).
				Body().Contains("go_goroutines")
		})

		It("provisions through the registered provisioner", func() {
			expect.PUT("/v2/service_instances/1").WithHeader(osb.HeaderAPIVersion, "2.14").
				WithJSON(map[string]interface{}{"service_id": "service-id", "plan_id": "plan-id"}).
				Expect().Status(http.StatusCreated)
		})

		Context("with a catalog in the configuration file", func() {
			const configuration = `
api:
  osb_version: "2.14"
catalog:
  services:
    - id: service-id
      name: database
      description: database
      bindable: true
      metadata:
        displayName: In-memory DB
        longDescription: Reference database
      plans:
        - id: plan-id
          name: small
          description: small
          metadata:
            displayName: Small
          schemas:
            service_instance:
              create:
                parameters:
                  type: object
                  additionalProperties: false
                  properties:
                    name:
                      type: string
                      minLength: 3
`
			var configDir string

			BeforeEach(func() {
				var err error
				configDir, err = os.MkdirTemp("", "broker-config")
				Expect(err).ToNot(HaveOccurred())
				Expect(os.WriteFile(filepath.Join(configDir, "application.yml"), []byte(configuration), 0600)).To(Succeed())

				set := pflag.NewFlagSet("test", pflag.ContinueOnError)
				config.AddPFlags(set)
				env.CreatePFlagsForConfigFile(set)
				Expect(set.Parse([]string{"--file.location=" + configDir})).To(Succeed())
				environment, err = env.New(ctx, set)
				Expect(err).ToNot(HaveOccurred())
			})

			AfterEach(func() {
				Expect(os.RemoveAll(configDir)).To(Succeed())
			})

			It("keeps the case of metadata and schema keys", func() {
				service := expect.GET("/v2/catalog").WithHeader(osb.HeaderAPIVersion, "2.14").
					Expect().Status(http.StatusOK).
					JSON().Path("$.services[0]").Object()

				service.Path("$.metadata").Object().ContainsKey("displayName").ContainsKey("longDescription")
				plan := service.Path("$.plans[0]").Object()
				plan.Path("$.metadata.displayName").String().Equal("Small")
				parameters := plan.Path("$.schemas.service_instance.create.parameters").Object()
				parameters.ContainsKey("additionalProperties")
				parameters.Path("$.properties.name").Object().ContainsKey("minLength")
			})
		})

		Context("with redis storage", func() {
			var redisServer *miniredis.Miniredis

			BeforeEach(func() {
				var err error
				redisServer, err = miniredis.Run()
				Expect(err).ToNot(HaveOccurred())
				environment.Set("storage.type", "redis")
				environment.Set("redis.uri", "redis://"+redisServer.Addr())
				environment.Set("api.rate_limiting_enabled", true)
			})

			AfterEach(func() {
				redisServer.Close()
			})

			It("shares the rate limiter counters through redis", func() {
				expect.GET("/v2/catalog").WithHeader(osb.HeaderAPIVersion, "2.14").
					Expect().Status(http.StatusOK).
					Header("X-RateLimit-Limit").NotEmpty()

				Expect(redisServer.Keys()).ToNot(BeEmpty())
			})
		})
	})
})
