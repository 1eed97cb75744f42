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

package config_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/Peripli/service-broker/config"
	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/storage"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
)

var _ = Describe("config", func() {
	var settings *config.Settings

	BeforeEach(func() {
		settings = config.DefaultSettings()
	})

	Describe("Validate", func() {
		It("accepts the defaults", func() {
			Expect(settings.Validate()).To(Succeed())
		})

		It("rejects a missing port", func() {
			settings.Server.Port = 0
			Expect(settings.Validate()).To(HaveOccurred())
		})

		It("rejects an unknown log level", func() {
			settings.Log.Level = "loud"
			Expect(settings.Validate()).To(HaveOccurred())
		})

		It("rejects an empty broker API version", func() {
			settings.API.OSBVersion = ""
			Expect(settings.Validate()).To(HaveOccurred())
		})

		It("rejects a postgres store without URI", func() {
			settings.Storage.Type = storage.TypePostgres
			Expect(settings.Validate()).To(HaveOccurred())
		})

		It("rejects a redis store without a redis server", func() {
			settings.Storage.Type = storage.TypeRedis
			Expect(settings.Validate()).To(HaveOccurred())

			settings.Redis.URI = "redis://localhost:6379/0"
			Expect(settings.Validate()).To(Succeed())
		})

		It("rejects a catalog path without catalog file", func() {
			settings.Catalog.Path = "broker.catalog"
			Expect(settings.Validate()).To(HaveOccurred())
		})
	})

	Describe("New", func() {
		var configDir string

		BeforeEach(func() {
			var err error
			configDir, err = os.MkdirTemp("", "broker-config")
			Expect(err).ToNot(HaveOccurred())
		})

		AfterEach(func() {
			Expect(os.RemoveAll(configDir)).To(Succeed())
		})

		newEnvironment := func(args ...string) env.Environment {
			set := pflag.NewFlagSet("test", pflag.ContinueOnError)
			env.CreatePFlagsForConfigFile(set)
			config.AddPFlags(set)
			Expect(set.Parse(append([]string{"--file.location=" + configDir}, args...))).To(Succeed())

			environment, err := env.New(context.Background(), set)
			Expect(err).ToNot(HaveOccurred())
			return environment
		}

		It("keeps the defaults for unset values", func() {
			loaded, err := config.New(newEnvironment())
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded.Server.Port).To(Equal(config.DefaultSettings().Server.Port))
			Expect(loaded.API.OSBVersion).To(Equal(config.DefaultSettings().API.OSBVersion))
			Expect(loaded.Storage.Type).To(Equal(storage.TypeMemory))
		})

		It("reads flags", func() {
			loaded, err := config.New(newEnvironment("--server.port=9090", "--api.osb_version=*"))
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded.Server.Port).To(Equal(9090))
			Expect(loaded.API.OSBVersion).To(Equal("*"))
		})

		It("reads the configuration file", func() {
			content := []byte("log:\n  level: debug\nstorage:\n  retention: 1h\nredis:\n  prefix: test:\n")
			Expect(os.WriteFile(filepath.Join(configDir, "application.yml"), content, 0600)).To(Succeed())

			loaded, err := config.New(newEnvironment())
			Expect(err).ToNot(HaveOccurred())
			Expect(loaded.Log.Level).To(Equal("debug"))
			Expect(loaded.Storage.Retention).To(Equal(time.Hour))
			Expect(loaded.Redis.Prefix).To(Equal("test:"))
		})
	})
})
