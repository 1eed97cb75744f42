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

package redis

import (
	"context"
	"time"

	"github.com/Peripli/service-broker/storage"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Redis reported store", func() {
	var (
		server *miniredis.Miniredis
		client *goredis.Client
		store  *ReportedStore
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		server, err = miniredis.Run()
		Expect(err).ToNot(HaveOccurred())

		client, err = NewClient(ctx, &Settings{URI: "redis://" + server.Addr() + "/0"})
		Expect(err).ToNot(HaveOccurred())
		store = NewReportedStore(client, "test:", time.Hour)
	})

	AfterEach(func() {
		client.Close()
		server.Close()
	})

	It("reports a key only once", func() {
		key := storage.ReportKey{Resource: storage.InstanceResource("i1"), Operation: "op1"}
		first, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(first).To(BeTrue())

		second, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(second).To(BeFalse())
	})

	It("keeps the keys under the prefix with an expiration", func() {
		key := storage.ReportKey{Resource: storage.InstanceResource("i1"), Operation: "op1"}
		_, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())

		Expect(server.Exists("test:reported:instance/i1")).To(BeTrue())
		Expect(server.TTL("test:reported:instance/i1")).To(Equal(time.Hour))
	})

	It("forgets expired keys", func() {
		key := storage.ReportKey{Resource: storage.InstanceResource("i1")}
		_, _ = store.MarkReported(ctx, key)
		server.FastForward(2 * time.Hour)

		again, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(BeTrue())
	})

	It("reports again after the resource is cleared", func() {
		key := storage.ReportKey{Resource: storage.BindingResource("i1", "b1"), Operation: "op1"}
		_, _ = store.MarkReported(ctx, key)
		Expect(store.Clear(ctx, key.Resource)).To(Succeed())

		again, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(BeTrue())
	})

	It("returns errors when the server is gone", func() {
		server.Close()
		_, err := store.MarkReported(ctx, storage.ReportKey{Resource: "instance/i1"})
		Expect(err).To(HaveOccurred())
	})

	Describe("HealthIndicator", func() {
		It("is up while the server answers", func() {
			indicator := NewHealthIndicator(client)
			Expect(indicator.Name()).To(Equal("redis"))
			_, err := indicator.Status()
			Expect(err).ToNot(HaveOccurred())

			server.Close()
			_, err = indicator.Status()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Settings", func() {
		It("is disabled without an URI", func() {
			settings := DefaultSettings()
			Expect(settings.Enabled()).To(BeFalse())
			Expect(settings.Validate()).To(Succeed())
		})

		It("rejects invalid URIs", func() {
			settings := &Settings{URI: "http://localhost"}
			Expect(settings.Validate()).To(HaveOccurred())
		})
	})
})
