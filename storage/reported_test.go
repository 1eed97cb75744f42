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

package storage

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("MemoryStore", func() {
	var (
		store *MemoryStore
		ctx   context.Context
		now   time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		store = NewMemoryStore(time.Hour)
		store.now = func() time.Time { return now }
	})

	It("reports a key only once", func() {
		key := ReportKey{Resource: InstanceResource("i1"), Operation: "op1"}
		first, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(first).To(BeTrue())

		second, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(second).To(BeFalse())
	})

	It("distinguishes operations of the same resource", func() {
		first, _ := store.MarkReported(ctx, ReportKey{Resource: InstanceResource("i1"), Operation: "op1"})
		other, _ := store.MarkReported(ctx, ReportKey{Resource: InstanceResource("i1"), Operation: "op2"})
		Expect(first).To(BeTrue())
		Expect(other).To(BeTrue())
	})

	It("reports again after the resource is cleared", func() {
		key := ReportKey{Resource: BindingResource("i1", "b1")}
		_, _ = store.MarkReported(ctx, key)
		Expect(store.Clear(ctx, key.Resource)).To(Succeed())

		again, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(BeTrue())
	})

	It("does not clear bindings when their instance is cleared", func() {
		binding := ReportKey{Resource: BindingResource("i1", "b1")}
		_, _ = store.MarkReported(ctx, binding)
		Expect(store.Clear(ctx, InstanceResource("i1"))).To(Succeed())

		again, _ := store.MarkReported(ctx, binding)
		Expect(again).To(BeFalse())
	})

	It("forgets keys older than the retention", func() {
		key := ReportKey{Resource: InstanceResource("i1"), Operation: "op1"}
		_, _ = store.MarkReported(ctx, key)

		now = now.Add(2 * time.Hour)
		again, err := store.MarkReported(ctx, key)
		Expect(err).ToNot(HaveOccurred())
		Expect(again).To(BeTrue())
	})

	It("returns true to exactly one of many concurrent callers", func() {
		key := ReportKey{Resource: InstanceResource("i1"), Operation: "op1"}
		var (
			wg    sync.WaitGroup
			mutex sync.Mutex
			wins  int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				first, err := store.MarkReported(ctx, key)
				Expect(err).ToNot(HaveOccurred())
				if first {
					mutex.Lock()
					wins++
					mutex.Unlock()
				}
			}()
		}
		wg.Wait()
		Expect(wins).To(Equal(1))
	})
})

var _ = Describe("Settings", func() {
	It("accepts the defaults", func() {
		Expect(DefaultSettings().Validate()).To(Succeed())
	})

	It("requires an URI for postgres", func() {
		settings := DefaultSettings()
		settings.Type = TypePostgres
		Expect(settings.Validate()).To(HaveOccurred())
		settings.URI = "postgres://localhost:5432/broker"
		Expect(settings.Validate()).To(Succeed())
	})

	It("rejects unknown types", func() {
		settings := DefaultSettings()
		settings.Type = "etcd"
		Expect(settings.Validate()).To(MatchError(ContainSubstring("etcd")))
	})

	It("rejects a non-positive retention", func() {
		settings := DefaultSettings()
		settings.Retention = 0
		Expect(settings.Validate()).To(HaveOccurred())
	})
})
