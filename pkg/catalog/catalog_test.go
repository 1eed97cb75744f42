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

package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/Peripli/service-broker/pkg/catalog"
	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/fsnotify/fsnotify"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

const catalogYAML = `
broker:
  catalog:
    services:
      0:
        id: svc-1
        name: database
        description: relational database
        bindable: "true"
        plan_updateable: true
        tags:
          0: sql
        plans:
          0:
            id: plan-small
            name: small
            description: small plan
            free: true
            metadata:
              costs:
                0:
                  unit: MONTHLY
          1:
            id: plan-large
            name: large
            description: large plan
            bindable: false
`

var _ = Describe("Catalog", func() {
	var (
		ctx    context.Context
		tmpDir string
		file   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		tmpDir, err = os.MkdirTemp("", "catalog")
		Expect(err).ToNot(HaveOccurred())
		file = filepath.Join(tmpDir, "catalog.yml")
		Expect(os.WriteFile(file, []byte(catalogYAML), 0600)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(tmpDir)).To(Succeed())
	})

	Describe("Load", func() {
		It("loads, normalizes and decodes the selected document", func() {
			result, err := catalog.Load(ctx, catalog.FileSource(file, "broker.catalog"))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Services).To(HaveLen(1))

			service := result.Services[0]
			Expect(service.ID).To(Equal("svc-1"))
			Expect(service.Bindable).To(BeTrue())
			Expect(service.Tags).To(Equal([]string{"sql"}))
			Expect(service.Plans).To(HaveLen(2))
			Expect(service.Plans[0].ID).To(Equal("plan-small"))
			Expect(*service.Plans[0].Free).To(BeTrue())
			Expect(service.Plans[0].Metadata["costs"]).To(Equal([]interface{}{map[string]interface{}{"unit": "MONTHLY"}}))
			Expect(service.Plans[1].ID).To(Equal("plan-large"))
		})

		It("fails for a missing path", func() {
			_, err := catalog.Load(ctx, catalog.FileSource(file, "broker.missing"))
			Expect(errors.Is(err, catalog.ErrPathNotFound)).To(BeTrue())
		})

		It("fails for a missing file", func() {
			_, err := catalog.Load(ctx, catalog.FileSource(filepath.Join(tmpDir, "none.yml"), ""))
			Expect(err).To(HaveOccurred())
		})

		It("decodes trees from the configuration", func() {
			result, err := catalog.Load(ctx, catalog.TreeSource(map[string]interface{}{
				"services": map[string]interface{}{
					"0": map[string]interface{}{
						"id":   "s",
						"name": "service",
						"plans": map[string]interface{}{
							"0": map[string]interface{}{"id": "p1", "name": "one"},
							"1": map[string]interface{}{"id": "p2", "name": "two"},
						},
					},
				},
			}))
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Services[0].Plans).To(HaveLen(2))
			Expect(result.Services[0].Plans[1].ID).To(Equal("p2"))
		})
	})

	Describe("Validate", func() {
		It("rejects duplicate plan ids", func() {
			_, err := catalog.Decode(map[string]interface{}{
				"services": []interface{}{
					map[string]interface{}{"id": "s", "name": "service", "plans": []interface{}{
						map[string]interface{}{"id": "p", "name": "one"},
						map[string]interface{}{"id": "p", "name": "two"},
					}},
				},
			})
			Expect(err).To(MatchError(ContainSubstring("not unique")))
		})

		It("rejects services without plans", func() {
			_, err := catalog.Decode(map[string]interface{}{
				"services": []interface{}{map[string]interface{}{"id": "s", "name": "service"}},
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("FindPlan", func() {
		var result *osb.Catalog

		BeforeEach(func() {
			var err error
			result, err = catalog.Load(ctx, catalog.FileSource(file, "broker.catalog"))
			Expect(err).ToNot(HaveOccurred())
		})

		It("finds services and plans", func() {
			service, plan, err := catalog.FindPlan(result, "svc-1", "plan-large")
			Expect(err).ToNot(HaveOccurred())
			Expect(service.Name).To(Equal("database"))
			Expect(plan.Name).To(Equal("large"))
			Expect(catalog.Bindable(service, plan)).To(BeFalse())
			Expect(catalog.PlanUpdatable(service)).To(BeTrue())
		})

		It("returns not found failures", func() {
			_, _, err := catalog.FindPlan(result, "svc-2", "")
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())

			_, _, err = catalog.FindPlan(result, "svc-1", "plan-none")
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())
		})
	})

	Describe("ReloadingProvider", func() {
		var provider *catalog.ReloadingProvider

		BeforeEach(func() {
			var err error
			provider, err = catalog.NewReloadingProvider(ctx, catalog.FileSource(file, "broker.catalog"))
			Expect(err).ToNot(HaveOccurred())
		})

		It("serves the loaded catalog and reports healthy", func() {
			result, err := provider.GetCatalog(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Services).To(HaveLen(1))

			_, err = provider.Status()
			Expect(err).ToNot(HaveOccurred())
		})

		It("keeps the previous catalog when a reload fails", func() {
			Expect(os.WriteFile(file, []byte("broker: [broken"), 0600)).To(Succeed())
			provider.OnConfigChange(ctx)(nil)(fsnotify.Event{Name: file, Op: fsnotify.Write})

			result, err := provider.GetCatalog(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Services).To(HaveLen(1))

			_, err = provider.Status()
			Expect(err).To(HaveOccurred())
		})

		It("fails to start with an invalid catalog", func() {
			_, err := catalog.NewReloadingProvider(ctx, catalog.TreeSource(map[string]interface{}{
				"services": []interface{}{map[string]interface{}{"name": "no id"}},
			}))
			Expect(err).To(HaveOccurred())
		})
	})
})
