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
	"strconv"

	"github.com/Peripli/service-broker/pkg/catalog"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
)

var _ = Describe("Normalize", func() {
	numbered := func(n int) map[string]interface{} {
		m := make(map[string]interface{}, n)
		for i := 0; i < n; i++ {
			m[strconv.Itoa(i)] = "v" + strconv.Itoa(i)
		}
		return m
	}

	It("converts numbered maps of any size into sequences in index order", func() {
		for n := 1; n <= 12; n++ {
			result := catalog.NormalizeValue(numbered(n))
			Expect(result).To(HaveLen(n))
			items, ok := result.([]interface{})
			Expect(ok).To(BeTrue())
			for i, item := range items {
				Expect(item).To(Equal("v" + strconv.Itoa(i)))
			}
		}
	})

	table.DescribeTable("leaves mappings that are not numbered maps",
		func(m map[string]interface{}) {
			Expect(catalog.NormalizeValue(m)).To(Equal(m))
		},
		table.Entry("empty mapping", map[string]interface{}{}),
		table.Entry("gap between indexes", map[string]interface{}{"0": "a", "2": "c"}),
		table.Entry("missing zero", map[string]interface{}{"1": "a", "2": "b"}),
		table.Entry("mixed keys", map[string]interface{}{"0": "a", "1": "b", "name": "c"}),
		table.Entry("nil value", map[string]interface{}{"0": "a", "1": nil}),
		table.Entry("padded index", map[string]interface{}{"00": "a"}),
	)

	It("converts the plans of the end-to-end example", func() {
		tree := map[string]interface{}{
			"plans": map[string]interface{}{
				"0": map[string]interface{}{"id": "p1"},
				"1": map[string]interface{}{"id": "p2"},
			},
		}
		Expect(catalog.Normalize(tree)).To(Equal(map[string]interface{}{
			"plans": []interface{}{
				map[string]interface{}{"id": "p1"},
				map[string]interface{}{"id": "p2"},
			},
		}))
	})

	It("normalizes nested structures depth first", func() {
		tree := map[string]interface{}{
			"services": map[string]interface{}{
				"0": map[string]interface{}{
					"tags": map[string]interface{}{"0": "sql", "1": "relational"},
					"metadata": map[string]interface{}{
						"costs": []interface{}{
							map[string]interface{}{"amount": map[string]interface{}{"0": 1, "1": 2}},
						},
					},
				},
			},
			"scalar": 42,
		}
		Expect(catalog.Normalize(tree)).To(Equal(map[string]interface{}{
			"services": []interface{}{
				map[string]interface{}{
					"tags": []interface{}{"sql", "relational"},
					"metadata": map[string]interface{}{
						"costs": []interface{}{
							map[string]interface{}{"amount": []interface{}{1, 2}},
						},
					},
				},
			},
			"scalar": 42,
		}))
	})

	It("treats YAML mappings with non-string keys as mappings", func() {
		value := map[interface{}]interface{}{0: "a", 1: "b"}
		Expect(catalog.NormalizeValue(value)).To(Equal([]interface{}{"a", "b"}))

		value = map[interface{}]interface{}{"name": "x", 1: "b"}
		Expect(catalog.NormalizeValue(value)).To(Equal(map[string]interface{}{"name": "x", "1": "b"}))
	})

	It("keeps the root a mapping and does not modify the input", func() {
		tree := map[string]interface{}{"0": "a"}
		Expect(catalog.Normalize(tree)).To(Equal(map[string]interface{}{"0": "a"}))

		input := map[string]interface{}{"plans": map[string]interface{}{"0": "p"}}
		catalog.Normalize(input)
		Expect(input["plans"]).To(Equal(map[string]interface{}{"0": "p"}))
	})

	It("returns nil for a nil tree", func() {
		Expect(catalog.Normalize(nil)).To(BeNil())
	})

	table.DescribeTable("is idempotent",
		func(tree map[string]interface{}) {
			once := catalog.Normalize(tree)
			Expect(catalog.Normalize(once)).To(Equal(once))
		},
		table.Entry("empty", map[string]interface{}{}),
		table.Entry("numbered", map[string]interface{}{"a": numbered(3)}),
		table.Entry("nested numbered", map[string]interface{}{"a": map[string]interface{}{"0": numbered(2), "1": map[string]interface{}{}}}),
		table.Entry("sequence of numbered", map[string]interface{}{"a": []interface{}{numbered(1), "x", nil}}),
		table.Entry("gap", map[string]interface{}{"a": map[string]interface{}{"0": "x", "5": "y"}}),
		table.Entry("nil values", map[string]interface{}{"a": map[string]interface{}{"0": nil}}),
	)
})
