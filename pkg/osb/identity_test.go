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

package osb_test

import (
	"encoding/base64"

	"github.com/Peripli/service-broker/pkg/osb"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Originating identity", func() {
	encode := func(s string) string {
		return base64.StdEncoding.EncodeToString([]byte(s))
	}

	It("returns nil for an empty header", func() {
		identity, err := osb.ParseOriginatingIdentity("")
		Expect(err).ToNot(HaveOccurred())
		Expect(identity).To(BeNil())
		Expect(identity.UserID()).To(BeEmpty())
	})

	It("parses the platform and the value", func() {
		identity, err := osb.ParseOriginatingIdentity("cloudfoundry " + encode(`{"user_id":"683ea748"}`))
		Expect(err).ToNot(HaveOccurred())
		Expect(identity.Platform).To(Equal("cloudfoundry"))
		Expect(identity.UserID()).To(Equal("683ea748"))
	})

	expectInvalid := func(header string) {
		_, err := osb.ParseOriginatingIdentity(header)
		Expect(err).To(HaveOccurred())
		Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
	}

	It("rejects a header without value", func() {
		expectInvalid("cloudfoundry")
	})

	It("rejects a value that is not base64", func() {
		expectInvalid("cloudfoundry !!!")
	})

	It("rejects a value that is not JSON", func() {
		expectInvalid("kubernetes " + encode("not json"))
	})

	It("rejects a value that is not a JSON object", func() {
		expectInvalid("kubernetes " + encode(`["a"]`))
	})
})
