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

package filters

import (
	"errors"
	"net/http"

	"github.com/Peripli/service-broker/pkg/log"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Logging Filter", func() {
	var (
		loggingFilter *Logging
		handler       *recordingHandler
	)

	BeforeEach(func() {
		loggingFilter = &Logging{}
		handler = &recordingHandler{}
	})

	Describe("Correlation Id", func() {
		Context("When none is provided in header", func() {
			It("Should generate a new for logger", func() {
				resp, err := loggingFilter.Run(newRequest(http.MethodGet, "/v2/catalog"), handler)
				Expect(err).ToNot(HaveOccurred())

				logger := log.C(handler.requests[0].Context())
				correlationID := logger.Data[log.FieldCorrelationID].(string)
				Expect(correlationID).ToNot(BeEmpty())
				Expect(resp.Header.Get("X-Correlation-ID")).To(Equal(correlationID))
			})
		})

		Context("When one is provided in header", func() {
			It("Uses it for logger", func() {
				request := newRequest(http.MethodGet, "/v2/catalog")
				request.Header.Set("X-Correlation-ID", "correlationId")
				_, err := loggingFilter.Run(request, handler)
				Expect(err).ToNot(HaveOccurred())

				logger := log.C(handler.requests[0].Context())
				Expect(logger.Data[log.FieldCorrelationID]).To(Equal("correlationId"))
			})
		})
	})

	It("passes handler errors through", func() {
		handler.err = errors.New("failed")
		_, err := loggingFilter.Run(newRequest(http.MethodGet, "/v2/catalog"), handler)
		Expect(err).To(MatchError("failed"))
	})
})
