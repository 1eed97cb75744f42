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
	"errors"
	"fmt"
	"net/http"

	"github.com/Peripli/service-broker/pkg/osb"
	"github.com/Peripli/service-broker/pkg/util"
	. "github.com/onsi/ginkgo"
	"github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gstruct"
)

var _ = Describe("Error mapper", func() {
	table.DescribeTable("maps failures to protocol statuses",
		func(op osb.Operation, err error, expectedStatus int, expectedCode string) {
			status, message := osb.MapError(op, err)
			Expect(status).To(Equal(expectedStatus))
			Expect(message.Error).To(Equal(expectedCode))
			Expect(message.Description).ToNot(BeEmpty())
		},
		table.Entry("version mismatch", osb.OperationGetCatalog, &osb.VersionMismatchError{Expected: "2.13"}, http.StatusPreconditionFailed, ""),
		table.Entry("already exists", osb.OperationCreateInstance, osb.AlreadyExists("instance exists"), http.StatusConflict, ""),
		table.Entry("not found on get", osb.OperationGetInstance, osb.NotFound("no instance"), http.StatusNotFound, ""),
		table.Entry("not found on bind", osb.OperationCreateBinding, osb.NotFound("no instance"), http.StatusNotFound, ""),
		table.Entry("not found on delete instance", osb.OperationDeleteInstance, osb.NotFound("no instance"), http.StatusGone, ""),
		table.Entry("not found on delete binding", osb.OperationDeleteBinding, osb.NotFound("no binding"), http.StatusGone, ""),
		table.Entry("not found on last operation", osb.OperationInstanceLastOperation, osb.NotFound("gone"), http.StatusGone, ""),
		table.Entry("async required", osb.OperationCreateInstance, osb.AsyncRequired(), http.StatusUnprocessableEntity, "AsyncRequired"),
		table.Entry("invalid parameters", osb.OperationCreateInstance, osb.InvalidParameters("bad"), http.StatusBadRequest, ""),
		table.Entry("update not supported", osb.OperationUpdateInstance, osb.UpdateNotSupported("no"), http.StatusUnprocessableEntity, ""),
		table.Entry("concurrency", osb.OperationUpdateInstance, osb.Concurrency(), http.StatusUnprocessableEntity, "ConcurrencyError"),
		table.Entry("maintenance info conflict", osb.OperationUpdateInstance, osb.MaintenanceInfoConflict("old"), http.StatusUnprocessableEntity, "MaintenanceInfoConflict"),
		table.Entry("binding requires app", osb.OperationCreateBinding, osb.BindingRequiresApp(), http.StatusUnprocessableEntity, "RequiresApp"),
		table.Entry("unavailable", osb.OperationCreateInstance, osb.Unavailable("later"), http.StatusServiceUnavailable, ""),
		table.Entry("wrapped failure", osb.OperationCreateInstance, fmt.Errorf("provision: %w", osb.AlreadyExists("dup")), http.StatusConflict, ""),
	)

	Context("for unclassified errors", func() {
		It("returns a generic internal error without details", func() {
			status, message := osb.MapError(osb.OperationCreateInstance, errors.New("connection refused to 10.0.0.1"))
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(message.Description).To(Equal("Internal server error"))
			Expect(message.Description).ToNot(ContainSubstring("10.0.0.1"))
		})

		It("hides the cause of internal failures", func() {
			status, message := osb.MapError(osb.OperationCreateBinding, osb.Internal(errors.New("secret")))
			Expect(status).To(Equal(http.StatusInternalServerError))
			Expect(message.Description).To(Equal("Internal server error"))
		})

		It("handles a nil error as internal", func() {
			status, _ := osb.MapError(osb.OperationGetCatalog, nil)
			Expect(status).To(Equal(http.StatusInternalServerError))
		})
	})

	It("copies the tri-state flags", func() {
		failure := osb.UpdateNotSupported("plan change rejected").WithInstanceUsable(true).WithUpdateRepeatable(false)
		_, message := osb.MapError(osb.OperationUpdateInstance, failure)
		Expect(message.InstanceUsable).To(PointTo(BeTrue()))
		Expect(message.UpdateRepeatable).To(PointTo(BeFalse()))

		_, message = osb.MapError(osb.OperationUpdateInstance, osb.UpdateNotSupported("no flags"))
		Expect(message.InstanceUsable).To(BeNil())
		Expect(message.UpdateRepeatable).To(BeNil())
	})

	It("passes HTTP errors through", func() {
		status, message := osb.MapError(osb.OperationCreateInstance, &util.HTTPError{
			ErrorType:   "PayloadTooLarge",
			Description: "Payload too large",
			StatusCode:  http.StatusRequestEntityTooLarge,
		})
		Expect(status).To(Equal(http.StatusRequestEntityTooLarge))
		Expect(message.Error).To(Equal("PayloadTooLarge"))
	})

	It("builds HTTP errors", func() {
		httpErr := osb.ToHTTPError(osb.OperationDeleteBinding, osb.NotFound("binding b1 not found"))
		Expect(httpErr.StatusCode).To(Equal(http.StatusGone))
		Expect(httpErr.Description).To(Equal("binding b1 not found"))
	})

	Describe("KindOf", func() {
		It("classifies wrapped failures", func() {
			err := fmt.Errorf("outer: %w", osb.Concurrency())
			Expect(osb.KindOf(err)).To(Equal(osb.KindConcurrency))
			Expect(osb.IsKind(err, osb.KindConcurrency)).To(BeTrue())
			Expect(osb.KindOf(errors.New("plain"))).To(Equal(osb.KindInternal))
		})
	})
})
