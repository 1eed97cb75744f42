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

package flow

import (
	"context"
	"errors"

	"github.com/Peripli/service-broker/pkg/osb"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fetchingInstances struct {
	fakeInstances
}

func (f *fetchingInstances) GetInstance(ctx context.Context, req *osb.GetInstanceRequest) (*osb.GetInstanceResponse, error) {
	return &osb.GetInstanceResponse{ServiceID: "db-service", PlanID: "small"}, nil
}

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		rec       *recorder
		instances *fakeInstances
		bindings  *fakeBindings
		metrics   *Metrics
		flows     *Flows
		engine    *Engine
		createErr *testHook[*osb.ProvisionRequest, *osb.ProvisionResponse]
	)

	newEngine := func() {
		var err error
		engine, err = NewEngine(EngineOptions{
			Flows:     flows,
			Catalog:   &staticCatalog{catalog: testCatalog()},
			Instances: instances,
			Bindings:  bindings,
			Metrics:   metrics,
		})
		Expect(err).ToNot(HaveOccurred())
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		rec = &recorder{}
		instances = &fakeInstances{}
		bindings = &fakeBindings{}
		metrics, err = NewMetrics(prometheus.NewRegistry())
		Expect(err).ToNot(HaveOccurred())
		createErr = newTestHook[*osb.ProvisionRequest, *osb.ProvisionResponse]("create", rec)
		flows = NewFlows(OnCreateInstance(createErr))
		newEngine()
	})

	It("requires a catalog and an instance provisioner", func() {
		_, err := NewEngine(EngineOptions{Instances: instances})
		Expect(err).To(HaveOccurred())
		_, err = NewEngine(EngineOptions{Catalog: &staticCatalog{catalog: testCatalog()}})
		Expect(err).To(HaveOccurred())
	})

	Describe("CreateInstance", func() {
		var req *osb.ProvisionRequest

		BeforeEach(func() {
			req = &osb.ProvisionRequest{InstanceID: "i1", ServiceID: "db-service", PlanID: "small"}
		})

		It("provisions the instance through the flow", func() {
			instances.provision = func(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
				return &osb.ProvisionResponse{DashboardURL: "https://dashboard/i1"}, nil
			}
			resp, err := engine.CreateInstance(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.DashboardURL).To(Equal("https://dashboard/i1"))
			Expect(rec.Events()).To(Equal([]string{"create.initialize", "create.complete"}))
			Expect(testutil.ToFloat64(metrics.operations.WithLabelValues("create-instance", OutcomeSucceeded))).To(Equal(float64(1)))
		})

		It("rejects unknown services before the flow runs", func() {
			req.ServiceID = "unknown"
			_, err := engine.CreateInstance(ctx, req)
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())
			Expect(instances.calls.Load()).To(BeZero())
			Expect(rec.Events()).To(BeEmpty())
			Expect(testutil.ToFloat64(metrics.operations.WithLabelValues("create-instance", OutcomeFailed))).To(Equal(float64(1)))
		})

		It("rejects unknown plans", func() {
			req.PlanID = "huge"
			_, err := engine.CreateInstance(ctx, req)
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())
		})

		It("replaces a missing response with an empty one", func() {
			instances.provision = func(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
				return nil, nil
			}
			resp, err := engine.CreateInstance(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp).To(Equal(&osb.ProvisionResponse{}))
		})

		Context("when the provisioner completes asynchronously", func() {
			BeforeEach(func() {
				instances.provision = func(ctx context.Context, req *osb.ProvisionRequest) (*osb.ProvisionResponse, error) {
					return &osb.ProvisionResponse{Async: true, OperationKey: "provision"}, nil
				}
			})

			It("reports an operation started for a platform that does not accept incomplete operations", func() {
				faults := &faultCollector{}
				engine, err := NewEngine(EngineOptions{
					Flows:     flows,
					Catalog:   &staticCatalog{catalog: testCatalog()},
					Instances: instances,
					Reporter:  faults,
				})
				Expect(err).ToNot(HaveOccurred())

				resp, err := engine.CreateInstance(ctx, req)
				Expect(resp).To(BeNil())
				Expect(osb.IsKind(err, osb.KindAsyncRequired)).To(BeTrue())
				Expect(faults.Faults()).To(HaveLen(1))
				Expect(faults.Faults()[0].Stage).To(Equal(StageAction))
				Expect(faults.Faults()[0].Err).To(MatchError(ContainSubstring(`"provision"`)))
			})

			It("counts the unowned operation as a fault", func() {
				_, err := engine.CreateInstance(ctx, req)
				Expect(osb.IsKind(err, osb.KindAsyncRequired)).To(BeTrue())
				Expect(createErr.Errors()).To(ConsistOf(BeIdenticalTo(err)))
				Expect(testutil.ToFloat64(metrics.hookFaults.WithLabelValues("create-instance", string(StageAction)))).To(Equal(float64(1)))
			})

			It("returns the async response if the platform accepts incomplete operations", func() {
				req.AcceptsIncomplete = true
				resp, err := engine.CreateInstance(ctx, req)
				Expect(err).ToNot(HaveOccurred())
				Expect(resp.Async).To(BeTrue())
				Expect(resp.OperationKey).To(Equal("provision"))
				Expect(testutil.ToFloat64(metrics.operations.WithLabelValues("create-instance", OutcomeAsync))).To(Equal(float64(1)))
			})
		})

		It("counts failed completion hooks", func() {
			createErr.completeErr = errors.New("audit failed")
			_, err := engine.CreateInstance(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(testutil.ToFloat64(metrics.hookFaults.WithLabelValues("create-instance", string(StageComplete)))).To(Equal(float64(1)))
		})
	})

	Describe("UpdateInstance", func() {
		var req *osb.UpdateInstanceRequest

		BeforeEach(func() {
			req = &osb.UpdateInstanceRequest{
				InstanceID:     "i1",
				ServiceID:      "db-service",
				PlanID:         "large",
				PreviousValues: &osb.PreviousValues{PlanID: "small"},
			}
		})

		It("rejects plan changes of services with fixed plans", func() {
			_, err := engine.UpdateInstance(ctx, req)
			Expect(osb.IsKind(err, osb.KindUpdateNotSupported)).To(BeTrue())
			Expect(instances.calls.Load()).To(BeZero())
		})

		It("allows updates keeping the plan", func() {
			req.PlanID = "small"
			_, err := engine.UpdateInstance(ctx, req)
			Expect(err).ToNot(HaveOccurred())
			Expect(instances.calls.Load()).To(Equal(int32(1)))
		})

		It("allows plan changes for services with updatable plans", func() {
			updatable := true
			current := testCatalog()
			current.Services[0].PlanUpdatable = &updatable
			var err error
			engine, err = NewEngine(EngineOptions{Catalog: &staticCatalog{catalog: current}, Instances: instances})
			Expect(err).ToNot(HaveOccurred())

			_, err = engine.UpdateInstance(ctx, req)
			Expect(err).ToNot(HaveOccurred())
		})
	})

	Describe("DeleteInstance", func() {
		It("passes provisioner failures through unchanged", func() {
			gone := osb.NotFound("instance i1 not found")
			instances.deprovision = func(ctx context.Context, req *osb.DeprovisionRequest) (*osb.DeprovisionResponse, error) {
				return nil, gone
			}
			_, err := engine.DeleteInstance(ctx, &osb.DeprovisionRequest{InstanceID: "i1"})
			Expect(err).To(BeIdenticalTo(gone))
		})

		It("requires accepts_incomplete for asynchronous deletes", func() {
			instances.deprovision = func(ctx context.Context, req *osb.DeprovisionRequest) (*osb.DeprovisionResponse, error) {
				return &osb.DeprovisionResponse{Async: true}, nil
			}
			_, err := engine.DeleteInstance(ctx, &osb.DeprovisionRequest{InstanceID: "i1"})
			Expect(osb.IsKind(err, osb.KindAsyncRequired)).To(BeTrue())
		})
	})

	Describe("GetInstance", func() {
		It("is not found if the provisioner cannot fetch instances", func() {
			_, err := engine.GetInstance(ctx, &osb.GetInstanceRequest{InstanceID: "i1"})
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())
		})

		It("uses the instance fetcher of the provisioner", func() {
			var err error
			engine, err = NewEngine(EngineOptions{Catalog: &staticCatalog{catalog: testCatalog()}, Instances: &fetchingInstances{}})
			Expect(err).ToNot(HaveOccurred())

			resp, err := engine.GetInstance(ctx, &osb.GetInstanceRequest{InstanceID: "i1"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.PlanID).To(Equal("small"))
		})
	})

	Describe("bindings", func() {
		It("creates bindings of bindable plans", func() {
			resp, err := engine.CreateBinding(ctx, &osb.BindRequest{InstanceID: "i1", BindingID: "b1", ServiceID: "db-service", PlanID: "small"})
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.Credentials).To(HaveKeyWithValue("user", "admin"))
		})

		It("rejects bindings of plans that are not bindable", func() {
			_, err := engine.CreateBinding(ctx, &osb.BindRequest{InstanceID: "i1", BindingID: "b1", ServiceID: "db-service", PlanID: "internal"})
			Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
			Expect(bindings.calls.Load()).To(BeZero())
		})

		It("reports asynchronous bindings started without accepts_incomplete", func() {
			bindings.bind = func(ctx context.Context, req *osb.BindRequest) (*osb.BindResponse, error) {
				return &osb.BindResponse{Async: true, OperationKey: "bind"}, nil
			}
			_, err := engine.CreateBinding(ctx, &osb.BindRequest{InstanceID: "i1", BindingID: "b1", ServiceID: "db-service", PlanID: "small"})
			Expect(osb.IsKind(err, osb.KindAsyncRequired)).To(BeTrue())
			Expect(testutil.ToFloat64(metrics.hookFaults.WithLabelValues("create-binding", string(StageAction)))).To(Equal(float64(1)))
		})

		It("reports a missing binding as not found", func() {
			_, err := engine.GetBinding(ctx, &osb.GetBindingRequest{InstanceID: "i1", BindingID: "b1"})
			Expect(osb.IsKind(err, osb.KindNotFound)).To(BeTrue())
		})

		It("deletes bindings", func() {
			_, err := engine.DeleteBinding(ctx, &osb.UnbindRequest{InstanceID: "i1", BindingID: "b1"})
			Expect(err).ToNot(HaveOccurred())
		})

		Context("without a binding provisioner", func() {
			BeforeEach(func() {
				var err error
				engine, err = NewEngine(EngineOptions{Catalog: &staticCatalog{catalog: testCatalog()}, Instances: instances})
				Expect(err).ToNot(HaveOccurred())
			})

			It("rejects every binding operation", func() {
				_, err := engine.CreateBinding(ctx, &osb.BindRequest{ServiceID: "db-service", PlanID: "small"})
				Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
				_, err = engine.GetBinding(ctx, &osb.GetBindingRequest{})
				Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
				_, err = engine.DeleteBinding(ctx, &osb.UnbindRequest{})
				Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
				_, err = engine.BindingLastOperation(ctx, &osb.BindingLastOperationRequest{})
				Expect(osb.IsKind(err, osb.KindInvalidParameters)).To(BeTrue())
			})
		})
	})

	Describe("GetCatalog", func() {
		It("returns an empty catalog if the provider has none", func() {
			var err error
			engine, err = NewEngine(EngineOptions{Catalog: &staticCatalog{}, Instances: instances})
			Expect(err).ToNot(HaveOccurred())
			result, err := engine.GetCatalog(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(result.Services).To(BeEmpty())
		})
	})
})

var _ = Describe("Metrics", func() {
	It("fails on duplicate registration", func() {
		registry := prometheus.NewRegistry()
		_, err := NewMetrics(registry)
		Expect(err).ToNot(HaveOccurred())
		_, err = NewMetrics(registry)
		Expect(err).To(HaveOccurred())
	})

	It("ignores observations on nil metrics", func() {
		var metrics *Metrics
		Expect(func() {
			metrics.observeOperation(osb.OperationCreateInstance, OutcomeSucceeded)
			metrics.observeHookFault(osb.OperationCreateInstance, StageError)
		}).ToNot(Panic())
	})
})
