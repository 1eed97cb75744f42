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
	"fmt"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/osb"
)

// Stage is the hook stage in which a fault happened
type Stage string

const (
	StageInitialize Stage = "initialize"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
	// StageReport is used for failures of the reported store
	StageReport Stage = "report"
	// StageAction is used for provisioners breaking the asynchronous contract
	StageAction Stage = "action"
)

// Fault is a secondary failure that does not change the outcome of the operation, such as a failing
// completion or error hook. Faults of StageAction accompany an AsyncRequired failure.
type Fault struct {
	Operation osb.Operation
	Stage     Stage
	Hook      string
	Err       error
}

func (f Fault) Error() string {
	if f.Hook == "" {
		return fmt.Sprintf("%s %s: %s", f.Operation, f.Stage, f.Err)
	}
	return fmt.Sprintf("%s %s hook %s: %s", f.Operation, f.Stage, f.Hook, f.Err)
}

// FaultReporter receives the secondary failures of flows
type FaultReporter interface {
	ReportFault(ctx context.Context, fault Fault)
}

// FaultReporterFunc adapts a function to a FaultReporter
type FaultReporterFunc func(ctx context.Context, fault Fault)

// ReportFault implements FaultReporter
func (f FaultReporterFunc) ReportFault(ctx context.Context, fault Fault) {
	f(ctx, fault)
}

// LogReporter logs faults and counts them in the metrics
type LogReporter struct {
	Metrics *Metrics
}

// ReportFault implements FaultReporter
func (r *LogReporter) ReportFault(ctx context.Context, fault Fault) {
	log.C(ctx).WithError(fault.Err).
		WithField("operation", fault.Operation).
		WithField("stage", fault.Stage).
		WithField("hook", fault.Hook).
		Error("Flow fault reported")
	r.Metrics.observeHookFault(fault.Operation, fault.Stage)
}
