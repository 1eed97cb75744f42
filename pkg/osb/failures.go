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

package osb

import (
	"errors"
	"fmt"
)

// FailureKind classifies the failures the broker reports to the platform
type FailureKind int

const (
	// KindInternal is an uncategorized failure of the broker or the provisioning contracts
	KindInternal FailureKind = iota
	// KindAlreadyExists means that an instance or binding with the same id but different attributes exists
	KindAlreadyExists
	// KindNotFound means that an instance, binding, service or plan does not exist
	KindNotFound
	// KindAsyncRequired means that the operation can only complete asynchronously but the platform did not accept that
	KindAsyncRequired
	// KindInvalidParameters means that the request parameters are malformed or rejected
	KindInvalidParameters
	// KindUpdateNotSupported means that the requested plan or parameter change is rejected
	KindUpdateNotSupported
	// KindConcurrency means that another operation for the same resource is in progress
	KindConcurrency
	// KindMaintenanceInfoConflict means that the provided maintenance info does not match the catalog
	KindMaintenanceInfoConflict
	// KindBindingRequiresApp means that a binding can only be created for an application
	KindBindingRequiresApp
	// KindUnavailable means that the backing service is temporarily unavailable
	KindUnavailable
)

var kindNames = map[FailureKind]string{
	KindInternal:                "Internal",
	KindAlreadyExists:           "AlreadyExists",
	KindNotFound:                "NotFound",
	KindAsyncRequired:           "AsyncRequired",
	KindInvalidParameters:       "InvalidParameters",
	KindUpdateNotSupported:      "UpdateNotSupported",
	KindConcurrency:             "Concurrency",
	KindMaintenanceInfoConflict: "MaintenanceInfoConflict",
	KindBindingRequiresApp:      "BindingRequiresApp",
	KindUnavailable:             "Unavailable",
}

func (k FailureKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FailureKind(%d)", int(k))
}

// Failure is a classified failure of a lifecycle operation
type Failure struct {
	Kind        FailureKind
	Description string

	// InstanceUsable and UpdateRepeatable are reported to the platform when set
	InstanceUsable   *bool
	UpdateRepeatable *bool

	// Cause is the underlying error, never exposed to the platform
	Cause error
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Description, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Description)
}

// Unwrap returns the cause of the failure
func (f *Failure) Unwrap() error {
	return f.Cause
}

// WithInstanceUsable sets the instance usable flag of the failure
func (f *Failure) WithInstanceUsable(usable bool) *Failure {
	f.InstanceUsable = &usable
	return f
}

// WithUpdateRepeatable sets the update repeatable flag of the failure
func (f *Failure) WithUpdateRepeatable(repeatable bool) *Failure {
	f.UpdateRepeatable = &repeatable
	return f
}

// WithCause attaches the underlying error to the failure
func (f *Failure) WithCause(err error) *Failure {
	f.Cause = err
	return f
}

func newFailure(kind FailureKind, format string, args ...interface{}) *Failure {
	return &Failure{
		Kind:        kind,
		Description: fmt.Sprintf(format, args...),
	}
}

// AlreadyExists creates a failure for a duplicate instance or binding id
func AlreadyExists(format string, args ...interface{}) *Failure {
	return newFailure(KindAlreadyExists, format, args...)
}

// NotFound creates a failure for an unknown instance, binding, service or plan
func NotFound(format string, args ...interface{}) *Failure {
	return newFailure(KindNotFound, format, args...)
}

// AsyncRequired creates a failure for operations that can only complete asynchronously
func AsyncRequired() *Failure {
	return newFailure(KindAsyncRequired, "This service plan requires client support for asynchronous service operations.")
}

// InvalidParameters creates a failure for malformed or rejected request parameters
func InvalidParameters(format string, args ...interface{}) *Failure {
	return newFailure(KindInvalidParameters, format, args...)
}

// UpdateNotSupported creates a failure for rejected plan or parameter changes
func UpdateNotSupported(format string, args ...interface{}) *Failure {
	return newFailure(KindUpdateNotSupported, format, args...)
}

// Concurrency creates a failure for operations on a resource that is already being changed
func Concurrency() *Failure {
	return newFailure(KindConcurrency, "Another operation for this service instance is in progress.")
}

// MaintenanceInfoConflict creates a failure for maintenance info that does not match the catalog
func MaintenanceInfoConflict(format string, args ...interface{}) *Failure {
	return newFailure(KindMaintenanceInfoConflict, format, args...)
}

// BindingRequiresApp creates a failure for bindings that need an application
func BindingRequiresApp() *Failure {
	return newFailure(KindBindingRequiresApp, "This service supports generation of credentials through binding an application only.")
}

// Unavailable creates a failure for a temporarily unavailable backing service
func Unavailable(format string, args ...interface{}) *Failure {
	return newFailure(KindUnavailable, format, args...)
}

// Internal wraps an uncategorized error
func Internal(err error) *Failure {
	return newFailure(KindInternal, "internal broker error").WithCause(err)
}

// KindOf returns the failure kind of err, KindInternal for unclassified errors
func KindOf(err error) FailureKind {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a failure of the given kind
func IsKind(err error, kind FailureKind) bool {
	var failure *Failure
	return errors.As(err, &failure) && failure.Kind == kind
}

// OperationFailedError is passed to the error hooks when an asynchronous operation is reported as failed
type OperationFailedError struct {
	Description      string
	InstanceUsable   *bool
	UpdateRepeatable *bool
}

func (e *OperationFailedError) Error() string {
	if e.Description == "" {
		return "asynchronous operation failed"
	}
	return "asynchronous operation failed: " + e.Description
}

// NewOperationFailedError creates an OperationFailedError from a failed last operation response
func NewOperationFailedError(resp *LastOperationResponse) *OperationFailedError {
	return &OperationFailedError{
		Description:      resp.Description,
		InstanceUsable:   resp.InstanceUsable,
		UpdateRepeatable: resp.UpdateRepeatable,
	}
}
