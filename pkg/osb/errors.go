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
	"net/http"

	"github.com/Peripli/service-broker/pkg/util"
)

// Operation identifies a broker API operation
type Operation string

const (
	OperationGetCatalog            Operation = "get-catalog"
	OperationCreateInstance        Operation = "create-instance"
	OperationUpdateInstance        Operation = "update-instance"
	OperationDeleteInstance        Operation = "delete-instance"
	OperationGetInstance           Operation = "get-instance"
	OperationInstanceLastOperation Operation = "get-last-operation-instance"
	OperationCreateBinding         Operation = "create-binding"
	OperationGetBinding            Operation = "get-binding"
	OperationDeleteBinding         Operation = "delete-binding"
	OperationBindingLastOperation  Operation = "get-last-operation-binding"
)

const internalErrorDescription = "Internal server error"

// ErrorMessage is the error body returned to the platform
type ErrorMessage struct {
	Error            string `json:"error,omitempty"`
	Description      string `json:"description"`
	InstanceUsable   *bool  `json:"instance_usable,omitempty"`
	UpdateRepeatable *bool  `json:"update_repeatable,omitempty"`
}

// MapError translates the failure of an operation into the protocol status and error body. Errors that
// are not classified failures map to a generic internal error so that no internals leak to the platform.
func MapError(op Operation, err error) (int, ErrorMessage) {
	var versionErr *VersionMismatchError
	if errors.As(err, &versionErr) {
		return http.StatusPreconditionFailed, ErrorMessage{Description: versionErr.Error()}
	}

	var httpErr *util.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, ErrorMessage{
			Error:            httpErr.ErrorType,
			Description:      httpErr.Description,
			InstanceUsable:   httpErr.InstanceUsable,
			UpdateRepeatable: httpErr.UpdateRepeatable,
		}
	}

	var failure *Failure
	if !errors.As(err, &failure) || failure.Kind == KindInternal {
		return http.StatusInternalServerError, ErrorMessage{
			Error:       "InternalServerError",
			Description: internalErrorDescription,
		}
	}

	message := ErrorMessage{
		Description:      failure.Description,
		InstanceUsable:   failure.InstanceUsable,
		UpdateRepeatable: failure.UpdateRepeatable,
	}
	switch failure.Kind {
	case KindAlreadyExists:
		return http.StatusConflict, message
	case KindNotFound:
		return notFoundStatus(op), message
	case KindAsyncRequired:
		message.Error = "AsyncRequired"
		return http.StatusUnprocessableEntity, message
	case KindInvalidParameters:
		return http.StatusBadRequest, message
	case KindUpdateNotSupported:
		return http.StatusUnprocessableEntity, message
	case KindConcurrency:
		message.Error = "ConcurrencyError"
		return http.StatusUnprocessableEntity, message
	case KindMaintenanceInfoConflict:
		message.Error = "MaintenanceInfoConflict"
		return http.StatusUnprocessableEntity, message
	case KindBindingRequiresApp:
		message.Error = "RequiresApp"
		return http.StatusUnprocessableEntity, message
	case KindUnavailable:
		return http.StatusServiceUnavailable, message
	default:
		return http.StatusInternalServerError, ErrorMessage{
			Error:       "InternalServerError",
			Description: internalErrorDescription,
		}
	}
}

// deleted resources and finished deprovisions are reported as gone
func notFoundStatus(op Operation) int {
	switch op {
	case OperationDeleteInstance, OperationDeleteBinding, OperationInstanceLastOperation, OperationBindingLastOperation:
		return http.StatusGone
	default:
		return http.StatusNotFound
	}
}

// ToHTTPError maps the failure of an operation to the HTTP error rendered by the API
func ToHTTPError(op Operation, err error) *util.HTTPError {
	status, message := MapError(op, err)
	return &util.HTTPError{
		ErrorType:        message.Error,
		Description:      message.Description,
		InstanceUsable:   message.InstanceUsable,
		UpdateRepeatable: message.UpdateRepeatable,
		StatusCode:       status,
	}
}
