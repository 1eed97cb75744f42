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

import "fmt"

const (
	// HeaderAPIVersion is the header carrying the broker API version of the platform
	HeaderAPIVersion = "X-Broker-API-Version"

	// AnyAPIVersion is the wildcard that accepts every provided API version
	AnyAPIVersion = "*"
)

// BrokerAPIVersion is the broker API version expected by the broker. It is either a concrete
// version token or the wildcard accepting any version.
type BrokerAPIVersion struct {
	token string
}

// NewBrokerAPIVersion creates the expected API version. An empty token or "*" yields the wildcard.
func NewBrokerAPIVersion(token string) BrokerAPIVersion {
	if token == AnyAPIVersion {
		token = ""
	}
	return BrokerAPIVersion{token: token}
}

// IsAny reports whether every provided version is accepted
func (v BrokerAPIVersion) IsAny() bool {
	return v.token == ""
}

// Token returns the expected version token, empty for the wildcard
func (v BrokerAPIVersion) Token() string {
	return v.token
}

func (v BrokerAPIVersion) String() string {
	if v.IsAny() {
		return AnyAPIVersion
	}
	return v.token
}

// VersionMismatchError is returned when the provided API version does not match the expected one
type VersionMismatchError struct {
	Expected string
	// Provided is nil when the platform did not send a version
	Provided *string
}

func (e *VersionMismatchError) Error() string {
	provided := ""
	if e.Provided != nil {
		provided = *e.Provided
	}
	return fmt.Sprintf("The provided service broker API version is not supported: expected version=%s, provided version=%s", e.Expected, provided)
}

// CheckVersion verifies the provided header value against the expected version
func CheckVersion(expected BrokerAPIVersion, provided *string) error {
	if expected.IsAny() {
		return nil
	}
	if provided != nil && *provided == expected.Token() {
		return nil
	}
	return &VersionMismatchError{
		Expected: expected.Token(),
		Provided: provided,
	}
}
