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
	"encoding/base64"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	// HeaderOriginatingIdentity is the header identifying the platform user that initiated the request
	HeaderOriginatingIdentity = "X-Broker-API-Originating-Identity"

	// HeaderRequestIdentity is the header correlating the platform request, echoed back in the response
	HeaderRequestIdentity = "X-Broker-API-Request-Identity"
)

// OriginatingIdentity is the platform user that initiated a request
type OriginatingIdentity struct {
	Platform string
	Value    map[string]interface{}
}

// UserID returns the user_id property of the identity value if present
func (o *OriginatingIdentity) UserID() string {
	if o == nil {
		return ""
	}
	if id, ok := o.Value["user_id"].(string); ok {
		return id
	}
	return ""
}

// ParseOriginatingIdentity parses a header value of the form "platform base64(json)". An empty header
// yields nil without an error.
func ParseOriginatingIdentity(header string) (*OriginatingIdentity, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return nil, InvalidParameters("%s header must contain the platform and the encoded identity", HeaderOriginatingIdentity)
	}
	decoded, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, InvalidParameters("%s header value is not base64 encoded", HeaderOriginatingIdentity).WithCause(err)
	}
	if !gjson.ValidBytes(decoded) {
		return nil, InvalidParameters("%s header value is not valid JSON", HeaderOriginatingIdentity)
	}
	value, ok := gjson.ParseBytes(decoded).Value().(map[string]interface{})
	if !ok {
		return nil, InvalidParameters("%s header value must be a JSON object", HeaderOriginatingIdentity)
	}
	return &OriginatingIdentity{
		Platform: parts[0],
		Value:    value,
	}, nil
}
