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

package log

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type kibanaEntry struct {
	WrittenAt        string        `json:"written_at"`
	WrittenTimestamp string        `json:"written_ts"`
	ComponentType    string        `json:"component_type"`
	CorrelationID    string        `json:"correlation_id"`
	Type             string        `json:"type"`
	Logger           string        `json:"logger"`
	Level            string        `json:"level"`
	Message          string        `json:"msg"`
	Fields           logrus.Fields `json:"-"`
}

// MarshalJSON marshals the kibana entry by inlining the logrus fields instead of being nested in the "Fields" tag
func (k kibanaEntry) MarshalJSON() ([]byte, error) {
	type Entry kibanaEntry
	bytes, err := json.Marshal(Entry(k))
	if err != nil {
		return nil, err
	}

	var result map[string]json.RawMessage
	if err = json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}

	for k, v := range k.Fields {
		if fieldErr, ok := v.(error); ok {
			v = fieldErr.Error()
		}
		field, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		result[k] = field
	}

	return json.Marshal(result)
}

// KibanaFormatter is a logrus formatter that formats an entry for Kibana
type KibanaFormatter struct {
}

// Format formats a logrus entry for Kibana logging
func (f *KibanaFormatter) Format(e *logrus.Entry) ([]byte, error) {
	fields := make(logrus.Fields, len(e.Data))
	for k, v := range e.Data {
		fields[k] = v
	}

	componentName, exists := fields[FieldComponentName].(string)
	if !exists {
		componentName = "-"
	}
	delete(fields, FieldComponentName)

	correlationID, exists := fields[FieldCorrelationID].(string)
	if !exists {
		correlationID = "-"
	}
	delete(fields, FieldCorrelationID)

	message := e.Message
	if errorField, exists := fields[logrus.ErrorKey].(error); exists {
		message = message + ": " + errorField.Error()
	}
	delete(fields, logrus.ErrorKey)

	entry := &kibanaEntry{
		Logger:           componentName,
		Level:            e.Level.String(),
		Message:          message,
		CorrelationID:    correlationID,
		Type:             "log",
		ComponentType:    "application",
		WrittenAt:        e.Time.UTC().Format(time.RFC3339Nano),
		WrittenTimestamp: fmt.Sprintf("%d", e.Time.UTC().Unix()),
		Fields:           fields,
	}
	serialized, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON: %v", err)
	}
	return append(serialized, '\n'), nil
}
