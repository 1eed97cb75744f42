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

package env

import (
	"reflect"
	"strings"

	"github.com/fatih/structs"
)

type configurationParameter struct {
	Name         string
	DefaultValue interface{}
	Description  string
}

// buildParameters walks the struct fields of value and returns one parameter per leaf field. Keys are
// built from the mapstructure tags (or the lower cased field names) joined with dots.
func buildParameters(value interface{}) []configurationParameter {
	var result []configurationParameter
	walkFields(value, "", "", &result)
	return result
}

func walkFields(value interface{}, prefix, description string, result *[]configurationParameter) {
	if !structs.IsStruct(value) {
		*result = append(*result, configurationParameter{
			Name:         prefix,
			DefaultValue: value,
			Description:  description,
		})
		return
	}

	for _, field := range structs.New(value).Fields() {
		if !field.IsExported() {
			continue
		}
		switch field.Kind() {
		case reflect.Map, reflect.Func, reflect.Chan:
			continue
		case reflect.Slice:
			if _, ok := field.Value().([]string); !ok {
				continue
			}
		case reflect.Ptr:
			if reflect.ValueOf(field.Value()).IsNil() {
				continue
			}
		}

		name := strings.ToLower(field.Name())
		if tag := field.Tag("mapstructure"); tag != "" {
			name = strings.Split(tag, ",")[0]
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}

		fieldDescription := field.Tag("description")
		if description != "" && fieldDescription != "" {
			fieldDescription = description + " - " + fieldDescription
		} else if fieldDescription == "" {
			fieldDescription = description
		}

		walkFields(field.Value(), key, fieldDescription, result)
	}
}
