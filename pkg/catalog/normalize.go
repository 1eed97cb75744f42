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

package catalog

import (
	"strconv"

	"github.com/spf13/cast"
)

// Normalize converts every numbered map of the tree into a sequence. A numbered map is a non-empty
// mapping whose keys are exactly "0".."n-1" with non-nil values; such mappings are how property based
// configuration sources express arrays. The root stays a mapping and the input is not modified.
// Normalizing an already normalized tree returns an equal tree.
func Normalize(tree map[string]interface{}) map[string]interface{} {
	if tree == nil {
		return nil
	}
	result := make(map[string]interface{}, len(tree))
	for key, value := range tree {
		result[key] = NormalizeValue(value)
	}
	return result
}

// NormalizeValue normalizes a single configuration value: mappings that are numbered maps become
// sequences, other mappings and sequences are normalized recursively and scalars are returned as they are.
func NormalizeValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return normalizeMap(v)
	case map[interface{}]interface{}:
		return normalizeMap(stringKeys(v))
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, element := range v {
			result[i] = NormalizeValue(element)
		}
		return result
	default:
		return value
	}
}

func normalizeMap(m map[string]interface{}) interface{} {
	if items, ok := numberedItems(m); ok {
		for i := range items {
			items[i] = NormalizeValue(items[i])
		}
		return items
	}
	return Normalize(m)
}

// numberedItems returns the values of a numbered map in index order
func numberedItems(m map[string]interface{}) ([]interface{}, bool) {
	if len(m) == 0 {
		return nil, false
	}
	items := make([]interface{}, len(m))
	for i := range items {
		value, found := m[strconv.Itoa(i)]
		if !found || value == nil {
			return nil, false
		}
		items[i] = value
	}
	return items, true
}

func stringKeys(m map[interface{}]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		result[cast.ToString(key)] = value
	}
	return result
}
