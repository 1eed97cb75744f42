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

package web

import (
	"errors"

	"github.com/gobwas/glob"
)

var (
	errEmptyHTTPMethods   = errors.New("empty HTTP methods list")
	errEmptyPathPattern   = errors.New("empty path patterns list")
	errInvalidPathPattern = errors.New("invalid path pattern")
)

// Matcher allows checking whether an Endpoint matches a particular condition
type Matcher interface {
	// Matches matches a route against a particular condition
	Matches(endpoint Endpoint) (bool, error)
}

// MatcherFunc is an adapter that allows regular functions to act as Matchers
type MatcherFunc func(endpoint Endpoint) (bool, error)

// Matches allows MatcherFunc to act as a Matcher
func (m MatcherFunc) Matches(endpoint Endpoint) (bool, error) {
	return m(endpoint)
}

// Methods returns a Matcher that matches the endpoint method against any of the provided methods
func Methods(methods ...string) Matcher {
	return MatcherFunc(func(endpoint Endpoint) (bool, error) {
		if len(methods) == 0 {
			return false, errEmptyHTTPMethods
		}
		return matchInArray(methods, endpoint.Method), nil
	})
}

// Path returns a Matcher that matches the endpoint path against any of the provided glob patterns.
// '*' matches a single path segment, '**' matches any number of segments.
func Path(patterns ...string) Matcher {
	return MatcherFunc(func(endpoint Endpoint) (bool, error) {
		path := endpoint.Path
		if len(patterns) == 0 {
			return false, errEmptyPathPattern
		}

		for _, pattern := range patterns {
			pat, err := glob.Compile(pattern, '/')
			if err != nil {
				return false, errInvalidPathPattern
			}
			if pat.Match(path) || pat.Match(path+"/") {
				return true, nil
			}
		}
		return false, nil
	})
}

func matchInArray(arr []string, value string) bool {
	for _, v := range arr {
		if v == value {
			return true
		}
	}
	return false
}
