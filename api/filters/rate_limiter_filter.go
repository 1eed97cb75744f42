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

package filters

import (
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/util"
	"github.com/Peripli/service-broker/pkg/web"
	"github.com/ulule/limiter"
)

// RateLimiterFilterName is the name of the rate limiter filter
const RateLimiterFilterName = "RateLimiterFilter"

// RateLimit limits the requests of a client to the paths starting with PathPrefix, optionally only
// for one method
type RateLimit struct {
	Rate       limiter.Rate
	PathPrefix string
	Method     string
}

func rateLimitSectionError(index int, section string, details string) error {
	return fmt.Errorf("invalid rate limiter configuration in section #%d: '%s', %s", index+1, section, details)
}

// ParseRateLimits parses a rate limit configuration of the form rate<:path<:method>><,rate<:path<:method>>,...>
//
// Examples:
//
//	5-M                     5 requests per minute on any path
//	5-M:/v2/service_instances   5 requests per minute on paths starting with /v2/service_instances
//	10000-H,5-M:/v2/catalog:GET 10000 requests per hour on any path and 5 catalog requests per minute
func ParseRateLimits(input string) ([]RateLimit, error) {
	var limits []RateLimit
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return limits, nil
	}
	for index, section := range strings.Split(input, ",") {
		if len(section) == 0 {
			return nil, rateLimitSectionError(index, section, "no content, expected 'rate:path' format")
		}
		ratePathMethod := strings.Split(section, ":")
		if len(ratePathMethod) > 3 {
			return nil, rateLimitSectionError(index, section, "too many elements, expected 'rate:path:method' format")
		}

		rate, err := limiter.NewRateFromFormatted(ratePathMethod[0])
		if err != nil {
			return nil, rateLimitSectionError(index, section, "unable to parse rate: "+err.Error())
		}
		pathPrefix := "/"
		method := ""
		if len(ratePathMethod) >= 2 {
			pathPrefix = ratePathMethod[1]
			if pathPrefix == "" {
				return nil, rateLimitSectionError(index, section, "path should not be empty")
			}
			if !strings.HasPrefix(pathPrefix, "/") {
				return nil, rateLimitSectionError(index, section, "path should start with /")
			}
			if path.Clean(pathPrefix) != pathPrefix {
				return nil, rateLimitSectionError(index, section, "path is not clean, expected path '"+path.Clean(pathPrefix)+"'")
			}
		}
		if len(ratePathMethod) == 3 {
			method = strings.ToUpper(ratePathMethod[2])
			switch method {
			case http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete:
			default:
				return nil, rateLimitSectionError(index, section, "method '"+method+"' is not valid")
			}
		}
		limits = append(limits, RateLimit{
			Rate:       rate,
			PathPrefix: pathPrefix,
			Method:     method,
		})
	}
	return limits, nil
}

type rateLimiter struct {
	limit   RateLimit
	limiter *limiter.Limiter
}

// RateLimiterFilter limits the number of requests per client IP. The counters are kept in the limiter
// store, so a redis store shares them between broker instances.
type RateLimiterFilter struct {
	limiters           []rateLimiter
	trustForwardHeader bool
}

// NewRateLimiterFilter creates a rate limiter filter for the limits keeping its counters in the store
func NewRateLimiterFilter(store limiter.Store, limits []RateLimit, trustForwardHeader bool) *RateLimiterFilter {
	filter := &RateLimiterFilter{trustForwardHeader: trustForwardHeader}
	for _, limit := range limits {
		filter.limiters = append(filter.limiters, rateLimiter{
			limit:   limit,
			limiter: limiter.New(store, limit.Rate),
		})
	}
	return filter
}

// Name implements the web.Filter interface and returns the identifier of the filter.
func (rl *RateLimiterFilter) Name() string {
	return RateLimiterFilterName
}

// Run counts the request against every matching limit and rejects it once a limit is reached
func (rl *RateLimiterFilter) Run(request *web.Request, next web.Handler) (*web.Response, error) {
	clientKey := limiter.GetIPKey(request.Request, rl.trustForwardHeader)

	var tightest *limiter.Context
	for i, l := range rl.limiters {
		if !l.matches(request) {
			continue
		}
		key := fmt.Sprintf("%d:%s", i, clientKey)
		limiterContext, err := l.limiter.Get(request.Context(), key)
		if err != nil {
			return nil, err
		}
		if limiterContext.Reached {
			log.C(request.Context()).Infof("Request limit of %d requests reached for client %s", limiterContext.Limit, clientKey)
			resetIn := time.Until(time.Unix(limiterContext.Reset, 0)).Round(time.Second)
			return nil, &util.HTTPError{
				ErrorType:   "TooManyRequests",
				Description: fmt.Sprintf("The allowed request limit has been reached, please try again in %s", resetIn),
				StatusCode:  http.StatusTooManyRequests,
			}
		}
		if tightest == nil || limiterContext.Remaining < tightest.Remaining {
			limiterContext := limiterContext
			tightest = &limiterContext
		}
	}

	resp, err := next.Handle(request)
	if err != nil {
		return nil, err
	}
	if tightest != nil {
		if resp.Header == nil {
			resp.Header = http.Header{}
		}
		resp.Header.Set("X-RateLimit-Limit", strconv.FormatInt(tightest.Limit, 10))
		resp.Header.Set("X-RateLimit-Remaining", strconv.FormatInt(tightest.Remaining, 10))
		resp.Header.Set("X-RateLimit-Reset", strconv.FormatInt(tightest.Reset, 10))
	}
	return resp, nil
}

func (l rateLimiter) matches(request *web.Request) bool {
	if l.limit.Method != "" && l.limit.Method != request.Method {
		return false
	}
	return strings.HasPrefix(request.URL.Path, l.limit.PathPrefix)
}

// FilterMatchers implements the web.Filter interface and returns the conditions on which the filter should be executed.
func (rl *RateLimiterFilter) FilterMatchers() []web.FilterMatcher {
	return []web.FilterMatcher{
		{
			Matchers: []web.Matcher{
				web.Path(web.OSBPathPattern),
			},
		},
	}
}
