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
	"net/http"
	"runtime/debug"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/pkg/util"
	"github.com/gorilla/mux"
)

// NewRecoveryMiddleware returns a standard mux middleware that provides panic recovery
func NewRecoveryMiddleware() mux.MiddlewareFunc {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					log.C(r.Context()).Errorf("Recovered from panic: %v\n%s", err, debug.Stack())
					httpError := &util.HTTPError{
						ErrorType:   "InternalServerError",
						Description: "Internal server error",
						StatusCode:  http.StatusInternalServerError,
					}
					util.WriteError(r.Context(), httpError, w)
				}
			}()
			handler.ServeHTTP(w, r)
		})
	}
}
