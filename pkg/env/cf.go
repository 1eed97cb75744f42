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
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/cloudfoundry-community/go-cfenv"
	"github.com/spf13/cast"
)

// setCFOverrides overrides some broker environment with values from CF's VCAP environment variables
func setCFOverrides(ctx context.Context, env Environment) error {
	if _, exists := os.LookupEnv("VCAP_APPLICATION"); !exists {
		return nil
	}
	cfEnv, err := cfenv.Current()
	if err != nil {
		return fmt.Errorf("could not load VCAP environment: %s", err)
	}

	env.Set("server.port", cfEnv.Port)

	pgServiceName := cast.ToString(env.Get("storage.name"))
	if pgServiceName == "" {
		log.C(ctx).Warning("No PostgreSQL service name found")
	} else {
		service, err := cfEnv.Services.WithName(pgServiceName)
		if err != nil {
			return fmt.Errorf("could not find service with name %s: %v", pgServiceName, err)
		}
		env.Set("storage.uri", service.Credentials["uri"])
		if err := setPostgresSSL(env, service.Credentials); err != nil {
			return err
		}
	}

	redisServiceName := cast.ToString(env.Get("redis.name"))
	if redisServiceName != "" {
		service, err := cfEnv.Services.WithName(redisServiceName)
		if err != nil {
			return fmt.Errorf("could not find service with name %s: %v", redisServiceName, err)
		}
		env.Set("redis.uri", service.Credentials["uri"])
	}
	return nil
}

func setPostgresSSL(env Environment, credentials map[string]interface{}) error {
	sslRootCert, hasRootCert := credentials["sslrootcert"]
	if !hasRootCert {
		return nil
	}
	filename := "./root.crt"
	env.Set("storage.sslmode", "verify-ca")
	env.Set("storage.sslrootcert", filename)
	sslRootCertStr := strings.ReplaceAll(cast.ToString(sslRootCert), `\n`, "\n")
	return os.WriteFile(filename, []byte(sslRootCertStr), 0600)
}
