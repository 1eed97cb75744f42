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

package main

import (
	"context"
	"fmt"

	"github.com/Peripli/service-broker/internal/memory"
	"github.com/Peripli/service-broker/pkg/broker"
	"github.com/Peripli/service-broker/pkg/env"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/spf13/pflag"
)

type memorySettings struct {
	Memory *memory.Settings
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	environment, err := broker.DefaultEnv(ctx, func(set *pflag.FlagSet) {
		env.CreatePFlags(set, &memorySettings{Memory: memory.DefaultSettings()})
	})
	if err != nil {
		panic(fmt.Errorf("error creating environment: %s", err))
	}

	settings := &memorySettings{Memory: memory.DefaultSettings()}
	if err := environment.Unmarshal(settings); err != nil {
		panic(fmt.Errorf("error loading memory broker settings: %s", err))
	}
	if err := settings.Memory.Validate(); err != nil {
		panic(err)
	}

	builder, err := broker.New(ctx, cancel, environment)
	if err != nil {
		panic(fmt.Errorf("error creating broker: %s", err))
	}

	memoryBroker := memory.NewBroker(settings.Memory)
	serviceBroker, err := builder.
		WithInstanceProvisioner(memoryBroker).
		WithBindingProvisioner(memoryBroker.Bindings()).
		Build()
	if err != nil {
		panic(fmt.Errorf("error building broker: %s", err))
	}

	log.C(builder.Context()).Info("Starting in-memory service broker")
	serviceBroker.Run()
}
