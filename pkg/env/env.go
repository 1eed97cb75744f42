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

// Package env contains logic for working with the environment from which the broker configuration is loaded
package env

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/Peripli/service-broker/pkg/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// File describes the name, path and the format of the file to be used to load the configuration in the env
type File struct {
	Name     string `description:"name of the configuration file"`
	Location string `description:"location of the configuration file"`
	Format   string `description:"extension of the configuration file"`
}

// DefaultConfigFile holds the default broker config file properties
func DefaultConfigFile() File {
	return File{
		Name:     "application",
		Location: ".",
		Format:   "yml",
	}
}

// CreatePFlagsForConfigFile creates pflags for setting the configuration file
func CreatePFlagsForConfigFile(set *pflag.FlagSet) {
	CreatePFlags(set, struct{ File File }{File: DefaultConfigFile()})
}

// Environment represents an abstraction over the env from which the broker configuration will be loaded
type Environment interface {
	Get(key string) interface{}
	Set(key string, value interface{})
	Unmarshal(value interface{}) error
	BindPFlag(key string, flag *pflag.Flag) error
	AllSettings() map[string]interface{}
}

// ConfigChangeHandler builds a handler that is notified when the configuration file changes
type ConfigChangeHandler func(env Environment) func(event fsnotify.Event)

// Watcher is implemented by environments that notify handlers about configuration file changes
type Watcher interface {
	AddConfigChangeHandler(handler ConfigChangeHandler)
}

// ConfigFile is implemented by environments that report the configuration file they were loaded from.
// An empty name means no file was found.
type ConfigFile interface {
	ConfigFileUsed() string
}

// ViperEnv represents an implementation of the Environment interface that uses viper
type ViperEnv struct {
	*viper.Viper

	mutex    sync.RWMutex
	handlers []ConfigChangeHandler
}

// EmptyFlagSet creates an empty flag set and adds the default set of flags to it
func EmptyFlagSet() *pflag.FlagSet {
	set := pflag.NewFlagSet("Service Broker Configuration Flags", pflag.ExitOnError)
	set.AddFlagSet(pflag.CommandLine)
	return set
}

// CreatePFlags Creates pflags for the value structure and adds them in the provided set
func CreatePFlags(set *pflag.FlagSet, value interface{}) {
	for _, parameter := range buildParameters(value) {
		if set.Lookup(parameter.Name) != nil {
			continue
		}
		switch val := parameter.DefaultValue.(type) {
		case []string:
			set.StringSlice(parameter.Name, val, parameter.Description)
		default:
			set.Var(&flag{value: val}, parameter.Name, parameter.Description)
		}
	}
}

// New creates a new environment. It accepts a flag set that should contain all the flags that the
// environment should be aware of. The flag set is parsed from the command line arguments unless it was already parsed.
func New(ctx context.Context, set *pflag.FlagSet, onConfigChangeHandlers ...ConfigChangeHandler) (*ViperEnv, error) {
	v := &ViperEnv{
		Viper: viper.New(),
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if !set.Parsed() {
		if err := set.Parse(os.Args[1:]); err != nil {
			return nil, err
		}
	}

	var bindErr error
	set.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, bindErr
	}

	if err := v.setupConfigFile(ctx, onConfigChangeHandlers...); err != nil {
		return nil, err
	}

	return v, nil
}

// Unmarshal exposes viper's Unmarshal. Prior to unmarshaling it creates the necessary pflag and env var bindings
// so that pflag / env var values are also used during the unmarshaling.
func (v *ViperEnv) Unmarshal(value interface{}) error {
	if !isPointerToStruct(value) {
		return fmt.Errorf("unable to unmarshal into %T: expected a pointer to a struct", value)
	}
	for _, parameter := range buildParameters(value) {
		// without an explicit binding viper.AllKeys() does not return keys that are set only via env variables
		// and Unmarshal would not look up their values
		if err := v.Viper.BindEnv(parameter.Name); err != nil {
			return err
		}
	}
	return v.Viper.Unmarshal(value)
}

func (v *ViperEnv) setupConfigFile(ctx context.Context, onConfigChangeHandlers ...ConfigChangeHandler) error {
	cfg := struct{ File File }{File: File{}}
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("could not find configuration cfg: %s", err)
	}
	if cfg.File.Name == "" {
		return nil
	}

	v.Viper.AddConfigPath(cfg.File.Location)
	v.Viper.SetConfigName(cfg.File.Name)
	v.Viper.SetConfigType(cfg.File.Format)

	if err := v.Viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.C(ctx).Info("Config File was not found: ", err)
			return nil
		}
		return fmt.Errorf("could not read configuration cfg: %s", err)
	}

	v.handlers = append(onConfigChangeHandlers, dynamicLogHandler(ctx))
	v.Viper.OnConfigChange(func(event fsnotify.Event) {
		log.C(ctx).Warnf("Configuration file was changed by event %s. Triggering on config changed handlers...", event.String())
		v.mutex.RLock()
		handlers := make([]ConfigChangeHandler, len(v.handlers))
		copy(handlers, v.handlers)
		v.mutex.RUnlock()
		for _, handler := range handlers {
			handler(v)(event)
		}
	})
	v.Viper.WatchConfig()

	return nil
}

// AddConfigChangeHandler registers a handler that is notified when the configuration file changes.
// Handlers are only notified if a configuration file was found.
func (v *ViperEnv) AddConfigChangeHandler(handler ConfigChangeHandler) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.handlers = append(v.handlers, handler)
}

func dynamicLogHandler(ctx context.Context) ConfigChangeHandler {
	return func(env Environment) func(event fsnotify.Event) {
		return func(event fsnotify.Event) {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				return
			}
			settings := log.Configuration()
			if level := cast.ToString(env.Get("log.level")); level != "" {
				settings.Level = level
			}
			if format := cast.ToString(env.Get("log.format")); format != "" {
				settings.Format = format
			}

			log.C(ctx).Warnf("Reconfiguring logrus logging using level %s and format %s", settings.Level, settings.Format)
			if _, err := log.Configure(ctx, &settings); err != nil {
				log.C(ctx).WithError(err).Errorf("Could not reconfigure logging after config file modification event of type %s", event.String())
			}
		}
	}
}

// Default creates a default environment that can be used to boot up a service broker
func Default(ctx context.Context, additionalPFlags ...func(set *pflag.FlagSet)) (Environment, error) {
	set := EmptyFlagSet()
	CreatePFlagsForConfigFile(set)

	for _, addFlags := range additionalPFlags {
		addFlags(set)
	}

	environment, err := New(ctx, set)
	if err != nil {
		return nil, fmt.Errorf("error loading environment: %s", err)
	}
	if err := setCFOverrides(ctx, environment); err != nil {
		return nil, fmt.Errorf("error setting CF environment values: %s", err)
	}
	return environment, nil
}

func isPointerToStruct(value interface{}) bool {
	t := reflect.TypeOf(value)
	return t != nil && t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

type flag struct {
	value interface{}
}

func (f *flag) String() string {
	return cast.ToString(f.value)
}

func (f *flag) Set(s string) error {
	f.value = s
	return nil
}

func (f *flag) Type() string {
	if f.value == nil {
		return "string"
	}
	return reflect.TypeOf(f.value).Name()
}
