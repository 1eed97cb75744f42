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

// Package log contains logic for setting up logging for the service broker
package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/onrik/logrus/filename"
	"github.com/sirupsen/logrus"
)

const (
	// FieldComponentName is the key of the component field in the log message.
	FieldComponentName = "component"
	// FieldCorrelationID is the key of the correlation id field in the log message.
	FieldCorrelationID = "correlation_id"
)

type logKey struct{}

var (
	supportedFormatters = map[string]logrus.Formatter{
		"json":   &logrus.JSONFormatter{},
		"text":   &logrus.TextFormatter{},
		"kibana": &KibanaFormatter{},
	}
	supportedOutputs = map[string]io.Writer{
		os.Stdout.Name(): os.Stdout,
		os.Stderr.Name(): os.Stderr,
	}
	mutex         = sync.RWMutex{}
	defaultEntry  = logrus.NewEntry(logrus.StandardLogger())
	currentConfig = DefaultSettings()
)

// Settings type to be loaded from the environment
type Settings struct {
	Level          string `mapstructure:"level" description:"minimum level for log messages"`
	Format         string `mapstructure:"format" description:"format of log messages. Allowed values - text, json, kibana"`
	Output         string `mapstructure:"output" description:"output for the logs. Allowed values - /dev/stdout, /dev/stderr"`
	SourceLocation bool   `mapstructure:"source_location" description:"adds the file and line of the log call to each message"`
}

// DefaultSettings returns default values for Log settings
func DefaultSettings() *Settings {
	return &Settings{
		Level:  "error",
		Format: "text",
		Output: os.Stdout.Name(),
	}
}

// Validate validates the logging settings
func (s *Settings) Validate() error {
	if _, err := logrus.ParseLevel(s.Level); err != nil {
		return fmt.Errorf("validate Settings: log level %s is invalid: %s", s.Level, err)
	}
	if len(s.Format) == 0 {
		return fmt.Errorf("validate Settings: log format missing")
	}
	mutex.RLock()
	defer mutex.RUnlock()
	if _, ok := supportedFormatters[s.Format]; !ok {
		return fmt.Errorf("validate Settings: log format %s is not supported", s.Format)
	}
	if _, ok := supportedOutputs[s.Output]; !ok {
		return fmt.Errorf("validate Settings: log output %s is not supported", s.Output)
	}
	return nil
}

// Configure creates a new context with a logger using the provided settings. The default logger is
// replaced as well, so that log.D() reflects the latest configuration.
func Configure(ctx context.Context, settings *Settings) (context.Context, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	mutex.Lock()
	defer mutex.Unlock()

	level, _ := logrus.ParseLevel(settings.Level)
	formatter := supportedFormatters[settings.Format]
	output := supportedOutputs[settings.Output]

	logger := &logrus.Logger{
		Formatter: formatter,
		Level:     level,
		Out:       output,
		Hooks:     make(logrus.LevelHooks),
		ExitFunc:  os.Exit,
	}
	if settings.SourceLocation {
		hook := filename.NewHook()
		hook.Field = "source"
		logger.AddHook(hook)
	}

	currentSettings := *settings
	currentConfig = &currentSettings
	defaultEntry = logrus.NewEntry(logger)

	return ContextWithLogger(ctx, defaultEntry), nil
}

// Configuration returns a copy of the last applied logging settings
func Configuration() Settings {
	mutex.RLock()
	defer mutex.RUnlock()
	return *currentConfig
}

// RegisterFormatter registers a new logrus Formatter with the given name.
// Returns an error if a formatter with the same name is already registered.
func RegisterFormatter(name string, formatter logrus.Formatter) error {
	mutex.Lock()
	defer mutex.Unlock()
	if _, exists := supportedFormatters[name]; exists {
		return fmt.Errorf("formatter with name %s is already registered", name)
	}
	supportedFormatters[name] = formatter
	return nil
}

// C is a shortcut for ForContext
func C(ctx context.Context) *logrus.Entry {
	return ForContext(ctx)
}

// D is a shortcut for Default
func D() *logrus.Entry {
	return Default()
}

// ForContext retrieves the current logger from the context. Falls back to the default logger.
func ForContext(ctx context.Context) *logrus.Entry {
	mutex.RLock()
	defer mutex.RUnlock()
	if ctx != nil {
		if entry, ok := ctx.Value(logKey{}).(*logrus.Entry); ok {
			return entry
		}
	}
	return defaultEntry
}

// Default returns the default logger
func Default() *logrus.Entry {
	return ForContext(context.Background())
}

// ContextWithLogger returns a new context with the provided logger.
func ContextWithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, logKey{}, entry)
}

// ForComponent returns the context logger enriched with the given component name
func ForComponent(ctx context.Context, component string) *logrus.Entry {
	return ForContext(ctx).WithField(FieldComponentName, component)
}
