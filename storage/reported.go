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

// Package storage contains the stores used by the broker core. The reported store remembers which
// terminal states of asynchronous operations were already reported to the completion and error flows.
package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// TypeMemory keeps the reported states in the broker process
	TypeMemory = "memory"
	// TypePostgres keeps the reported states in a PostgreSQL database
	TypePostgres = "postgres"
	// TypeRedis keeps the reported states in Redis
	TypeRedis = "redis"
)

// Settings type to be loaded from the environment
type Settings struct {
	Type               string        `mapstructure:"type" description:"store for reported operation states. Allowed values - memory, postgres, redis"`
	URI                string        `mapstructure:"uri" description:"URI of the postgres storage"`
	Name               string        `mapstructure:"name" description:"name of the bound CF postgres service"`
	MaxIdleConnections int           `mapstructure:"max_idle_connections" description:"sets the maximum number of connections in the idle connection pool"`
	MaxOpenConnections int           `mapstructure:"max_open_connections" description:"sets the maximum number of open connections to the database"`
	ReadTimeout        int           `mapstructure:"read_timeout" description:"read timeout duration for requests to the database in milliseconds"`
	WriteTimeout       int           `mapstructure:"write_timeout" description:"write timeout duration for requests to the database in milliseconds"`
	SSLMode            string        `mapstructure:"sslmode" description:"defines the SSL mode to be used"`
	SSLRootCert        string        `mapstructure:"sslrootcert" description:"path to the SSL root certificate"`
	Retention          time.Duration `mapstructure:"retention" description:"how long reported states are remembered"`
}

// DefaultSettings returns the default values for the reported store
func DefaultSettings() *Settings {
	return &Settings{
		Type:               TypeMemory,
		MaxIdleConnections: 5,
		MaxOpenConnections: 30,
		ReadTimeout:        900000,
		WriteTimeout:       900000,
		SSLMode:            "disable",
		Retention:          7 * 24 * time.Hour,
	}
}

// Validate validates the reported store settings
func (s *Settings) Validate() error {
	switch s.Type {
	case TypeMemory, TypeRedis:
	case TypePostgres:
		if len(s.URI) == 0 {
			return fmt.Errorf("validate Settings: StorageURI missing")
		}
		if s.MaxIdleConnections < 0 || s.MaxOpenConnections < 0 {
			return fmt.Errorf("validate Settings: connection limits must not be negative")
		}
	default:
		return fmt.Errorf("validate Settings: storage type %s is not supported", s.Type)
	}
	if s.Retention <= 0 {
		return fmt.Errorf("validate Settings: Retention must be positive")
	}
	return nil
}

// ReportKey identifies the terminal state of one operation of a resource
type ReportKey struct {
	// Resource is the service instance or binding the operation was running on
	Resource string
	// Operation is the operation key returned to the platform, possibly empty
	Operation string
}

func (k ReportKey) String() string {
	return k.Resource + "#" + k.Operation
}

// InstanceResource returns the resource name of a service instance
func InstanceResource(instanceID string) string {
	return "instance/" + instanceID
}

// BindingResource returns the resource name of a service binding
func BindingResource(instanceID, bindingID string) string {
	return "binding/" + instanceID + "/" + bindingID
}

// ReportedStore records which terminal states were reported. Implementations are safe for concurrent use.
type ReportedStore interface {
	// MarkReported records the key and returns true only for the first call with that key
	MarkReported(ctx context.Context, key ReportKey) (bool, error)

	// Clear forgets every reported key of the resource, so that the terminal state of the next
	// operation on the resource is reported again
	Clear(ctx context.Context, resource string) error
}

// MemoryStore is a ReportedStore keeping the reported keys in memory
type MemoryStore struct {
	mutex     sync.Mutex
	retention time.Duration
	now       func() time.Time
	reported  map[string]map[string]time.Time
}

// NewMemoryStore creates an in-memory reported store. Keys older than retention are forgotten.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		retention: retention,
		now:       time.Now,
		reported:  make(map[string]map[string]time.Time),
	}
}

// MarkReported implements ReportedStore
func (s *MemoryStore) MarkReported(ctx context.Context, key ReportKey) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	s.expire(now)
	operations, found := s.reported[key.Resource]
	if !found {
		operations = make(map[string]time.Time)
		s.reported[key.Resource] = operations
	}
	if _, reported := operations[key.Operation]; reported {
		return false, nil
	}
	operations[key.Operation] = now
	return true, nil
}

// Clear implements ReportedStore
func (s *MemoryStore) Clear(ctx context.Context, resource string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.reported, resource)
	return nil
}

func (s *MemoryStore) expire(now time.Time) {
	if s.retention <= 0 {
		return
	}
	for resource, operations := range s.reported {
		for operation, reportedAt := range operations {
			if now.Sub(reportedAt) > s.retention {
				delete(operations, operation)
			}
		}
		if len(operations) == 0 {
			delete(s.reported, resource)
		}
	}
}
