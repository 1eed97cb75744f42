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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path"
	"runtime"
	"strconv"
	"time"

	"github.com/InVisionApp/go-health/v2/checkers"
	_ "github.com/Kount/pq-timeouts"
	"github.com/Peripli/service-broker/pkg/log"
	"github.com/Peripli/service-broker/storage"
	"github.com/golang-migrate/migrate"
	migratepg "github.com/golang-migrate/migrate/database/postgres"
	_ "github.com/golang-migrate/migrate/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	// Driver is the sql driver used for PostgreSQL connections, lib/pq with read and write timeouts
	Driver = "pq-timeouts"

	reportedOperationsTable = "reported_operations"
)

// ConnectFunc opens the database connection
type ConnectFunc func(driver string, url string) (*sql.DB, error)

// Open connects to the database described by the settings and updates its schema
func Open(ctx context.Context, settings *storage.Settings, connect ConnectFunc) (*sqlx.DB, error) {
	if settings.URI == "" {
		return nil, fmt.Errorf("storage URI cannot be empty")
	}
	dsn, err := dataSourceName(settings)
	if err != nil {
		return nil, err
	}
	if connect == nil {
		connect = sql.Open
	}
	sqlDB, err := connect(Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to PostgreSQL: %s", err)
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	db.SetMaxIdleConns(settings.MaxIdleConnections)
	db.SetMaxOpenConns(settings.MaxOpenConnections)
	if err := db.PingContext(ctx); err != nil {
		closeDB(ctx, db)
		return nil, fmt.Errorf("could not ping PostgreSQL: %s", err)
	}

	log.C(ctx).Debug("Updating database schema")
	if err := updateSchema(ctx, db); err != nil {
		closeDB(ctx, db)
		return nil, fmt.Errorf("could not update database schema: %s", err)
	}
	return db, nil
}

func closeDB(ctx context.Context, db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.C(ctx).WithError(err).Error("Could not close the database connection")
	}
}

func dataSourceName(settings *storage.Settings) (string, error) {
	uri, err := url.Parse(settings.URI)
	if err != nil {
		return "", fmt.Errorf("invalid storage URI: %s", err)
	}
	query := uri.Query()
	if settings.SSLMode != "" {
		query.Set("sslmode", settings.SSLMode)
	}
	if settings.SSLRootCert != "" {
		query.Set("sslrootcert", settings.SSLRootCert)
	}
	query.Set("read_timeout", strconv.Itoa(settings.ReadTimeout))
	query.Set("write_timeout", strconv.Itoa(settings.WriteTimeout))
	uri.RawQuery = query.Encode()
	return uri.String(), nil
}

func getMigrateDir() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("could not get database migrations scripts dir")
	}
	return path.Join(path.Dir(filename), "migrations"), nil
}

func updateSchema(ctx context.Context, db *sqlx.DB) error {
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return err
	}
	migrateDir, err := getMigrateDir()
	if err != nil {
		return err
	}
	log.C(ctx).Debug("Migration scripts dir: ", migrateDir)
	m, err := migrate.NewWithDatabaseInstance("file://"+migrateDir, "postgres", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err == migrate.ErrNoChange {
		log.C(ctx).Debug("Database schema already up to date")
		err = nil
	}
	return err
}

// ReportedStore is a storage.ReportedStore backed by PostgreSQL
type ReportedStore struct {
	db        *sqlx.DB
	retention time.Duration
	now       func() time.Time
}

// NewReportedStore creates a reported store on an open database
func NewReportedStore(db *sqlx.DB, retention time.Duration) *ReportedStore {
	return &ReportedStore{
		db:        db,
		retention: retention,
		now:       time.Now,
	}
}

// MarkReported implements storage.ReportedStore
func (s *ReportedStore) MarkReported(ctx context.Context, key storage.ReportKey) (bool, error) {
	now := s.now().UTC()
	if s.retention > 0 {
		expireQuery := fmt.Sprintf("DELETE FROM %s WHERE resource = $1 AND operation = $2 AND reported_at < $3", reportedOperationsTable)
		if _, err := s.db.ExecContext(ctx, expireQuery, key.Resource, key.Operation, now.Add(-s.retention)); err != nil {
			return false, err
		}
	}

	insertQuery := fmt.Sprintf("INSERT INTO %s (resource, operation, reported_at) VALUES ($1, $2, $3) ON CONFLICT (resource, operation) DO NOTHING", reportedOperationsTable)
	result, err := s.db.ExecContext(ctx, insertQuery, key.Resource, key.Operation, now)
	if err != nil {
		return false, err
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted == 1, nil
}

// Clear implements storage.ReportedStore
func (s *ReportedStore) Clear(ctx context.Context, resource string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE resource = $1", reportedOperationsTable)
	_, err := s.db.ExecContext(ctx, query, resource)
	return err
}

// HealthIndicator reports the availability of the database
type HealthIndicator struct {
	*checkers.SQL
}

// NewHealthIndicator creates a health indicator pinging the database
func NewHealthIndicator(db *sqlx.DB) (*HealthIndicator, error) {
	sqlChecker, err := checkers.NewSQL(&checkers.SQLConfig{
		Pinger: db,
	})
	if err != nil {
		return nil, err
	}
	return &HealthIndicator{SQL: sqlChecker}, nil
}

// Name implements health.Indicator
func (i *HealthIndicator) Name() string {
	return "storage"
}
