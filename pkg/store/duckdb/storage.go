package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/marcboeker/go-duckdb/v2"
)

const ModulesSchema = `
	CREATE TABLE IF NOT EXISTS modules (
		id INTEGER NOT NULL PRIMARY KEY,
		code VARCHAR NOT NULL UNIQUE
	);
`

// Seeded once at boot; ids are stable and referenced by tier_modules.
const ModulesSeed = `
	INSERT OR IGNORE INTO modules (id, code) VALUES
		(1, 'NETWORK'), (2, 'BACKUP'), (3, 'COST'), (4, 'IDENTITY'),
		(5, 'POLICY'), (6, 'RESOURCE'), (7, 'RESERVATION'), (8, 'SECURITY'),
		(9, 'PATCH'), (10, 'PERFORMANCE'), (11, 'COMPLIANCE');
`

const AssessmentsSchema = `
	CREATE TABLE IF NOT EXISTS assessments (
		id VARCHAR NOT NULL PRIMARY KEY,
		customer_id VARCHAR NOT NULL,
		connection_id VARCHAR NOT NULL,
		module_id INTEGER NOT NULL,
		module_code VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		total_units INTEGER NOT NULL,
		completed_units INTEGER NOT NULL DEFAULT 0,
		total_findings INTEGER,
		high_findings INTEGER,
		medium_findings INTEGER,
		low_findings INTEGER,
		score INTEGER,
		error_message VARCHAR,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		completed_at TIMESTAMP
	);
`

const FindingsSchema = `
	CREATE TABLE IF NOT EXISTS assessment_findings (
		assessment_id VARCHAR NOT NULL,
		module_code VARCHAR NOT NULL,
		subscription_id VARCHAR NOT NULL,
		severity VARCHAR NOT NULL,
		category VARCHAR,
		resource_id VARCHAR,
		resource_name VARCHAR,
		resource_type VARCHAR,
		finding_text VARCHAR,
		recommendation VARCHAR,
		content_hash VARCHAR NOT NULL,
		change_status VARCHAR NOT NULL,
		status VARCHAR NOT NULL,
		first_seen_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		occurrence_count INTEGER NOT NULL
	);
`

const ModuleResultsSchema = `
	CREATE TABLE IF NOT EXISTS module_results (
		assessment_id VARCHAR NOT NULL,
		subscription_id VARCHAR NOT NULL,
		subscription_name VARCHAR,
		status VARCHAR NOT NULL,
		total_findings INTEGER NOT NULL,
		high_findings INTEGER NOT NULL,
		medium_findings INTEGER NOT NULL,
		low_findings INTEGER NOT NULL,
		score INTEGER NOT NULL,
		error_message VARCHAR,
		completed_at TIMESTAMP NOT NULL,
		PRIMARY KEY (assessment_id, subscription_id)
	);
`

const CustomerFindingsSchema = `
	CREATE TABLE IF NOT EXISTS customer_findings (
		customer_id VARCHAR NOT NULL,
		module_code VARCHAR NOT NULL,
		content_hash VARCHAR NOT NULL,
		severity VARCHAR,
		category VARCHAR,
		resource_id VARCHAR,
		resource_name VARCHAR,
		resource_type VARCHAR,
		finding_text VARCHAR,
		recommendation VARCHAR,
		status VARCHAR NOT NULL,
		first_seen_at TIMESTAMP NOT NULL,
		last_seen_at TIMESTAMP NOT NULL,
		occurrence_count INTEGER NOT NULL,
		resolved_at TIMESTAMP,
		last_assessment_id VARCHAR,
		PRIMARY KEY (customer_id, module_code, content_hash)
	);
`

const ConnectionsSchema = `
	CREATE TABLE IF NOT EXISTS connections (
		id VARCHAR NOT NULL PRIMARY KEY,
		customer_id VARCHAR NOT NULL,
		name VARCHAR,
		credentials_ref VARCHAR
	);
`

const SubscriptionsSchema = `
	CREATE TABLE IF NOT EXISTS subscriptions (
		id VARCHAR NOT NULL,
		connection_id VARCHAR NOT NULL,
		name VARCHAR,
		tier_id VARCHAR NOT NULL,
		PRIMARY KEY (connection_id, id)
	);
`

const TierModulesSchema = `
	CREATE TABLE IF NOT EXISTS tier_modules (
		tier_id VARCHAR NOT NULL,
		module_id INTEGER NOT NULL,
		PRIMARY KEY (tier_id, module_id)
	);
`

var bootQueries = []string{
	ModulesSchema,
	ModulesSeed,
	AssessmentsSchema,
	FindingsSchema,
	ModuleResultsSchema,
	CustomerFindingsSchema,
	ConnectionsSchema,
	SubscriptionsSchema,
	TierModulesSchema,
}

type Settings struct {
	DbPath string
}

func NewDB(settings Settings) (*sql.DB, error) {
	c, err := duckdb.NewConnector(fmt.Sprintf("%s?threads=4", settings.DbPath), func(exec driver.ExecerContext) error {
		for _, query := range bootQueries {
			_, err := exec.ExecContext(context.Background(), query, nil)
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(c)
	return db, nil
}
