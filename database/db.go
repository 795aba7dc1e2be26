package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/listmirror/listmirror/config"
	"github.com/listmirror/listmirror/mapping"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn     *sql.DB
	Registry *mapping.Registry
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		registry, errReg := mapping.NewRegistry(configuration.Targets)
		if errReg != nil {
			err = errReg
			return
		}
		instance = &Datasource{Conn: con, Registry: registry}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createSchema(db)
	if err != nil {
		return nil, err
	}
	err = createSyncAttemptTable(db)
	if err != nil {
		return nil, err
	}
	err = createArtifactTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS listmirror`)
	if err != nil {
		log.Printf("Error creating listmirror schema: %v", err)
	}
	return err
}

// createSyncAttemptTable creates the append-only checkpoint journal.
// Rows are inserted at the end of an orchestration step and never
// updated; the effective watermark is resolved by query.
func createSyncAttemptTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS listmirror.sync_attempts (
			id SERIAL PRIMARY KEY,
			attempt_id TEXT NOT NULL UNIQUE,
			site_id TEXT NOT NULL,
			list_id TEXT NOT NULL,
			delta_link TEXT,
			status TEXT NOT NULL,
			last_error TEXT,
			subscription_id TEXT,
			successful_items INTEGER NOT NULL DEFAULT 0,
			failed_items INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			last_processed_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		log.Printf("Error creating sync_attempts table: %v", err)
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sync_attempts_watermark
		ON listmirror.sync_attempts (site_id, list_id, created_at DESC)
		WHERE delta_link IS NOT NULL
	`)
	log.Println(err)
	return err
}

// createArtifactTable creates the dedup store. Every derived business
// row references artifact_id with ON DELETE CASCADE, so dropping an
// artifact record removes its derived rows with it.
func createArtifactTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS listmirror.artifacts (
			id SERIAL PRIMARY KEY,
			artifact_id TEXT NOT NULL UNIQUE,
			content_hash CHAR(64) NOT NULL,
			content_size BIGINT NOT NULL,
			source_item_id TEXT NOT NULL,
			status TEXT NOT NULL,
			processing_error TEXT,
			row_count INTEGER NOT NULL DEFAULT 0,
			attempt_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE (content_hash, content_size)
		)
	`)
	log.Println(err)
	return err
}
