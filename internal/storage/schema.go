package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.withSchemaTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		creators := []func(*sql.Tx) error{
			createAnalysesTable,
			createAnalysisStatsTable,
			createFilesTable,
			createLineHashesTable,
			createMovesTable,
			createAddedFilesTable,
		}
		for _, create := range creators {
			if err := create(tx); err != nil {
				return err
			}
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", "version", currentSchemaVersion)
		return nil
	})
}

func (db *DB) withSchemaTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", "version", version)
		return nil
	}
	if version == 0 {
		// file exists but was never initialized, e.g. created empty by another tool
		return db.initializeSchema()
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	db.logger.Info("Running database migrations",
		"from_version", version,
		"to_version", currentSchemaVersion,
	)
	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.conn.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

func createIndexes(tx *sql.Tx, indexes []string) error {
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// createAnalysesTable creates the analyses table, one row per recorded run
func createAnalysesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS analyses (
			uuid TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			branch TEXT NOT NULL,
			pull_request INTEGER NOT NULL DEFAULT 0,
			target_branch TEXT,
			created_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analyses table: %w", err)
	}

	return createIndexes(tx, []string{
		"CREATE INDEX IF NOT EXISTS idx_analyses_project_branch ON analyses(project, branch, created_at)",
	})
}

// createAnalysisStatsTable creates the analysis_stats table
func createAnalysisStatsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_stats (
			analysis_uuid TEXT NOT NULL,
			key TEXT NOT NULL,
			value INTEGER NOT NULL,
			position INTEGER NOT NULL,

			PRIMARY KEY (analysis_uuid, key),
			FOREIGN KEY (analysis_uuid) REFERENCES analyses(uuid) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create analysis_stats table: %w", err)
	}
	return nil
}

// createFilesTable creates the files table holding each analysis' file tree
func createFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS files (
			analysis_uuid TEXT NOT NULL,
			uuid TEXT NOT NULL,
			key TEXT NOT NULL,
			path TEXT,
			line_count INTEGER NOT NULL CHECK(line_count >= 0),

			PRIMARY KEY (analysis_uuid, uuid),
			FOREIGN KEY (analysis_uuid) REFERENCES analyses(uuid) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create files table: %w", err)
	}

	return createIndexes(tx, []string{
		"CREATE INDEX IF NOT EXISTS idx_files_analysis_path ON files(analysis_uuid, path)",
	})
}

// createLineHashesTable creates the line_hashes table, one JSON array per file
func createLineHashesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS line_hashes (
			analysis_uuid TEXT NOT NULL,
			file_uuid TEXT NOT NULL,
			hashes_json TEXT NOT NULL,

			PRIMARY KEY (analysis_uuid, file_uuid),
			FOREIGN KEY (analysis_uuid, file_uuid) REFERENCES files(analysis_uuid, uuid) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create line_hashes table: %w", err)
	}
	return nil
}

// createMovesTable creates the moves table
func createMovesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS moves (
			analysis_uuid TEXT NOT NULL,
			file_uuid TEXT NOT NULL,
			file_key TEXT NOT NULL,
			file_path TEXT,
			original_uuid TEXT NOT NULL,
			original_key TEXT NOT NULL,
			original_path TEXT,

			PRIMARY KEY (analysis_uuid, file_uuid),
			FOREIGN KEY (analysis_uuid) REFERENCES analyses(uuid) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create moves table: %w", err)
	}

	return createIndexes(tx, []string{
		"CREATE INDEX IF NOT EXISTS idx_moves_original_uuid ON moves(original_uuid)",
	})
}

// createAddedFilesTable creates the added_files table
func createAddedFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS added_files (
			analysis_uuid TEXT NOT NULL,
			file_uuid TEXT NOT NULL,
			file_key TEXT NOT NULL,
			file_path TEXT,

			PRIMARY KEY (analysis_uuid, file_uuid),
			FOREIGN KEY (analysis_uuid) REFERENCES analyses(uuid) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create added_files table: %w", err)
	}
	return nil
}
