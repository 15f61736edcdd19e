package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/hamzali/surge"
)

var ErrDBNotInitialized = errors.New("database connection not initialized")

type Database struct {
	conn *sql.DB
}

func New(host, user, password, dbname string, port int, ssl bool) (*Database, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s",
		host, port, user, password, dbname,
	)
	if !ssl {
		dsn += " sslmode=disable"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open db connection: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("can't ping db: %w", err)
	}

	return &Database{conn: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          UUID PRIMARY KEY,
	base_url    TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	run_id         UUID NOT NULL REFERENCES runs (id),
	level          INT NOT NULL,
	endpoint       TEXT NOT NULL,
	method         TEXT NOT NULL,
	status_code    INT NOT NULL,
	duration_ms    DOUBLE PRECISION NOT NULL,
	issued_at      TIMESTAMPTZ NOT NULL,
	response_bytes BIGINT NOT NULL,
	concurrency    INT NOT NULL,
	error          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS results_run_id_idx ON results (run_id);
`

func (db *Database) EnsureSchema() error {
	if db.conn == nil {
		return ErrDBNotInitialized
	}

	_, err := db.conn.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const (
	insertRun = `
INSERT INTO runs (id, base_url, started_at, finished_at)
VALUES ($1, $2, $3, $4);
`
	insertResult = `
INSERT INTO results (run_id, level, endpoint, method, status_code,
	duration_ms, issued_at, response_bytes, concurrency, error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
)

// SaveRun stores the run and every raw result in one transaction.
func (db *Database) SaveRun(run *surge.Run) error {
	if db.conn == nil {
		return ErrDBNotInitialized
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(insertRun, run.ID.String(), run.BaseURL, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(insertResult)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, level := range run.Levels {
		for _, r := range level.Results {
			_, err = stmt.Exec(
				run.ID.String(),
				level.Concurrency,
				r.Endpoint,
				r.Method,
				r.StatusCode,
				float64(r.Duration.Microseconds())/1000,
				r.Timestamp,
				r.Bytes,
				r.Concurrency,
				r.Err,
			)
			if err != nil {
				return fmt.Errorf("failed to insert result: %w", err)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}

	return nil
}

func (db *Database) Close() {
	if db.conn == nil {
		return
	}

	if err := db.conn.Close(); err != nil {
		return
	}
}
