// Package store implements the persistent query-record store: a thin
// database/sql layer over SQLite holding one row per historic-file query,
// matching the §3 "Query record (persistent)" shape.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"goesretrieval/internal/apperr"
)

// Lifecycle states, per §3.
const (
	StateRecibido   = "recibido"
	StateProcesando = "procesando"
	StateCompletado = "completado"
	StateError      = "error"
)

// Record is one row of the consultas table.
type Record struct {
	ID                     string
	Estado                 string
	Query                  json.RawMessage
	Resultados             json.RawMessage
	Progreso               int
	Mensaje                string
	TimestampCreacion      time.Time
	TimestampActualizacion time.Time
	Usuario                string
}

// Store wraps a *sql.DB open against a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the consultas table exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperr.FatalQuery(err, "opening store at %s", path)
	}
	db.SetMaxOpenConns(1) // SQLite serializes writers; avoid SQLITE_BUSY under the worker pool.

	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return nil, apperr.FatalQuery(err, "enabling foreign keys")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, apperr.FatalQuery(err, "creating consultas table")
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS consultas (
	id TEXT PRIMARY KEY,
	estado TEXT NOT NULL,
	query TEXT NOT NULL,
	resultados TEXT,
	progreso INTEGER DEFAULT 0,
	mensaje TEXT,
	timestamp_creacion DATETIME NOT NULL,
	timestamp_actualizacion DATETIME NOT NULL,
	usuario TEXT DEFAULT 'anonimo'
)`

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new record in state recibido. Returns a ValidationError
// if the id already exists.
func (s *Store) Create(ctx context.Context, id string, query json.RawMessage, usuario string) error {
	now := time.Now().UTC()
	if usuario == "" {
		usuario = "anonimo"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consultas (id, estado, query, progreso, timestamp_creacion, timestamp_actualizacion, usuario)
		VALUES (?, ?, ?, 0, ?, ?, ?)
	`, id, StateRecibido, string(query), now, now, usuario)
	if err != nil {
		return apperr.Validation("query id %s already exists: %v", id, err)
	}
	return nil
}

// UpdateState sets estado/progreso/mensaje for a record. Only the
// orchestrator (and the restart operation, which writes recibido) should
// call this.
func (s *Store) UpdateState(ctx context.Context, id, estado string, progreso int, mensaje string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE consultas SET estado = ?, progreso = ?, mensaje = ?, timestamp_actualizacion = ?
		WHERE id = ?
	`, estado, progreso, mensaje, time.Now().UTC(), id)
	if err != nil {
		return apperr.FatalQuery(err, "updating state for %s", id)
	}
	return checkAffected(res, id)
}

// SaveResults persists the final report and transitions the record to
// completado with progreso=100.
func (s *Store) SaveResults(ctx context.Context, id string, resultados json.RawMessage, mensaje string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE consultas
		SET resultados = ?, estado = ?, progreso = 100, mensaje = ?, timestamp_actualizacion = ?
		WHERE id = ?
	`, string(resultados), StateCompletado, mensaje, time.Now().UTC(), id)
	if err != nil {
		return apperr.FatalQuery(err, "saving results for %s", id)
	}
	return checkAffected(res, id)
}

// Get fetches a single record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, estado, query, resultados, progreso, mensaje, timestamp_creacion, timestamp_actualizacion, usuario
		FROM consultas WHERE id = ?
	`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.FatalQuery(err, "fetching %s", id)
	}
	return rec, nil
}

// List returns records matching the optional estado/usuario filters, most
// recent first, capped at limite.
func (s *Store) List(ctx context.Context, estado, usuario string, limite int) ([]*Record, error) {
	if limite <= 0 {
		limite = 100
	}
	q := `SELECT id, estado, query, resultados, progreso, mensaje, timestamp_creacion, timestamp_actualizacion, usuario FROM consultas WHERE 1=1`
	var args []any
	if estado != "" {
		q += " AND estado = ?"
		args = append(args, estado)
	}
	if usuario != "" {
		q += " AND usuario = ?"
		args = append(args, usuario)
	}
	q += " ORDER BY timestamp_creacion DESC LIMIT ?"
	args = append(args, limite)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, apperr.FatalQuery(err, "listing consultas")
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.FatalQuery(err, "scanning consulta row")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM consultas WHERE id = ?`, id)
	if err != nil {
		return apperr.FatalQuery(err, "deleting %s", id)
	}
	return checkAffected(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var resultados sql.NullString
	var mensaje sql.NullString
	if err := row.Scan(&rec.ID, &rec.Estado, &rec.Query, &resultados, &rec.Progreso, &mensaje,
		&rec.TimestampCreacion, &rec.TimestampActualizacion, &rec.Usuario); err != nil {
		return nil, err
	}
	if resultados.Valid {
		rec.Resultados = json.RawMessage(resultados.String)
	}
	rec.Mensaje = mensaje.String
	return &rec, nil
}

func checkAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.FatalQuery(err, "checking rows affected for %s", id)
	}
	if n == 0 {
		return apperr.Validation("no such query id %s", id)
	}
	return nil
}
