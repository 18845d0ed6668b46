package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	query := json.RawMessage(`{"dominio":"fd"}`)
	require.NoError(t, s.Create(ctx, "q1", query, "alice"))

	rec, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, StateRecibido, rec.Estado)
	assert.Equal(t, "alice", rec.Usuario)
	assert.JSONEq(t, string(query), string(rec.Query))
}

func TestCreateDuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	query := json.RawMessage(`{}`)

	require.NoError(t, s.Create(ctx, "dup", query, ""))
	err := s.Create(ctx, "dup", query, "")
	require.Error(t, err)
}

func TestUpdateStateAndSaveResults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "q2", json.RawMessage(`{}`), ""))

	require.NoError(t, s.UpdateState(ctx, "q2", StateProcesando, 20, "Identificados"))
	rec, err := s.Get(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, StateProcesando, rec.Estado)
	assert.Equal(t, 20, rec.Progreso)

	results := json.RawMessage(`{"total_archivos":5}`)
	require.NoError(t, s.SaveResults(ctx, "q2", results, "Recuperación: T=5"))
	rec, err = s.Get(ctx, "q2")
	require.NoError(t, err)
	assert.Equal(t, StateCompletado, rec.Estado)
	assert.Equal(t, 100, rec.Progreso)
	assert.JSONEq(t, string(results), string(rec.Resultados))
}

func TestGetMissingReturnsNilNoError(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdateStateMissingIDErrors(t *testing.T) {
	s := openTestStore(t)
	err := s.UpdateState(context.Background(), "missing", StateError, 0, "boom")
	require.Error(t, err)
}

func TestListFiltersByEstado(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "a", json.RawMessage(`{}`), ""))
	require.NoError(t, s.Create(ctx, "b", json.RawMessage(`{}`), ""))
	require.NoError(t, s.UpdateState(ctx, "b", StateCompletado, 100, "done"))

	recs, err := s.List(ctx, StateCompletado, "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].ID)
}

func TestDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, "c", json.RawMessage(`{}`), ""))
	require.NoError(t, s.Delete(ctx, "c"))

	rec, err := s.Get(ctx, "c")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
