// Package sqlstoretest opens migrated throwaway databases for tests.
package sqlstoretest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dharun-sukumar/Audio-Rag/infrastructure/persistence/sqlstore"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// New returns a migrated store backed by a file in t.TempDir.
func New(t testing.TB) *sqlstore.Store {
	t.Helper()

	store, err := sqlstore.Open(sqlstore.Config{
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// Count returns the number of rows in table.
func Count(t testing.TB, store *sqlstore.Store, table string) int64 {
	t.Helper()

	var n int64
	require.NoError(t, store.DB().Table(table).Count(&n).Error)
	return n
}
