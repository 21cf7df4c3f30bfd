package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Rows without an embedding carry SQL NULL, which pgx refuses to scan into a
// plain string. Both column lists must coalesce the cast so such rows come
// back as the empty literal parseVec maps to nil.
func TestEmbeddingColumnsNullSafe(t *testing.T) {
	assert.Contains(t, eventCols, "COALESCE(embedding::text, '')")
	assert.Contains(t, contractCols, "COALESCE(embedding::text, '')")
}

// Listing uniqueness only applies while a row is active, so a deactivated
// historical row can coexist with a re-listed one.
func TestContractUniquenessScopedToActiveRows(t *testing.T) {
	schema, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)

	assert.Contains(t, string(schema), "CREATE UNIQUE INDEX IF NOT EXISTS idx_contracts_source_active")
	assert.NotContains(t, string(schema), "UNIQUE (source, source_id)")
}
