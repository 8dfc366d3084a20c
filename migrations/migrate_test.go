package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_indexes.sql", "0003_inventory_unconfirmed.sql"}, names)
}

func TestOpenEntryIndexIsPartial(t *testing.T) {
	content, err := files.ReadFile("0002_indexes.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "ux_queue_entries_open")
	assert.Contains(t, string(content), "WHERE status IN ('pending', 'processing')")
}

func TestUnconfirmedInventoryStatusAllowed(t *testing.T) {
	content, err := files.ReadFile("0003_inventory_unconfirmed.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "'unconfirmed'")
}
