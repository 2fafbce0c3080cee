package sqlite

import (
	"context"
	"testing"

	"github.com/leapstack-labs/workbench/pkg/adapter"
	"github.com/leapstack-labs/workbench/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_Registered(t *testing.T) {
	for _, typ := range []string{"sqlite", "SQLite3"} {
		adp, err := adapter.NewAdapter(core.AdapterConfig{Type: typ}, nil)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", adp.DialectName())
	}
}

func TestAdapter_InMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	adp := New(nil)
	require.NoError(t, adp.Connect(ctx, core.AdapterConfig{}))
	defer func() { _ = adp.Close() }()

	_, err := adp.Exec(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)
	affected, err := adp.Exec(ctx, "INSERT INTO t VALUES (1), (2), (3)")
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)

	rows, err := adp.Query(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var n int
	require.NoError(t, rows.Scan(&n))
	assert.Equal(t, 3, n)
}
