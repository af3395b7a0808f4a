//go:build integration

package detail_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-termit/internal/detail"
)

func TestSQLSource(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, detail.Migrate(ctx, db))
	records, err := detail.Seed()
	require.NoError(t, err)
	require.NoError(t, detail.Store(ctx, db, records))

	src := detail.NewSQLSource(db, zerolog.Nop())
	r, ok := src.Lookup("samsung-lotte")
	require.True(t, ok)
	assert.Equal(t, "서울특별시 강남구 삼성동 17", r.Title)
	assert.Len(t, r.AdditionalTransactions, 2)

	_, ok = src.Lookup("atlantis")
	assert.False(t, ok)
	assert.Len(t, src.IDs(), len(records))

	// Served from cache once read, even if the row changes underneath.
	changed := r
	changed.Title = "changed"
	require.NoError(t, detail.Store(ctx, db, []detail.Record{changed}))
	r, _ = src.Lookup("samsung-lotte")
	assert.NotEqual(t, "changed", r.Title)

	src.Invalidate()
	r, _ = src.Lookup("samsung-lotte")
	assert.Equal(t, "changed", r.Title)

	b := detail.NewBinder(src)
	b.Bind("hongjewon-hyundai")
	assert.True(t, b.View().Open())
}
