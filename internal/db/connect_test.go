package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebinder(t *testing.T) {
	q := `SELECT a FROM t WHERE x=? AND y='?' AND z=?`
	assert.Equal(t, q, Rebinder(DriverSQLite)(q))
	assert.Equal(t, `SELECT a FROM t WHERE x=$1 AND y='?' AND z=$2`, Rebinder(DriverPostgres)(q))
}

func TestOpenSQLiteAppliesSchema(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, DriverSQLite, "file:schema?mode=memory&cache=shared")
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"quizzes", "questions", "attempts", "question_scores", "contents", "event_log"} {
		var name string
		err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
	// idempotent
	require.NoError(t, EnsureSchema(ctx, conn, DriverSQLite))

	_, err = Open(ctx, Driver("mysql"), "")
	assert.Error(t, err)
}
