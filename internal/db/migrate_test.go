package db

import (
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-chat-scheduling/internal/db/migrations"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(migrations.FS, "*.sql")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"0001_init.up.sql", "0001_init.down.sql"}, files)

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}

func TestInitMigrationGuardsDoubleBooking(t *testing.T) {
	up, err := fs.ReadFile(migrations.FS, "0001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "UNIQUE (doctor_id, appt_date, appt_time)")
}

func TestConnectPostgresRejectsBadDSN(t *testing.T) {
	_, err := ConnectPostgres(t.Context(), "::not a dsn::", 0)
	assert.Error(t, err)
}
