package persistence

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationSource(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{"migrations/postgres", "file://migrations/postgres"},
		{"file://migrations/postgres", "file://migrations/postgres"},
		{"/srv/engine/migrations", "file:///srv/engine/migrations"},
	}
	for _, tc := range testCases {
		got, err := migrationSource(tc.path)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	for _, empty := range []string{"", "file://"} {
		_, err := migrationSource(empty)
		assert.ErrorIs(t, err, ErrEmptyMigrationsPath)
	}
}

func TestRunMigrations_InputValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("EmptyMigrationsPath", func(t *testing.T) {
		err := RunMigrations(logger, "postgres://test", "")
		assert.ErrorIs(t, err, ErrEmptyMigrationsPath)
	})

	t.Run("EmptyDatabaseURL", func(t *testing.T) {
		err := RunMigrations(logger, "", "file://./migrations")
		assert.ErrorIs(t, err, ErrEmptyDatabaseURL)
	})

	t.Run("MissingSource", func(t *testing.T) {
		err := RunMigrations(logger, "postgres://localhost:1/none?sslmode=disable", t.TempDir()+"/absent")
		assert.ErrorContains(t, err, "failed to create migrate instance")
	})
}
