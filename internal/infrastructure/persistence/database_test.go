package persistence

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockedDatabase wraps a sqlmock connection that tracks pings
func mockedDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	// gorm pings once while opening
	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return &Database{DB: gormDB}, mock
}

// newMockDatabase wraps a plain sqlmock connection for statement assertions
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: conn, DriverName: "postgres"}),
		&gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	return &Database{DB: gormDB}, mock, conn
}

func TestDatabase_Ping(t *testing.T) {
	t.Run("alive", func(t *testing.T) {
		db, mock := mockedDatabase(t)
		mock.ExpectPing()

		require.NoError(t, db.Ping())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("connection lost", func(t *testing.T) {
		db, mock := mockedDatabase(t)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		assert.ErrorContains(t, db.Ping(), "connection refused")
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _ := mockedDatabase(t)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
	assert.GreaterOrEqual(t, stats.WaitCount, int64(0))
}

func TestConnectionStats_Saturated(t *testing.T) {
	assert.False(t, ConnectionStats{MaxOpenConnections: 0, InUse: 40}.Saturated())
	assert.False(t, ConnectionStats{MaxOpenConnections: 10, InUse: 9}.Saturated())
	assert.True(t, ConnectionStats{MaxOpenConnections: 10, InUse: 10}.Saturated())
}

func TestDatabase_CheckPool(t *testing.T) {
	db, _ := mockedDatabase(t)
	assert.NoError(t, db.CheckPool())
}

func TestDatabase_Close(t *testing.T) {
	db, mock := mockedDatabase(t)
	mock.ExpectClose()

	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
