package database

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/stockroute/internal/config"
)

// OpenTest returns a migrated in-memory sqlite database private to t.
func OpenTest(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := Connect(config.DBConfig{Driver: "sqlite", URL: dsn}, nil)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	// A single connection keeps the shared in-memory database alive and
	// serializes writers.
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() { _ = Close(conn) })
	return conn
}
