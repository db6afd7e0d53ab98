// Package testutil spins up throwaway infrastructure for integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

const startupTimeout = 2 * time.Minute

// StartPostgres runs a disposable postgres container with the schema applied
// and returns an open pool. The container is terminated on test cleanup.
func StartPostgres(tb testing.TB) *sql.DB {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithInitScripts(migrationFiles(tb)...),
		tcpostgres.WithDatabase("metis_test"),
		tcpostgres.WithUsername("metis"),
		tcpostgres.WithPassword("metis"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		tb.Fatalf("start postgres container: %v", err)
	}
	tb.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		tb.Fatalf("postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	tb.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.PingContext(ctx); err != nil {
		tb.Fatalf("ping postgres: %v", err)
	}
	return db
}

// StartRedis runs a disposable redis container and returns a connected client.
func StartRedis(tb testing.TB) *goredis.Client {
	tb.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		tb.Fatalf("start redis container: %v", err)
	}
	tb.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		tb.Fatalf("redis connection string: %v", err)
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		tb.Fatalf("parse redis url: %v", err)
	}

	client := goredis.NewClient(opts)
	tb.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Ping(ctx).Err(); err != nil {
		tb.Fatalf("ping redis: %v", err)
	}
	return client
}

// TruncateTables empties the given tables between test cases. Order does not
// matter; CASCADE follows foreign keys.
func TruncateTables(tb testing.TB, db *sql.DB, tables ...string) {
	tb.Helper()
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := db.Exec(query); err != nil {
		tb.Fatalf("truncate tables: %v", err)
	}
}

// migrationFiles resolves the repository's migrations relative to this file,
// so tests work from any package directory.
func migrationFiles(tb testing.TB) []string {
	tb.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		tb.Fatal("cannot locate migrations directory")
	}
	root := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	pattern := filepath.Join(root, "migrations", "*.sql")
	files, err := filepath.Glob(pattern)
	if err != nil || len(files) == 0 {
		tb.Fatalf("no migration files under %s", pattern)
	}
	return files
}
