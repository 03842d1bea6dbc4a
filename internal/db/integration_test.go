package db

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"github.com/careops/callbell/internal/logging"
	"github.com/careops/callbell/internal/testinfra"
	"github.com/careops/callbell/pkg/callbell"
)

// integrationPool connects to a real SQL Server: CALLBELL_TEST_CONN when
// set, otherwise a throwaway container (CALLBELL_TEST_DOCKER=1).
func integrationPool(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	connStr := os.Getenv("CALLBELL_TEST_CONN")
	if connStr == "" {
		if os.Getenv("CALLBELL_TEST_DOCKER") != "1" {
			t.Skip("CALLBELL_TEST_CONN not set and CALLBELL_TEST_DOCKER != 1")
		}

		ctx := context.Background()
		ctr, err := testinfra.StartSQLServer(ctx)
		if err != nil {
			t.Fatalf("start sql server container: %v", err)
		}
		t.Cleanup(func() { ctr.Terminate(context.Background()) }) //nolint:errcheck
		connStr = ctr.ConnString
	}

	pool, err := sql.Open("sqlserver", connStr)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	return pool
}

func TestIntegration_SessionContextRoundTrip(t *testing.T) {
	pool := integrationPool(t)
	exec := NewExecutor(pool, "master", logging.NewNullLogger())

	ident := callbell.NewIdentityContext().
		Set(callbell.ContextKeyUser, "nurse@example.org").
		Set(callbell.ContextKeySourceApp, "integration-test")

	rs, err := exec.Query(context.Background(),
		"SELECT CAST(SESSION_CONTEXT(N'app_user') AS NVARCHAR(256)) AS app_user, CAST(SESSION_CONTEXT(N'source_app') AS NVARCHAR(256)) AS source_app",
		nil, ident)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rs.Len() != 1 {
		t.Fatalf("got %d rows", rs.Len())
	}
	if rs.Rows[0][0] != "nurse@example.org" {
		t.Errorf("app_user = %v", rs.Rows[0][0])
	}
	if rs.Rows[0][1] != "integration-test" {
		t.Errorf("source_app = %v", rs.Rows[0][1])
	}
}

func TestIntegration_SessionContextDoesNotLeakAcrossCalls(t *testing.T) {
	pool := integrationPool(t)
	exec := NewExecutor(pool, "master", logging.NewNullLogger())

	ident := callbell.NewIdentityContext().Set(callbell.ContextKeyUser, "first@example.org")
	if _, err := exec.Query(context.Background(), "SELECT 1 AS one", nil, ident); err != nil {
		t.Fatalf("seed query: %v", err)
	}

	// A later call without identity must not observe the earlier value:
	// each call sets its own context, and unattributed calls set none.
	rs, err := exec.Query(context.Background(),
		"SELECT CAST(SESSION_CONTEXT(N'app_user') AS NVARCHAR(256)) AS app_user", nil,
		callbell.NewIdentityContext().Set(callbell.ContextKeyUser, "second@example.org"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if rs.Rows[0][0] != "second@example.org" {
		t.Errorf("app_user = %v, want the second caller's identity", rs.Rows[0][0])
	}
}

func TestIntegration_ScalarAndRowSetResults(t *testing.T) {
	pool := integrationPool(t)
	exec := NewExecutor(pool, "master", logging.NewNullLogger())

	result, err := exec.Exec(context.Background(), "SELECT 'plain message' AS msg", nil, "")
	if err != nil {
		t.Fatalf("scalar exec: %v", err)
	}
	if result != "plain message" {
		t.Errorf("scalar result = %v", result)
	}

	result, err = exec.Exec(context.Background(),
		"SELECT n FROM (VALUES (1), (2), (3)) AS t(n)", nil, "")
	if err != nil {
		t.Fatalf("rowset exec: %v", err)
	}
	rs, ok := result.(*callbell.RowSet)
	if !ok {
		t.Fatalf("result is %T, want *RowSet", result)
	}
	if rs.Len() != 3 {
		t.Errorf("got %d rows, want 3", rs.Len())
	}
}
