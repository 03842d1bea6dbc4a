package reports

import (
	"context"
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"github.com/careops/callbell/internal/db"
	"github.com/careops/callbell/internal/fakedb"
	"github.com/careops/callbell/internal/logging"
)

func testLoader(t *testing.T, ttl time.Duration) (*Loader, *fakedb.DB) {
	t.Helper()
	script := fakedb.New()
	exec := db.NewExecutor(script.Open(), "care_reporting", logging.NewNullLogger())
	t.Cleanup(func() { exec.Close() })
	return NewLoader(exec, nil, ttl), script
}

func countSelects(queries []string) int {
	n := 0
	for _, q := range queries {
		if strings.HasPrefix(q, "SELECT") {
			n++
		}
	}
	return n
}

func TestHomeMetrics_QueriesTheReportFunction(t *testing.T) {
	loader, script := testLoader(t, time.Minute)
	script.OnQuery("SELECT * FROM [call_bell].[fn_report_app_home_metrics]",
		[]string{"home", "total_calls"},
		[]driver.Value{"Elizabeth Gardens", int64(42)},
	)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	rs, err := loader.HomeMetrics(context.Background(), start, end, "Elizabeth Gardens")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Len() != 1 {
		t.Errorf("got %d rows, want 1", rs.Len())
	}

	queries := script.Queries()
	want := "SELECT * FROM [call_bell].[fn_report_app_home_metrics](@p1, @p2, @p3)"
	found := false
	for _, q := range queries {
		if q == want {
			found = true
		}
	}
	if !found {
		t.Errorf("statement %q not issued; recorded: %v", want, queries)
	}
}

func TestHomeMetrics_AllHomesBindsNull(t *testing.T) {
	loader, script := testLoader(t, time.Minute)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := loader.HomeMetrics(context.Background(), start, start.AddDate(0, 0, 1), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, call := range script.Calls() {
		if strings.HasPrefix(call.Query, "SELECT * FROM [call_bell].") {
			if len(call.Args) != 3 {
				t.Fatalf("bound %d args, want 3", len(call.Args))
			}
			if call.Args[2].Value != nil {
				t.Errorf("home argument = %v, want NULL for all homes", call.Args[2].Value)
			}
			return
		}
	}
	t.Fatal("report function never queried")
}

func TestLoader_ServesFromCacheInsideTTL(t *testing.T) {
	loader, script := testLoader(t, time.Minute)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	for i := 0; i < 3; i++ {
		if _, err := loader.HomeMetrics(context.Background(), start, end, "Rose Court"); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}

	if n := countSelects(script.Queries()); n != 1 {
		t.Errorf("backend queried %d times, want 1 (cache inside TTL)", n)
	}
}

func TestLoader_DifferentArgumentsMissTheCache(t *testing.T) {
	loader, script := testLoader(t, time.Minute)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	if _, err := loader.HomeMetrics(context.Background(), start, end, "Rose Court"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := loader.HomeMetrics(context.Background(), start, end, "Maple House"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := countSelects(script.Queries()); n != 2 {
		t.Errorf("backend queried %d times, want 2 (distinct homes)", n)
	}
}

func TestLoader_RefreshesAfterTTL(t *testing.T) {
	loader, script := testLoader(t, time.Minute)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	loader.now = func() time.Time { return clock }

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if _, err := loader.HomeMetrics(context.Background(), start, start.AddDate(0, 0, 1), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	if _, err := loader.HomeMetrics(context.Background(), start, start.AddDate(0, 0, 1), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := countSelects(script.Queries()); n != 2 {
		t.Errorf("backend queried %d times, want 2 (entry expired)", n)
	}
}

func TestLoader_InvalidateForcesReload(t *testing.T) {
	loader, script := testLoader(t, time.Hour)

	if _, err := loader.Metrics(context.Background(), 2, "Elizabeth Gardens"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loader.Invalidate()

	if _, err := loader.Metrics(context.Background(), 2, "Elizabeth Gardens"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := countSelects(script.Queries()); n != 2 {
		t.Errorf("backend queried %d times, want 2 after Invalidate", n)
	}
}
