// Package reports wraps the call-bell analytic table-valued functions in
// typed loaders with a short-lived result cache, so repeated dashboard
// refreshes within the cache window do not re-query the backend.
package reports

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/careops/callbell/internal/db"
	"github.com/careops/callbell/pkg/callbell"
)

// Analytic read surface. The functions are opaque named contracts.
const (
	Schema        = "call_bell"
	FnHomeMetrics = "fn_report_app_home_metrics"
	FnMetrics     = "fn_report_app_metrics"
)

// DefaultCacheTTL matches the dashboard refresh cadence.
const DefaultCacheTTL = 5 * time.Second

type cacheEntry struct {
	rows     *callbell.RowSet
	loadedAt time.Time
}

// Loader reads the report functions on behalf of one session, propagating
// the session's identity context with every query.
type Loader struct {
	exec     *db.Executor
	identity *callbell.IdentityContext
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
	now   func() time.Time
}

// NewLoader creates a Loader. identity may be nil for service-principal
// pipelines that need no row-level attribution.
func NewLoader(exec *db.Executor, identityCtx *callbell.IdentityContext, ttl time.Duration) *Loader {
	if exec == nil {
		panic("exec cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Loader{
		exec:     exec,
		identity: identityCtx,
		ttl:      ttl,
		cache:    make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// HomeMetrics loads the per-home KPI rows for the given window. homeName
// narrows the result to one home; empty selects all homes.
func (l *Loader) HomeMetrics(ctx context.Context, start, end time.Time, homeName string) (*callbell.RowSet, error) {
	var home any
	if homeName != "" {
		home = homeName
	}
	return l.read(ctx, FnHomeMetrics, start, end, home)
}

// Metrics loads the open/active call rows.
func (l *Loader) Metrics(ctx context.Context, args ...any) (*callbell.RowSet, error) {
	return l.read(ctx, FnMetrics, args...)
}

// read serves from cache inside the TTL window, otherwise queries the
// table-valued function and refreshes the entry.
func (l *Loader) read(ctx context.Context, fn string, args ...any) (*callbell.RowSet, error) {
	key := cacheKey(fn, args)

	l.mu.Lock()
	if entry, ok := l.cache[key]; ok && l.now().Sub(entry.loadedAt) < l.ttl {
		l.mu.Unlock()
		return entry.rows, nil
	}
	l.mu.Unlock()

	rows, err := l.exec.ReadTableFunction(ctx, Schema, fn, args, l.identity)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[key] = cacheEntry{rows: rows, loadedAt: l.now()}
	l.mu.Unlock()
	return rows, nil
}

// Invalidate clears the cache, forcing the next read to hit the backend.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cache = make(map[string]cacheEntry)
	l.mu.Unlock()
}

func cacheKey(fn string, args []any) string {
	return fmt.Sprintf("%s|%v", fn, args)
}
