package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	mssql "github.com/microsoft/go-mssqldb"

	"github.com/careops/callbell/pkg/callbell"
)

// Connection pool configuration constants
const (
	// DefaultMaxOpenConns limits concurrent connections: a dashboard
	// session issues one logical query at a time, so the pool stays small
	// even with several sessions sharing the process.
	DefaultMaxOpenConns = 5

	// DefaultMaxIdleConns keeps a warm connection per session.
	DefaultMaxIdleConns = 2

	// DefaultConnMaxIdleTime keeps connections alive across dashboard
	// refresh cycles to avoid reconnection overhead.
	DefaultConnMaxIdleTime = 30 * time.Minute

	// tokenAcquireTimeout bounds token acquisition when the driver dials
	// a new physical connection.
	tokenAcquireTimeout = 30 * time.Second
)

// Factory produces database connection pools authenticated via an AAD
// access token rather than a username/password. The connection string it
// builds never carries credential material; the token travels separately
// as driver attribute 1256. Transport encryption and certificate
// validation are always on and cannot be disabled.
type Factory struct {
	config *callbell.QueryConfig
	source callbell.TokenSource
	logger callbell.Logger
}

// NewFactory creates a connection factory.
// Panics if source or logger is nil (fail-fast on wiring errors).
func NewFactory(config *callbell.QueryConfig, source callbell.TokenSource, logger callbell.Logger) *Factory {
	if source == nil {
		panic("source cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Factory{config: config, source: source, logger: logger}
}

// ConnectionString returns the secret-free connection string: server,
// database, application name, and the non-negotiable encryption flags.
func (f *Factory) ConnectionString() string {
	query := url.Values{}
	query.Set("database", f.config.Database)
	query.Set("encrypt", "true")
	query.Set("TrustServerCertificate", "false")
	if f.config.AppName != "" {
		query.Set("app name", f.config.AppName)
	}

	u := url.URL{
		Scheme:   "sqlserver",
		Host:     f.config.Server,
		RawQuery: query.Encode(),
	}
	return u.String()
}

// TokenAttribute acquires a current token and returns it framed as the
// attribute-1256 value. This byte layout is the factory's handoff contract.
func (f *Factory) TokenAttribute(ctx context.Context) ([]byte, error) {
	tok, err := f.source.Provide(ctx)
	if err != nil {
		return nil, err
	}
	return EncodeTokenAttribute(tok.Token), nil
}

// Connect builds a connection pool whose physical connections authenticate
// with a freshly provided access token. The pool lazily dials, so the
// returned *sql.DB is pinged once to surface connection errors eagerly.
func (f *Factory) Connect(ctx context.Context) (*sql.DB, error) {
	connector, err := mssql.NewAccessTokenConnector(f.ConnectionString(), f.freshToken)
	if err != nil {
		return nil, fmt.Errorf("build access token connector for %q: %w: %w", f.config.Database, callbell.ErrConnectionFailed, err)
	}

	pool := sql.OpenDB(connector)
	pool.SetMaxOpenConns(DefaultMaxOpenConns)
	pool.SetMaxIdleConns(DefaultMaxIdleConns)
	pool.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to %q on %q: %w: %w", f.config.Database, f.config.Server, callbell.ErrConnectionFailed, err)
	}

	f.logger.Verbose("connected to database %q on server %q", f.config.Database, f.config.Server)
	return pool, nil
}

// freshToken is invoked by the driver for every new physical connection.
// The token passes through the canonical attribute framing so the byte
// contract exercised here is the same one verified in tests.
func (f *Factory) freshToken() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), tokenAcquireTimeout)
	defer cancel()

	attr, err := f.TokenAttribute(ctx)
	if err != nil {
		return "", err
	}
	return DecodeTokenAttribute(attr)
}
