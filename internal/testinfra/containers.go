// Package testinfra starts throwaway SQL Server containers for
// integration tests.
package testinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	SQLServerImage    = "mcr.microsoft.com/mssql/server:2022-latest"
	SQLServerPort     = "1433/tcp"
	SQLServerPassword = "Callbell!Test1"
	SQLServerUser     = "sa"
)

// SQLServerContainer wraps a running SQL Server container.
type SQLServerContainer struct {
	testcontainers.Container
	ConnString string
}

// StartSQLServer starts a SQL Server container and returns a SQL-auth
// connection string for it. Token flows cannot be containerized; these
// containers cover the SQL surface (staging, procedures, session context)
// with password auth, and the token path is tested against a real Azure
// SQL instance when one is configured.
func StartSQLServer(ctx context.Context) (*SQLServerContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        SQLServerImage,
		ExposedPorts: []string{SQLServerPort},
		Env: map[string]string{
			"ACCEPT_EULA":       "Y",
			"MSSQL_SA_PASSWORD": SQLServerPassword,
		},
		WaitingFor: wait.ForLog("SQL Server is now ready for client connections").
			WithStartupTimeout(120 * time.Second),
	}

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start sql server: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := ctr.MappedPort(ctx, SQLServerPort)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	connStr := fmt.Sprintf("sqlserver://%s:%s@%s:%s?database=master&encrypt=disable",
		SQLServerUser, SQLServerPassword, host, port.Port())

	return &SQLServerContainer{Container: ctr, ConnString: connStr}, nil
}
