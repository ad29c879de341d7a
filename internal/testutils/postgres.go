package testutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresImage = "postgres:16-alpine"

// Postgres is a disposable PostgreSQL server for integration tests.
type Postgres struct {
	container testcontainers.Container
	host      string
	port      int
}

// URL returns the connection string for the containerized server.
func (p *Postgres) URL() string {
	return fmt.Sprintf("postgres://postgres:postgres@%s:%d/postgres?sslmode=disable", p.host, p.port)
}

func (p *Postgres) Container() testcontainers.Container {
	return p.container
}

func (p *Postgres) Terminate(ctx context.Context) error {
	return p.container.Terminate(ctx)
}

// NewPostgres creates a postgres container for local testing. Call .URL() on
// the returned Postgres instance to get the connection string.
func NewPostgres(ctx context.Context) (*Postgres, error) {
	port, err := nat.NewPort("tcp", "5432")
	if err != nil {
		return nil, err
	}
	req := testcontainers.ContainerRequest{
		Image: postgresImage,
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		ExposedPorts: []string{port.Port()},
		// the entrypoint script starts the server twice; only the second
		// start accepts external connections
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx,
		testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	if err != nil {
		return nil, err
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		termErr := container.Terminate(ctx)
		return nil, errors.Join(err, termErr)
	}
	host, err := container.Host(ctx)
	if err != nil {
		termErr := container.Terminate(ctx)
		return nil, errors.Join(err, termErr)
	}
	return &Postgres{container: container, host: host, port: mappedPort.Int()}, nil
}
