package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	defaultPostgresImage = "postgres:16-alpine"
	postgresReadyTimeout = 45 * time.Second
)

// pgContainer is a throwaway Postgres started through the docker CLI. Data
// lives on tmpfs and the container removes itself once stopped.
type pgContainer struct {
	id  string
	dsn string
}

// startPostgres boots a container for the rxchain schema and returns its DSN
// and a stop function. RXCHAIN_TEST_PG_IMAGE overrides the image.
func startPostgres(ctx context.Context) (string, func(), error) {
	c, err := runPostgres(ctx)
	if err != nil {
		return "", nil, err
	}
	if err := c.awaitReady(ctx, postgresReadyTimeout); err != nil {
		c.stop()
		return "", nil, err
	}
	return c.dsn, c.stop, nil
}

func runPostgres(ctx context.Context) (*pgContainer, error) {
	image := os.Getenv("RXCHAIN_TEST_PG_IMAGE")
	if image == "" {
		image = defaultPostgresImage
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--label", "rxchain.integration=true",
		"--tmpfs", "/var/lib/postgresql/data",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=rxchain",
		"-e", "POSTGRES_PASSWORD=rxchain",
		"-e", "POSTGRES_DB=rxchain_test",
		image,
	).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("docker run %s: %w: %s", image, err, strings.TrimSpace(string(out)))
	}
	c := &pgContainer{id: strings.TrimSpace(string(out))}

	// docker picks the host port; ask which one
	mapped, err := exec.CommandContext(ctx, "docker", "port", c.id, "5432/tcp").Output()
	if err != nil {
		c.stop()
		return nil, fmt.Errorf("docker port: %w", err)
	}
	hostPort := strings.TrimSpace(strings.SplitN(string(mapped), "\n", 2)[0])
	c.dsn = fmt.Sprintf("postgres://rxchain:rxchain@%s/rxchain_test?sslmode=disable", hostPort)
	return c, nil
}

func (c *pgContainer) stop() {
	_ = exec.Command("docker", "stop", "-t", "1", c.id).Run()
}

// awaitReady retries a plain connection until the server answers over TCP.
// The image's init server listens on the unix socket only.
func (c *pgContainer) awaitReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tick := time.NewTicker(300 * time.Millisecond)
	defer tick.Stop()

	var lastErr error
	for {
		conn, err := pgx.Connect(ctx, c.dsn)
		if err == nil {
			err = conn.Ping(ctx)
			conn.Close(context.Background())
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres in container %.12s not ready: %w", c.id, lastErr)
		case <-tick.C:
		}
	}
}
