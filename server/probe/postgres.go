package probe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Postgres checks readiness by opening a connection and running SELECT 1.
// A TCP dial is not enough here — the postgres entrypoint's initdb→restart
// cycle can make the port reachable before the server accepts connections.
type Postgres struct {
	DSN string
}

func (c *Postgres) Check(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, c.DSN)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	defer conn.Close(ctx)

	var one int
	if err := conn.QueryRow(ctx, "select 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres query: %w", err)
	}
	return nil
}
