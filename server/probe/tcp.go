package probe

import (
	"context"
	"net"
	"time"
)

// TCP checks readiness by dialing a TCP connection.
type TCP struct {
	Address string // host:port
}

func (c *TCP) Check(ctx context.Context) error {
	d := net.Dialer{Timeout: 200 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", c.Address)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}
