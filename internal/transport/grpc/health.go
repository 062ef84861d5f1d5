package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// ConnChecker reports whether the batch writer connection is usable.
type ConnChecker struct {
	conn *grpc.ClientConn
}

// NewConnChecker wraps conn for health checks.
func NewConnChecker(conn *grpc.ClientConn) *ConnChecker {
	return &ConnChecker{conn: conn}
}

// HealthCheck kicks an idle connection and fails while it is in
// transient failure or shut down. Connecting counts as healthy.
func (c *ConnChecker) HealthCheck(_ context.Context) error {
	switch st := c.conn.GetState(); st {
	case connectivity.Idle:
		c.conn.Connect()
		return nil
	case connectivity.TransientFailure, connectivity.Shutdown:
		return fmt.Errorf("batch writer connection %s", st)
	default:
		return nil
	}
}
