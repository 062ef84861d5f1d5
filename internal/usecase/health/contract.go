package health

import "context"

// StorePinger checks checkpoint store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// WriterChecker checks batch writer reachability.
type WriterChecker interface {
	HealthCheck(ctx context.Context) error
}
