package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the optional checkpoint store is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the batch writer is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	writer WriterChecker
	store  StorePinger
}

// New creates a Service. store can be nil when checkpoints are disabled.
func New(writer WriterChecker, store StorePinger) *Service {
	return &Service{writer: writer, store: store}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			checks["checkpoint_store"] = CheckError
			status = Degraded
		} else {
			checks["checkpoint_store"] = CheckOK
		}
	}

	if err := s.writer.HealthCheck(ctx); err != nil {
		checks["batch_writer"] = CheckError
		status = Unhealthy
	} else {
		checks["batch_writer"] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
