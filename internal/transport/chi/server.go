package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	gochi "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	checkpointrepo "github.com/kailas-cloud/vecfeed/internal/repository/checkpoint"
	healthuc "github.com/kailas-cloud/vecfeed/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
	"github.com/kailas-cloud/vecfeed/internal/version"
)

// errorHandler maps an error to a status and code. ok is false when it does not match.
type errorHandler func(err error) (status int, code ErrorCode, ok bool)

// DomainResolver validates domain names of checkpoint requests.
type DomainResolver interface {
	Resolve(name string) (schema.DomainConfig, error)
}

// CheckpointAdmin lists and clears stored checkpoints.
type CheckpointAdmin interface {
	List(ctx context.Context, domain string) ([]checkpointrepo.Entry, error)
	Clear(ctx context.Context, domain, file string) error
}

// Server is the HTTP front door of the ingestion service.
type Server struct {
	ingest        *ingestuc.Service
	health        *healthuc.Service
	domains       DomainResolver
	checkpoints   CheckpointAdmin
	dataDir       string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. Source files are resolved under dataDir.
func NewServer(
	ingest *ingestuc.Service,
	health *healthuc.Service,
	domains DomainResolver,
	dataDir string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		ingest:  ingest,
		health:  health,
		domains: domains,
		dataDir: dataDir,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoRecords, http.StatusOK, ErrorCodeNoRecords),
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeBadRequest),
		sentinelHandler(domain.ErrUnknownDomain, http.StatusBadRequest, ErrorCodeUnknownDomain),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest, ErrorCodeUnsupportedFormat),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, ErrorCodeDimensionMismatch),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrRowDecode, http.StatusUnprocessableEntity, ErrorCodeRowDecode),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, ErrorCodeTransport),
	}
	return s
}

// WithCheckpoints enables the checkpoint endpoints.
func (s *Server) WithCheckpoints(admin CheckpointAdmin) *Server {
	s.checkpoints = admin
	return s
}

// Register mounts the routes on r.
func (s *Server) Register(r gochi.Router) {
	r.Post("/data/ingest/{domain}", s.IngestData)
	r.Get("/data/checkpoints/{domain}", s.ListCheckpoints)
	r.Delete("/data/checkpoints/{domain}", s.ClearCheckpoint)
	r.Get("/healthz", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
}

// IngestData handles POST /data/ingest/{domain}.
func (s *Server) IngestData(w http.ResponseWriter, r *http.Request) {
	domainName, err := domainParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	params, err := bindIngestParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	path, err := s.resolveFile(params.FileName)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}

	req := ingestuc.Request{Domain: domainName, Path: path}
	if params.ChunkSize != nil {
		req.ChunkSize = *params.ChunkSize
	}
	if params.Checkpoint != nil {
		req.Checkpoint = *params.Checkpoint
	}
	if params.Resume != nil {
		req.Resume = *params.Resume
	}

	res, err := s.ingest.Ingest(r.Context(), req)
	resp := ingestResponse(res)
	if err != nil {
		status, code := s.classify(err)
		resp.Success = false
		resp.Code = code
		resp.Message = safeDomainMessage(err)
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListCheckpoints handles GET /data/checkpoints/{domain}.
func (s *Server) ListCheckpoints(w http.ResponseWriter, r *http.Request) {
	domainName, ok := s.checkpointDomain(w, r)
	if !ok {
		return
	}
	entries, err := s.checkpoints.List(r.Context(), domainName)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]CheckpointItem, len(entries))
	for i, e := range entries {
		items[i] = CheckpointItem{FileName: e.File, Checkpoint: e.ID, SavedAt: e.SavedAt}
	}
	writeJSON(w, http.StatusOK, CheckpointListResponse{Domain: domainName, Items: items})
}

// ClearCheckpoint handles DELETE /data/checkpoints/{domain}?file_name=.
func (s *Server) ClearCheckpoint(w http.ResponseWriter, r *http.Request) {
	domainName, ok := s.checkpointDomain(w, r)
	if !ok {
		return
	}
	var fileName string
	if err := runtime.BindQueryParameter("form", true, true, "file_name", r.URL.Query(), &fileName); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	if _, err := s.resolveFile(fileName); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return
	}
	if err := s.checkpoints.Clear(r.Context(), domainName, filepath.Base(fileName)); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

func (s *Server) checkpointDomain(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.checkpoints == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "checkpoint store is disabled")
		return "", false
	}
	domainName, err := domainParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		return "", false
	}
	cfg, err := s.domains.Resolve(domainName)
	if err != nil {
		s.handleDomainError(w, err)
		return "", false
	}
	return string(cfg.Name()), true
}

// resolveFile maps a client file name to a path under the data directory.
func (s *Server) resolveFile(name string) (string, error) {
	if name == "" || !filepath.IsLocal(name) {
		return "", fmt.Errorf("%w: file_name must be a relative path inside the data directory", domain.ErrInvalidRequest)
	}
	return filepath.Join(s.dataDir, name), nil
}

func domainParam(r *http.Request) (string, error) {
	var name string
	err := runtime.BindStyledParameterWithOptions("simple", "domain", gochi.URLParam(r, "domain"), &name,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", fmt.Errorf("invalid format for parameter domain: %w", err)
	}
	return name, nil
}

func bindIngestParams(r *http.Request) (IngestParams, error) {
	var p IngestParams
	q := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "file_name", q, &p.FileName); err != nil {
		return p, fmt.Errorf("invalid format for parameter file_name: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "chunk_size", q, &p.ChunkSize); err != nil {
		return p, fmt.Errorf("invalid format for parameter chunk_size: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "checkpoint", q, &p.Checkpoint); err != nil {
		return p, fmt.Errorf("invalid format for parameter checkpoint: %w", err)
	}
	if err := runtime.BindQueryParameter("form", true, false, "resume", q, &p.Resume); err != nil {
		return p, fmt.Errorf("invalid format for parameter resume: %w", err)
	}
	return p, nil
}

func ingestResponse(res ingestuc.Result) IngestResponse {
	st := res.Summary.Preprocess
	return IngestResponse{
		Success:        res.Ack.Success,
		ReceivedChunks: res.Ack.ChunksReceived,
		Message:        res.Ack.Message,
		RunID:          res.RunID,
		State:          string(res.State),
		Summary: RunSummary{
			Format:                  res.Summary.Format,
			ChunkSize:               res.Summary.ChunkSize,
			RowsRead:                st.Input,
			RowsKept:                st.Output,
			DroppedEmptySkills:      st.EmptySkills,
			DroppedMissingEmbedding: st.MissingEmbedding,
			CellErrors:              st.CellErrors,
			UnmappedColumns:         st.Unmapped,
			RecordsStreamed:         res.Summary.Streamed,
			Checkpoint:              res.Summary.Checkpoint,
			LastID:                  res.Summary.LastID,
			Warnings:                res.Summary.Warnings,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client message without file system paths or internals.
func safeDomainMessage(err error) string {
	var dm *domain.DimensionMismatchError
	if errors.As(err, &dm) {
		return dm.Error()
	}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	sentinels := []error{
		domain.ErrNoRecords,
		domain.ErrInvalidRequest,
		domain.ErrUnknownDomain,
		domain.ErrUnsupportedFormat,
		domain.ErrNotFound,
		domain.ErrRowDecode,
		domain.ErrTransport,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(err error) (int, ErrorCode, bool) {
		if !errors.Is(err, sentinel) {
			return 0, "", false
		}
		return status, code, true
	}
}

func (s *Server) classify(err error) (int, ErrorCode) {
	for _, h := range s.errorHandlers {
		if status, code, ok := h(err); ok {
			if status >= http.StatusInternalServerError {
				s.logger.Warn("upstream error", zap.Error(err))
			}
			return status, code
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	return http.StatusInternalServerError, ErrorCodeInternal
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	status, code := s.classify(err)
	writeError(w, status, code, safeDomainMessage(err))
}
