package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/yangwenmai/force/internal/engine"
	"github.com/yangwenmai/force/internal/model"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Enforcer is the engine surface exposed over HTTP.
type Enforcer interface {
	ActiveArtifact(ctx context.Context) (*model.Artifact, error)
	Artifacts(ctx context.Context) ([]model.Artifact, error)
	CreateArtifact(ctx context.Context, in model.NewArtifactInput) (*model.Artifact, error)
	UpdateContent(ctx context.Context, id, content string) error
	MarkDoneCriteriaMet(ctx context.Context, id string) error
	SubmitShippingProof(ctx context.Context, id, proofURL string) error
	Ship(ctx context.Context, id string) (*model.Artifact, error)
	Archive(ctx context.Context, id string) (*model.Artifact, error)

	StartBlock(ctx context.Context, artifactID string, diffType model.DiffType, contentBefore string) (*model.Block, error)
	EndBlock(ctx context.Context, blockID, contentAfter string) (*model.Block, error)
	SweepExpired(ctx context.Context, currentContent *string) ([]model.Block, error)
	RunningBlock(ctx context.Context) (*model.Block, error)
	BlockHistory(ctx context.Context, artifactID string) ([]model.Block, error)
	BlockStats(ctx context.Context, artifactID string) (model.BlockStats, error)

	CreateAutopsy(ctx context.Context, artifactID string, answers model.AutopsyAnswers) (*model.Autopsy, error)
	Autopsies(ctx context.Context, artifactID string) ([]model.Autopsy, error)
	LogSkippedBlock(ctx context.Context, artifactID string, scheduled time.Time, reason string) (*model.SkippedBlock, error)
	SkippedBlocks(ctx context.Context, artifactID string) ([]model.SkippedBlock, error)
	EvaluateCheckpoint(ctx context.Context, artifactID string) (*model.Checkpoint, error)
	Checkpoints(ctx context.Context, artifactID string) ([]model.Checkpoint, error)

	WeeklyMetrics(ctx context.Context, weeks int) ([]model.WeekMetrics, error)
	CurrentWeek(ctx context.Context) (model.WeekMetrics, error)
}

var _ Enforcer = (*engine.Engine)(nil)

// Options configures a Server.
type Options struct {
	// CORSOrigin is the allowed origin. Empty means "*".
	CORSOrigin string
	Logger     *slog.Logger
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	eng    Enforcer
	mux    *http.ServeMux
	origin string
	log    *slog.Logger
}

// New creates a new API server.
func New(eng Enforcer, opts Options) *Server {
	srv := &Server{eng: eng, mux: http.NewServeMux(), origin: opts.CORSOrigin, log: opts.Logger}
	if srv.origin == "" {
		srv.origin = "*"
	}
	if srv.log == nil {
		srv.log = slog.Default()
	}
	srv.routes()
	return srv
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.cors(limitBody(jsonContent(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/artifact/active", s.handleActiveArtifact)
	s.mux.HandleFunc("GET /api/artifacts", s.handleListArtifacts)
	s.mux.HandleFunc("POST /api/artifact", s.handleCreateArtifact)
	s.mux.HandleFunc("PUT /api/artifact/{id}/content", s.handleUpdateContent)
	s.mux.HandleFunc("POST /api/artifact/{id}/done", s.handleMarkDone)
	s.mux.HandleFunc("POST /api/artifact/{id}/proof", s.handleSubmitProof)
	s.mux.HandleFunc("POST /api/artifact/{id}/ship", s.handleShip)
	s.mux.HandleFunc("POST /api/artifact/{id}/archive", s.handleArchive)
	s.mux.HandleFunc("POST /api/artifact/{id}/autopsy", s.handleCreateAutopsy)
	s.mux.HandleFunc("POST /api/artifact/{id}/checkpoint", s.handleCheckpoint)
	s.mux.HandleFunc("GET /api/artifact/{id}/checkpoints", s.handleListCheckpoints)
	s.mux.HandleFunc("GET /api/autopsies", s.handleListAutopsies)
	s.mux.HandleFunc("GET /api/autopsies/{artifactId}", s.handleListAutopsies)

	s.mux.HandleFunc("GET /api/block/running", s.handleRunningBlock)
	s.mux.HandleFunc("POST /api/block/start", s.handleStartBlock)
	s.mux.HandleFunc("POST /api/block/{id}/end", s.handleEndBlock)
	s.mux.HandleFunc("POST /api/block/skip", s.handleSkipBlock)
	s.mux.HandleFunc("POST /api/blocks/sweep", s.handleSweep)
	s.mux.HandleFunc("GET /api/blocks/skipped", s.handleListSkipped)
	s.mux.HandleFunc("GET /api/blocks/skipped/{artifactId}", s.handleListSkipped)
	s.mux.HandleFunc("GET /api/blocks/history/{artifactId}", s.handleBlockHistory)
	s.mux.HandleFunc("GET /api/blocks/stats/{artifactId}", s.handleBlockStats)

	s.mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /api/metrics/current", s.handleCurrentMetrics)
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// cors sets CORS headers for the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func jsonContent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// Request and response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind model.Kind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindStateConflict:
		return http.StatusConflict
	case model.KindGate:
		return http.StatusPreconditionFailed
	case model.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeFailure reports an engine error. Enforcement errors carry their
// message and code; anything else is logged and hidden.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	if kind == model.KindInternal {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, statusFor(kind), map[string]string{
		"error": err.Error(),
		"code":  model.CodeOf(err),
	})
}

// decodeBody decodes a JSON body into v. An empty body is accepted when
// optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

// orEmpty keeps list responses as [] rather than null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
