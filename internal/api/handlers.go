package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yangwenmai/force/internal/model"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ---------------------------------------------------------------------------
// Artifacts
// ---------------------------------------------------------------------------

func (s *Server) handleActiveArtifact(w http.ResponseWriter, r *http.Request) {
	a, err := s.eng.ActiveArtifact(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := s.eng.Artifacts(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(artifacts))
}

func (s *Server) handleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var req model.NewArtifactInput
	if !decodeBody(w, r, &req, false) {
		return
	}
	a, err := s.eng.CreateArtifact(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type contentRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req contentRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if err := s.eng.UpdateContent(r.Context(), r.PathValue("id"), req.Content); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkDone(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.MarkDoneCriteriaMet(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type proofRequest struct {
	ProofURL string `json:"proof_url"`
}

func (s *Server) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	var req proofRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.ProofURL) == "" {
		writeError(w, http.StatusBadRequest, "proof_url is required")
		return
	}
	if err := s.eng.SubmitShippingProof(r.Context(), r.PathValue("id"), req.ProofURL); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleShip(w http.ResponseWriter, r *http.Request) {
	a, err := s.eng.Ship(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	a, err := s.eng.Archive(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ---------------------------------------------------------------------------
// Autopsies, skipped blocks and checkpoints
// ---------------------------------------------------------------------------

func (s *Server) handleCreateAutopsy(w http.ResponseWriter, r *http.Request) {
	var req model.AutopsyAnswers
	if !decodeBody(w, r, &req, false) {
		return
	}
	a, err := s.eng.CreateAutopsy(r.Context(), r.PathValue("id"), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleListAutopsies(w http.ResponseWriter, r *http.Request) {
	autopsies, err := s.eng.Autopsies(r.Context(), r.PathValue("artifactId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(autopsies))
}

type skipRequest struct {
	ArtifactID    string    `json:"artifact_id"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Reason        string    `json:"reason"`
}

func (s *Server) handleSkipBlock(w http.ResponseWriter, r *http.Request) {
	var req skipRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.ArtifactID == "" || req.ScheduledTime.IsZero() {
		writeError(w, http.StatusBadRequest, "artifact_id and scheduled_time are required")
		return
	}
	skipped, err := s.eng.LogSkippedBlock(r.Context(), req.ArtifactID, req.ScheduledTime, req.Reason)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, skipped)
}

func (s *Server) handleListSkipped(w http.ResponseWriter, r *http.Request) {
	skipped, err := s.eng.SkippedBlocks(r.Context(), r.PathValue("artifactId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(skipped))
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, r *http.Request) {
	cp, err := s.eng.EvaluateCheckpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	checkpoints, err := s.eng.Checkpoints(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(checkpoints))
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

func (s *Server) handleRunningBlock(w http.ResponseWriter, r *http.Request) {
	b, err := s.eng.RunningBlock(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type startBlockRequest struct {
	ArtifactID       string         `json:"artifact_id"`
	ExpectedDiffType model.DiffType `json:"expected_diff_type"`
	ContentBefore    string         `json:"content_before"`
}

func (s *Server) handleStartBlock(w http.ResponseWriter, r *http.Request) {
	var req startBlockRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	if req.ArtifactID == "" {
		writeError(w, http.StatusBadRequest, "artifact_id is required")
		return
	}
	b, err := s.eng.StartBlock(r.Context(), req.ArtifactID, req.ExpectedDiffType, req.ContentBefore)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

type endBlockRequest struct {
	ContentAfter string `json:"content_after"`
}

func (s *Server) handleEndBlock(w http.ResponseWriter, r *http.Request) {
	var req endBlockRequest
	if !decodeBody(w, r, &req, false) {
		return
	}
	b, err := s.eng.EndBlock(r.Context(), r.PathValue("id"), req.ContentAfter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

type sweepRequest struct {
	CurrentContent *string `json:"current_content"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	ended, err := s.eng.SweepExpired(r.Context(), req.CurrentContent)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ended": orEmpty(ended)})
}

func (s *Server) handleBlockHistory(w http.ResponseWriter, r *http.Request) {
	blocks, err := s.eng.BlockHistory(r.Context(), r.PathValue("artifactId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(blocks))
}

func (s *Server) handleBlockStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.eng.BlockStats(r.Context(), r.PathValue("artifactId"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	weeks := 0
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "weeks must be a positive integer")
			return
		}
		weeks = n
	}
	metrics, err := s.eng.WeeklyMetrics(r.Context(), weeks)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(metrics))
}

func (s *Server) handleCurrentMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.eng.CurrentWeek(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
