package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/trustfeed/internal/model"
	"github.com/sells-group/trustfeed/internal/store"
)

const maxBodyBytes = 1 << 20

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"store": "ok"}
	status := http.StatusOK
	if err := s.deps.News.Ping(ctx); err != nil {
		checks["store"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.deps.Oracle != nil {
		checks["oracle"] = "ok"
		if err := s.deps.Oracle.Health(ctx); err != nil {
			checks["oracle"] = err.Error()
		}
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	} else if checks["oracle"] != "" && checks["oracle"] != "ok" {
		overall = "degraded"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": checks})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Session.Refresh(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type candidatesResponse struct {
	Threshold  int               `json:"threshold"`
	Candidates []model.Candidate `json:"candidates"`
	Reviews    []model.Review    `json:"reviews"`
}

func (s *Server) handleCandidates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, candidatesResponse{
		Threshold:  s.deps.Session.Threshold(),
		Candidates: s.deps.Session.Pending(),
		Reviews:    s.deps.Session.Reviews(),
	})
}

type decisionRequest struct {
	Title  string `json:"title"`
	Action string `json:"action"`
}

type decisionResponse struct {
	Title   string `json:"title"`
	Action  string `json:"action"`
	Applied bool   `json:"applied"`
}

// handleDecision applies accept or reject. Deciding a title that is no longer
// pending is a no-op reported with applied=false.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		badRequest(w, "title is required")
		return
	}

	var applied bool
	switch strings.ToLower(req.Action) {
	case "accept":
		applied = s.deps.Session.Accept(req.Title)
	case "reject":
		applied = s.deps.Session.Reject(req.Title)
	default:
		badRequest(w, "action must be accept or reject")
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Title: req.Title, Action: strings.ToLower(req.Action), Applied: applied})
}

type claimRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeBody(w, r, &req) {
		return
	}
	review, err := s.deps.Session.Propose(model.Candidate{
		Title:           req.Title,
		Description:     req.Description,
		SourceReference: req.SourceURL,
		SourceName:      "manual",
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

type titleRequest struct {
	Title string `json:"title"`
}

type verifyResponse struct {
	Title           string   `json:"title"`
	Percent         int      `json:"percent"`
	Admitted        bool     `json:"admitted"`
	Threshold       int      `json:"threshold"`
	IsVerified      bool     `json:"is_verified"`
	MatchingDetails []string `json:"matching_details"`
	Discrepancies   []string `json:"discrepancies"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	review, err := s.deps.Session.Verify(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	if review.Percent == nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "no trust score for " + strconv.Quote(req.Title)})
		return
	}

	threshold := s.deps.Session.Threshold()
	resp := verifyResponse{
		Title:           req.Title,
		Percent:         *review.Percent,
		Admitted:        review.Admitted,
		Threshold:       threshold,
		MatchingDetails: []string{},
		Discrepancies:   []string{},
	}
	if review.Result != nil {
		resp.IsVerified = review.Result.IsVerified
		if review.Result.MatchingDetails != nil {
			resp.MatchingDetails = review.Result.MatchingDetails
		}
		if review.Result.Discrepancies != nil {
			resp.Discrepancies = review.Result.Discrepancies
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type submitResponse struct {
	ID         string `json:"id"`
	TrustScore int    `json:"trust_score"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	review, err := s.deps.Session.Submit(r.Context(), req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := submitResponse{ID: review.NewsID}
	if review.Percent != nil {
		resp.TrustScore = *review.Percent
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListNews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.NewsFilter{
		MinTrustScore: clampInt(q.Get("min_trust_score"), 0, 100),
		TitleContains: strings.TrimSpace(q.Get("q")),
		Limit:         clampInt(q.Get("limit"), 50, 100),
		Offset:        clampInt(q.Get("offset"), 0, 10_000),
	}
	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, "since must be RFC3339")
			return
		}
		filter.Since = &ts
	}

	news, err := s.deps.News.ListNews(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if news == nil {
		news = []model.SubmittedNews{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"news": news, "count": len(news)})
}

func (s *Server) handleGetNews(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.News.GetNews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// handleStats serves the background checker's last snapshot when the default
// window is asked for, and collects a fresh one otherwise.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hours")
	if raw == "" && s.deps.Snapshots != nil {
		if snap := s.deps.Snapshots.Latest(); snap != nil {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	hours := clampInt(raw, s.deps.LookbackHours, 24*30)
	snap, err := s.deps.Stats.Collect(r.Context(), hours)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// clampInt parses raw, falling back for empty, invalid or negative input and
// capping at max.
func clampInt(raw string, fallback, max int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
