package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/feed"
	"github.com/skrblai/percy/internal/onboarding"
	"github.com/skrblai/percy/internal/scan"
	"github.com/skrblai/percy/internal/tracker"
	"github.com/skrblai/percy/internal/trial"
	"github.com/skrblai/percy/internal/version"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(r chi.Router) {
	heartbeat := time.Duration(s.cfg.Feed.HeartbeatSeconds) * time.Second
	sse := feed.NewSSEHandler(s.hub, heartbeat)
	ws := feed.NewWSHandler(s.hub, heartbeat, s.log)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/context/init", s.handleContextInit)
		r.Get("/context/{identity}", s.handleContextGet)
		r.Post("/behavior", s.handleBehavior)

		r.Route("/onboarding/{identity}", func(r chi.Router) {
			r.Get("/", s.handleOnboardingGet)
			r.Post("/select", s.handleOnboardingSelect)
			r.Post("/message", s.handleOnboardingMessage)
			r.Post("/reset", s.handleOnboardingReset)
		})

		r.Post("/scan", s.rateLimit(s.handleScan))

		r.Get("/feed", sse.ServeHTTP)
		r.Get("/feed/ws", ws.ServeHTTP)
		r.Get("/feed/recent", s.handleFeedRecent)
		r.Post("/feed/publish", s.requireAuth(s.handleFeedPublish))

		r.Get("/agents", s.handleAgentList)
		r.Post("/agents/{agentID}/launch", s.handleAgentLaunch)

		r.Get("/trial", s.requireAuth(s.handleTrialStatus))
		r.Post("/trial/init", s.requireAuth(s.handleTrialInit))
		r.Post("/usage", s.handleUsage)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", r.URL.Path)
	})
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Version: version.Version}
	if !s.startedAt.IsZero() {
		resp.Uptime = time.Since(s.startedAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type contextInitRequest struct {
	Identity      string       `json:"identity"`
	Authenticated bool         `json:"authenticated"`
	Seed          tracker.Seed `json:"seed"`
}

func (s *Server) handleContextInit(w http.ResponseWriter, r *http.Request) {
	var req contextInitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity is required")
		return
	}
	ctx := s.tracker.Initialize(req.Identity, req.Authenticated, req.Seed)
	writeJSON(w, http.StatusOK, ctx)
}

func (s *Server) handleContextGet(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	ctx := s.tracker.Snapshot(identity)
	if ctx == nil {
		writeError(w, http.StatusNotFound, "not_found", "no context for identity")
		return
	}
	writeJSON(w, http.StatusOK, ctx)
}

type behaviorRequest struct {
	Identity string              `json:"identity"`
	Type     domain.BehaviorType `json:"type"`
	Data     map[string]any      `json:"data,omitempty"`
}

var knownBehaviors = map[domain.BehaviorType]bool{
	domain.BehaviorAgentView:           true,
	domain.BehaviorLockedAgentClick:    true,
	domain.BehaviorSubscriptionInquiry: true,
	domain.BehaviorPricingPageVisit:    true,
	domain.BehaviorMessageSent:         true,
	domain.BehaviorPageVisit:           true,
}

func (s *Server) handleBehavior(w http.ResponseWriter, r *http.Request) {
	var req behaviorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity is required")
		return
	}
	if !knownBehaviors[req.Type] {
		writeError(w, http.StatusBadRequest, "invalid_body", "unknown behavior type: "+string(req.Type))
		return
	}
	s.tracker.Track(req.Identity, req.Type, req.Data)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleOnboardingGet(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Get(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type selectRequest struct {
	Option domain.MessageOption `json:"option"`
}

func (s *Server) handleOnboardingSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	state, err := s.engine.Select(r.Context(), chi.URLParam(r, "identity"), req.Option)
	if err != nil {
		if errors.Is(err, onboarding.ErrInvalidTransition) {
			writeError(w, http.StatusConflict, "invalid_transition", err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_option", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleOnboardingMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "text is required")
		return
	}
	state, err := s.engine.Message(r.Context(), chi.URLParam(r, "identity"), req.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleOnboardingReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.engine.Reset(chi.URLParam(r, "identity"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

type scanRequest struct {
	Identity string `json:"identity"`
	URL      string `json:"url"`
	// Type is the client's guess at the content type. The classifier has
	// the final say; the field is validated but otherwise advisory.
	Type string `json:"type"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" || req.URL == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity and url are required")
		return
	}
	if req.Type != "" {
		switch scan.ContentType(req.Type) {
		case scan.ContentWebsite, scan.ContentProfile, scan.ContentVideo:
		default:
			writeError(w, http.StatusBadRequest, "invalid_body", "unknown scan type "+strconv.Quote(req.Type))
			return
		}
	}

	decision := s.gate.CanAccess(r.Context(), req.Identity, trial.ActionScan, "")
	if !decision.Allowed {
		writeJSON(w, http.StatusTooManyRequests, scan.RateLimitError{
			Reason:        string(decision.ReasonCode),
			Remaining:     decision.Remaining,
			UpgradePrompt: decision.Message,
		})
		return
	}

	result, err := s.scanner.Scan(r.Context(), req.URL, req.Identity)
	if err != nil {
		var rl *scan.RateLimitError
		if errors.As(err, &rl) {
			writeJSON(w, http.StatusTooManyRequests, rl)
			return
		}
		writeError(w, http.StatusBadGateway, "scan_failed", err.Error())
		return
	}

	s.gate.RecordUsage(req.Identity, string(trial.ActionScan), "", string(result.ContentType))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFeedRecent(w http.ResponseWriter, r *http.Request) {
	if s.activity == nil {
		writeJSON(w, http.StatusOK, []domain.ActivityEvent{})
		return
	}
	limit := s.cfg.Feed.Capacity
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= s.cfg.Feed.Capacity {
			limit = n
		}
	}
	events, err := s.activity.Recent(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleFeedPublish(w http.ResponseWriter, r *http.Request) {
	var ev domain.ActivityEvent
	if err := decodeJSON(r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if ev.ID == "" || ev.AgentID == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "id and agentId are required")
		return
	}
	if ev.Status == "" {
		ev.Status = domain.StatusPending
	}
	if ev.StartedAt.IsZero() {
		ev.StartedAt = time.Now()
	}
	s.hub.Publish(ev)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "published", "id": ev.ID})
}

func (s *Server) handleAgentList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, domain.Catalog)
}

type launchRequest struct {
	Identity string `json:"identity"`
	Source   string `json:"source,omitempty"`
}

func (s *Server) handleAgentLaunch(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	agent := domain.AgentByID(agentID)
	if agent == nil {
		writeError(w, http.StatusNotFound, "unknown_agent", agentID)
		return
	}

	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity is required")
		return
	}

	decision := s.gate.CanAccess(r.Context(), req.Identity, trial.ActionAgent, agentID)
	if !decision.Allowed {
		writeJSON(w, http.StatusForbidden, decision)
		return
	}

	ev := domain.ActivityEvent{
		ID:        uuid.New().String(),
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Status:    domain.StatusRunning,
		StartedAt: time.Now(),
		Source:    req.Source,
		UserID:    req.Identity,
	}
	s.hub.Publish(ev)
	s.gate.RecordUsage(req.Identity, string(trial.ActionAgent), agent.ID, req.Source)

	writeJSON(w, http.StatusAccepted, ev)
}

func (s *Server) handleTrialStatus(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "identity query parameter is required")
		return
	}
	status, err := s.gate.Status(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusBadGateway, "entitlements_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type trialInitRequest struct {
	Identity string `json:"identity"`
}

// handleTrialInit starts the identity's trial clock. Starting is idempotent:
// the entitlement collaborator keeps the original start on repeat calls.
func (s *Server) handleTrialInit(w http.ResponseWriter, r *http.Request) {
	var req trialInitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity is required")
		return
	}
	status, err := s.gate.Status(r.Context(), req.Identity)
	if err != nil {
		writeError(w, http.StatusBadGateway, "entitlements_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

type usageRequest struct {
	Identity  string `json:"identity"`
	UsageType string `json:"usageType"`
	AgentID   string `json:"agentId,omitempty"`
	Feature   string `json:"feature,omitempty"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var req usageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Identity == "" || req.UsageType == "" {
		writeError(w, http.StatusBadRequest, "invalid_body", "identity and usageType are required")
		return
	}
	s.gate.RecordUsage(req.Identity, req.UsageType, req.AgentID, req.Feature)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

const maxBodyBytes = 1 << 20 // 1MB request body cap

func decodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
