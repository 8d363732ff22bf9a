package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userJSON  `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Accounts.Register(r.Context(), req.Email, sanitizeInput(req.Name), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.deps.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, u)
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, u core.User) {
	token, exp, err := s.deps.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, ExpiresAt: exp, User: toUserJSON(u)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Accounts.GetUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserJSON(u))
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request) {
	shared, err := s.deps.Collaborators.ListShared(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(shared, func(l core.SharedLedger) sharedLedgerJSON {
		return sharedLedgerJSON{
			OwnerID:    l.OwnerID,
			OwnerEmail: l.OwnerEmail,
			OwnerName:  l.OwnerName,
			Permission: string(l.Permission),
			InviteID:   l.InviteID,
		}
	}))
}

type consentRequest struct {
	ConsentType   string `json:"consent_type"`
	Granted       bool   `json:"granted"`
	PolicyVersion string `json:"policy_version"`
}

type consentJSON struct {
	ID            int64     `json:"id"`
	ConsentType   string    `json:"consent_type"`
	Granted       bool      `json:"granted"`
	PolicyVersion string    `json:"policy_version"`
	CreatedAt     time.Time `json:"created_at"`
}

func toConsentJSON(c core.ConsentRecord) consentJSON {
	return consentJSON{ID: c.ID, ConsentType: c.ConsentType, Granted: c.Granted, PolicyVersion: c.PolicyVersion, CreatedAt: c.CreatedAt}
}

func (s *Server) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Records.RecordConsent(r.Context(), core.ConsentRecord{
		UserID:        UserID(r.Context()),
		ConsentType:   sanitizeInput(req.ConsentType),
		Granted:       req.Granted,
		PolicyVersion: sanitizeInput(req.PolicyVersion),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toConsentJSON(saved))
}

func (s *Server) handleListConsents(w http.ResponseWriter, r *http.Request) {
	consents, err := s.deps.Records.ListConsents(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(consents, toConsentJSON))
}

type feedbackRequest struct {
	Rating  *int   `json:"rating"`
	Message string `json:"message"`
	Page    string `json:"page"`
}

func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Records.RecordFeedback(r.Context(), core.FeedbackRecord{
		UserID:  UserID(r.Context()),
		Rating:  req.Rating,
		Message: sanitizeInput(req.Message),
		Page:    sanitizeInput(req.Page),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": saved.ID, "created_at": saved.CreatedAt})
}

type eventRequest struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties"`
	OccurredAt *time.Time     `json:"occurred_at"`
}

// handleTrackEvent accepts anonymous events; a valid token attributes them.
func (s *Server) handleTrackEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ev := core.AnalyticsEvent{Name: sanitizeInput(req.Name), Properties: req.Properties}
	if id := UserID(r.Context()); id > 0 {
		ev.UserID = &id
	}
	if req.OccurredAt != nil {
		ev.OccurredAt = req.OccurredAt.UTC()
	}
	saved, err := s.deps.Records.TrackEvent(r.Context(), ev)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": saved.ID})
}
