package http

import (
	"net/http"
	"time"

	"tally/internal/core"
)

type inviteRequest struct {
	Email         string `json:"email"`
	Permission    string `json:"permission"`
	ExpiresInDays int    `json:"expires_in_days"`
}

func (s *Server) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > 90 {
		writeError(w, r, invalidInput("expires_in_days must be between 1 and 90"))
		return
	}
	ttl := s.deps.InviteTTL
	if req.ExpiresInDays > 0 {
		ttl = time.Duration(req.ExpiresInDays) * 24 * time.Hour
	}

	inv, err := s.deps.Collaborators.Invite(r.Context(), ledgerOwner(r), req.Email, core.Permission(req.Permission), ttl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInviteJSON(inv, true))
}

func (s *Server) handleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := s.deps.Collaborators.ListInvites(r.Context(), ledgerOwner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(invites, func(i core.Invite) inviteJSON { return toInviteJSON(i, false) }))
}

// handleListCollaborators returns accepted invites only; revoked
// collaborators drop out immediately.
func (s *Server) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
	active, err := s.deps.Collaborators.ListActive(r.Context(), ledgerOwner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(active, func(i core.Invite) inviteJSON { return toInviteJSON(i, false) }))
}

func (s *Server) handleRevokeInvite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := s.deps.Collaborators.Revoke(r.Context(), ledgerOwner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInviteJSON(inv, false))
}

type acceptRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req acceptRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Token == "" {
		writeError(w, r, invalidInput("token is required"))
		return
	}
	user, err := s.deps.Accounts.GetUser(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := s.deps.Collaborators.Accept(r.Context(), user, req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"owner_id":   inv.OwnerID,
		"permission": inv.Permission,
		"invite":     toInviteJSON(inv, false),
	})
}
