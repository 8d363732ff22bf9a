package http

import (
	"net/http"
)

func (s *Server) handleBankLinkToken(w http.ResponseWriter, r *http.Request) {
	token, err := s.deps.Bank.CreateLinkToken(r.Context(), ledgerOwner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link_token": token})
}

type linkRequest struct {
	PublicToken string `json:"public_token"`
}

func (s *Server) handleLinkBankItem(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PublicToken == "" {
		writeError(w, r, invalidInput("public_token is required"))
		return
	}
	item, err := s.deps.Bank.Link(r.Context(), ledgerOwner(r), req.PublicToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBankItemJSON(item))
}

func (s *Server) handleListBankItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Bank.ListItems(r.Context(), ledgerOwner(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, toBankItemJSON))
}

func (s *Server) handleUnlinkBankItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.deps.Bank.Unlink(r.Context(), ledgerOwner(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncBankItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Bank.SyncOwnerItem(r.Context(), ledgerOwner(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
