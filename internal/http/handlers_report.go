package http

import (
	"net/http"
)

// handleReport aggregates the ledger over ?from..?to, defaulting to the
// current month.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rng, err := ParseDateRange(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	rep, err := s.deps.Reports.Generate(r.Context(), ledgerOwner(r), rng.From, rng.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportJSON(rep))
}

// handleChanges streams the ledger's change events until the client leaves.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	s.deps.Hub.ServeStream(w, r, ledgerOwner(r), s.deps.StreamHeartbeat)
}
