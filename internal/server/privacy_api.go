package server

import (
	"encoding/json"
	"net/http"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
)

type privacyErasureRequest struct {
	UserID int64 `json:"user_id"`
}

type privacyErasureResponse struct {
	DeletedLinks int64 `json:"deleted_links"`
}

// handlePrivacyErasuresAPI removes every session link held for a user,
// the hook the host privacy subsystem calls on data erasure requests.
func handlePrivacyErasuresAPI(w http.ResponseWriter, r *http.Request, links ports.SessionLinkStore) {
	var req privacyErasureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if req.UserID <= 0 {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_request", "user_id required")
		return
	}

	removed, err := links.DeleteForUser(r.Context(), req.UserID)
	if err != nil {
		writeStoreError(w, r, err, "erasure_error", "erasure error")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(privacyErasureResponse{DeletedLinks: removed})
}
