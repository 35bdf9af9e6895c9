package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/invigilo/invigilo/modules/proctoring/services"
)

type accessCheckRequest struct {
	QuizID int64 `json:"quiz_id"`
	User   struct {
		ID        int64  `json:"id"`
		Username  string `json:"username"`
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Email     string `json:"email"`
	} `json:"user"`
	Request struct {
		Path         string            `json:"path"`
		CanonicalURL string            `json:"canonical_url"`
		SecFetchDest string            `json:"sec_fetch_dest"`
		UserAgent    string            `json:"user_agent"`
		Cookies      map[string]string `json:"cookies"`
		Query        map[string]string `json:"query"`
	} `json:"request"`
}

type accessCheckCookie struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	TTLSeconds int    `json:"ttl_seconds"`
}

type accessCheckResponse struct {
	Allow     bool               `json:"allow"`
	Reason    string             `json:"reason"`
	LaunchURL string             `json:"launch_url,omitempty"`
	SetCookie *accessCheckCookie `json:"set_cookie,omitempty"`
}

func handleAccessChecksAPI(w http.ResponseWriter, r *http.Request, gate *services.AccessGate, settingsStore ports.SettingsStore) {
	var req accessCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if req.QuizID <= 0 || req.User.ID <= 0 {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_request", "quiz_id and user.id required")
		return
	}
	if req.Request.CanonicalURL == "" {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_request", "request.canonical_url required")
		return
	}

	settings, enabled, err := settingsStore.GetByQuizID(r.Context(), req.QuizID)
	if err != nil {
		writeStoreError(w, r, err, "settings_load_error", "settings load error")
		return
	}

	user := types.User{
		ID:        req.User.ID,
		Username:  req.User.Username,
		FirstName: req.User.FirstName,
		LastName:  req.User.LastName,
		Email:     req.User.Email,
	}
	quiz := types.Quiz{ID: req.QuizID, ModuleID: settings.ModuleID, Name: settings.QuizName}
	rc := types.RequestContext{
		Path:         req.Request.Path,
		CanonicalURL: req.Request.CanonicalURL,
		SecFetchDest: req.Request.SecFetchDest,
		UserAgent:    req.Request.UserAgent,
		Cookies:      req.Request.Cookies,
		Query:        req.Request.Query,
	}

	decision, err := gate.Decide(r.Context(), rc, user, quiz, settings, enabled)
	if err != nil {
		if errors.Is(err, services.ErrProvisioningUnavailable) {
			routing.WriteError(w, r, http.StatusServiceUnavailable, "provisioning_unavailable", "provisioning unavailable")
			return
		}
		routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	resp := accessCheckResponse{
		Allow:     decision.Allow,
		Reason:    decision.Reason,
		LaunchURL: decision.LaunchURL,
	}
	if decision.SetCookie != nil {
		resp.SetCookie = &accessCheckCookie{
			Name:       decision.SetCookie.Name,
			Value:      decision.SetCookie.Value,
			TTLSeconds: decision.SetCookie.TTLSeconds,
		}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}
