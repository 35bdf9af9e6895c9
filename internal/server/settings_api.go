package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/invigilo/invigilo/modules/proctoring/services"
	"github.com/invigilo/invigilo/pkg/authz"
)

type settingsPutRequest struct {
	QuizID   int64          `json:"quiz_id"`
	ModuleID int64          `json:"module_id"`
	QuizName string         `json:"quiz_name"`
	Settings map[string]any `json:"settings"`
}

func handleSettingsAPI(w http.ResponseWriter, r *http.Request, resolver *services.SettingsResolver, store ports.SettingsStore, auth authorizer) {
	switch r.Method {
	case http.MethodGet:
		handleSettingsGet(w, r, store)
	case http.MethodPut:
		handleSettingsPut(w, r, resolver, store, auth)
	case http.MethodDelete:
		handleSettingsDelete(w, r, store)
	default:
		routing.WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func quizIDFromQuery(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("quiz_id"))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func handleSettingsGet(w http.ResponseWriter, r *http.Request, store ports.SettingsStore) {
	quizID, ok := quizIDFromQuery(r)
	if !ok {
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_quiz_id", "invalid quiz_id")
		return
	}

	rec, found, err := store.GetByQuizID(r.Context(), quizID)
	if err != nil {
		writeStoreError(w, r, err, "settings_load_error", "settings load error")
		return
	}
	if !found {
		routing.WriteError(w, r, http.StatusNotFound, "not_found", "no proctoring settings for quiz")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(settingsResponseBody(rec))
}

func handleSettingsPut(w http.ResponseWriter, r *http.Request, resolver *services.SettingsResolver, store ports.SettingsStore, auth authorizer) {
	var req settingsPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		routing.WriteError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return
	}
	if req.QuizID <= 0 || req.ModuleID <= 0 {
		routing.WriteError(w, r, http.StatusUnprocessableEntity, "invalid_request", "quiz_id and module_id required")
		return
	}

	filtered := resolver.FilterSettings(req.Settings)

	subject := authz.SubjectFromRoleSlug(actorRole(r))
	fieldErrs := map[string]string{}
	for name, value := range filtered {
		if name == services.ModeField || value == nil {
			continue
		}
		caps, err := resolver.RequiredCapabilities(name)
		if err != nil {
			if errors.Is(err, services.ErrUnknownSetting) {
				fieldErrs[name] = "unknown setting"
				continue
			}
			routing.WriteError(w, r, http.StatusInternalServerError, "internal_error", "internal error")
			return
		}
		allowed, enforced, err := auth.AuthorizeAll(subject, caps, authz.ActionManage)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			fieldErrs[name] = "capability required"
		}
	}
	if len(fieldErrs) > 0 {
		writeFieldErrors(w, r, fieldErrs)
		return
	}

	rec, parseErrs := settingsFromFiltered(req.QuizID, req.ModuleID, req.QuizName, filtered)
	if len(parseErrs) > 0 {
		writeFieldErrors(w, r, parseErrs)
		return
	}
	if errs := rec.Validate(); len(errs) > 0 {
		writeFieldErrors(w, r, errs)
		return
	}

	// Disabled means no record at all; existence is the enabled flag.
	if rec.Proctoring == types.ProctoringDisabled {
		if err := store.DeleteByQuizID(r.Context(), req.QuizID); err != nil {
			writeStoreError(w, r, err, "settings_delete_error", "settings delete error")
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := store.Upsert(r.Context(), rec); err != nil {
		writeStoreError(w, r, err, "settings_save_error", "settings save error")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(settingsResponseBody(rec))
}

func handleSettingsDelete(w http.ResponseWriter, r *http.Request, store ports.SettingsStore) {
	quizID, ok := quizIDFromQuery(r)
	if !ok {
		routing.WriteError(w, r, http.StatusBadRequest, "invalid_quiz_id", "invalid quiz_id")
		return
	}
	if err := store.DeleteByQuizID(r.Context(), quizID); err != nil {
		writeStoreError(w, r, err, "settings_delete_error", "settings delete error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeFieldErrors(w http.ResponseWriter, r *http.Request, fieldErrs map[string]string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnprocessableEntity)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":         "invalid_settings",
		"field_errors": fieldErrs,
		"trace_id":     routing.TraceIDFromRequest(r),
	})
}
