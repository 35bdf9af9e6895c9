package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/invigilo/invigilo/modules/proctoring/infrastructure/vendorapi"
	"github.com/invigilo/invigilo/modules/proctoring/services"
)

type stubGateway struct {
	response map[string]any
	err      error
	calls    int
}

func (s *stubGateway) Execute(_ context.Context, _ vendorapi.Command) (map[string]any, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

type testEnv struct {
	handler  http.Handler
	settings ports.SettingsStore
	links    ports.SessionLinkStore
	gateway  *stubGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gw := &stubGateway{response: map[string]any{"session_url": "https://vendor.example/s/abc"}}
	settings := newSettingsMemoryStore()
	links := newSessionLinkMemoryStore()
	h, err := NewHandlerWithOptions(HandlerOptions{
		SettingsStore:    settings,
		SessionLinkStore: links,
		Gateway:          gw,
	})
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &testEnv{handler: h, settings: settings, links: links, gateway: gw}
}

func (e *testEnv) do(t *testing.T, method, target, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if role != "" {
		req.Header.Set(roleHeader, role)
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func seedEnabledSettings(t *testing.T, e *testEnv, quizID, moduleID int64) {
	t.Helper()
	rec := types.DefaultSettings(quizID, moduleID)
	rec.Proctoring = types.ProctoringEnabled
	rec.QuizName = "Algebra final"
	if err := e.settings.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func accessCheckBody(quizID int64, mutate func(map[string]any)) map[string]any {
	body := map[string]any{
		"quiz_id": quizID,
		"user": map[string]any{
			"id": 7, "username": "ada",
			"firstname": "Ada", "lastname": "Lovelace", "email": "ada@example.org",
		},
		"request": map[string]any{
			"path":          "/quiz/view",
			"canonical_url": "https://lms.example.org/quiz/view?id=1000",
			"user_agent":    "Mozilla/5.0 Gecko/20100101 Firefox/88.0",
			"cookies":       map[string]string{},
			"query":         map[string]string{},
		},
	}
	if mutate != nil {
		mutate(body)
	}
	return body
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestUnknownRouteNotFound(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestAccessChecks_NoSettingsAllows(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodPost, "/quiz/api/access-checks", "", accessCheckBody(100, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["allow"] != true || out["reason"] != "proctoring_disabled" {
		t.Fatalf("body=%v", out)
	}
	if e.gateway.calls != 0 {
		t.Fatalf("gateway calls=%d", e.gateway.calls)
	}
}

func TestAccessChecks_NoProofRequiresLaunch(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)

	rr := e.do(t, http.MethodPost, "/quiz/api/access-checks", "", accessCheckBody(100, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["allow"] != false || out["reason"] != "no_proof" {
		t.Fatalf("body=%v", out)
	}
	if out["launch_url"] != "https://vendor.example/s/abc" {
		t.Fatalf("launch_url=%v", out["launch_url"])
	}
	if e.gateway.calls != 1 {
		t.Fatalf("gateway calls=%d", e.gateway.calls)
	}

	// Second check reuses the cached session link.
	rr = e.do(t, http.MethodPost, "/quiz/api/access-checks", "", accessCheckBody(100, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if e.gateway.calls != 1 {
		t.Fatalf("gateway calls=%d after cached check", e.gateway.calls)
	}
}

func TestAccessChecks_QueryHashAllowsAndSetsCookie(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)

	valid := services.PageHash("https://lms.example.org/quiz/view?id=1000")
	body := accessCheckBody(100, func(b map[string]any) {
		b["request"].(map[string]any)["query"] = map[string]string{"hash": valid}
	})
	rr := e.do(t, http.MethodPost, "/quiz/api/access-checks", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["allow"] != true || out["reason"] != "hash_valid" {
		t.Fatalf("body=%v", out)
	}
	cookie, ok := out["set_cookie"].(map[string]any)
	if !ok || cookie["name"] != "invigilo_hash" || cookie["value"] != valid {
		t.Fatalf("set_cookie=%v", out["set_cookie"])
	}
}

func TestAccessChecks_ForgedHashRejected(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)

	body := accessCheckBody(100, func(b map[string]any) {
		b["request"].(map[string]any)["cookies"] = map[string]string{"invigilo_hash": "forged"}
	})
	rr := e.do(t, http.MethodPost, "/quiz/api/access-checks", "", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["allow"] != false || out["reason"] != "hash_mismatch" {
		t.Fatalf("body=%v", out)
	}
}

func TestAccessChecks_ProvisioningFailureFailsClosed(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)
	e.gateway.err = errors.New("connection refused")

	rr := e.do(t, http.MethodPost, "/quiz/api/access-checks", "", accessCheckBody(100, nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["code"] != "provisioning_unavailable" {
		t.Fatalf("body=%v", out)
	}
}

func TestSettingsPutAndGet(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]any{
		"quiz_id": 100, "module_id": 1000, "quiz_name": "Algebra final",
		"settings": map[string]any{
			"invigilo_proctoring":         "1",
			"invigilo_application":        "desktop",
			"invigilo_main_camera_record": "0",
		},
	}
	rr := e.do(t, http.MethodPut, "/quiz/api/proctoring-settings", "teacher", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["application"] != "desktop" || out["main_camera_record"] != false {
		t.Fatalf("body=%v", out)
	}

	rr = e.do(t, http.MethodGet, "/quiz/api/proctoring-settings?quiz_id=100", "teacher", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out = decodeJSONBody(t, rr)
	if out["quiz_name"] != "Algebra final" || out["proctoring"] != float64(1) {
		t.Fatalf("body=%v", out)
	}
}

func TestSettingsPut_DisabledDeletesRecord(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)

	body := map[string]any{
		"quiz_id": 100, "module_id": 1000,
		"settings": map[string]any{"invigilo_proctoring": "0"},
	}
	rr := e.do(t, http.MethodPut, "/quiz/api/proctoring-settings", "teacher", body)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = e.do(t, http.MethodGet, "/quiz/api/proctoring-settings?quiz_id=100", "teacher", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestSettingsPut_FieldCapabilityDenied(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]any{
		"quiz_id": 100, "module_id": 1000,
		"settings": map[string]any{
			"invigilo_proctoring":      "1",
			"invigilo_id_verification": "1",
		},
	}
	rr := e.do(t, http.MethodPut, "/quiz/api/proctoring-settings", "teacher", body)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	fieldErrs, _ := out["field_errors"].(map[string]any)
	if fieldErrs["id_verification"] == nil {
		t.Fatalf("body=%v", out)
	}

	rr = e.do(t, http.MethodPut, "/quiz/api/proctoring-settings", "site-admin", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("site-admin status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSettingsPut_AnonymousForbidden(t *testing.T) {
	e := newTestEnv(t)
	body := map[string]any{
		"quiz_id": 100, "module_id": 1000,
		"settings": map[string]any{"invigilo_proctoring": "1"},
	}
	rr := e.do(t, http.MethodPut, "/quiz/api/proctoring-settings", "", body)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestSettingsDelete(t *testing.T) {
	e := newTestEnv(t)
	seedEnabledSettings(t, e, 100, 1000)

	rr := e.do(t, http.MethodDelete, "/quiz/api/proctoring-settings?quiz_id=100", "site-admin", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if _, found, _ := e.settings.GetByQuizID(context.Background(), 100); found {
		t.Fatal("record should be gone")
	}
}

func TestVisibilityRules(t *testing.T) {
	e := newTestEnv(t)
	rr := e.do(t, http.MethodGet, "/quiz/api/visibility-rules", "teacher", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	rules, _ := out["rules"].(map[string]any)
	if rules["application"] == nil {
		t.Fatalf("body=%v", out)
	}
}

func TestVisibilityRulesEvaluate(t *testing.T) {
	e := newTestEnv(t)

	rr := e.do(t, http.MethodPost, "/quiz/api/visibility-rules:evaluate", "teacher", map[string]any{
		"values": map[string]string{"proctoring": "1"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	visible, _ := out["visible"].([]any)
	if len(visible) == 0 {
		t.Fatalf("body=%v", out)
	}

	rr = e.do(t, http.MethodPost, "/quiz/api/visibility-rules:evaluate", "teacher", map[string]any{
		"values": map[string]string{"proctoring": "0"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out = decodeJSONBody(t, rr)
	hidden, _ := out["hidden"].([]any)
	found := false
	for _, f := range hidden {
		if f == "application" {
			found = true
		}
	}
	if !found {
		t.Fatalf("application should hide while disabled: %v", out)
	}
}

func TestPrivacyErasure(t *testing.T) {
	e := newTestEnv(t)
	if err := e.links.Insert(context.Background(), types.SessionLink{UserID: 7, QuizID: 100, URL: "https://vendor.example/s/a"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := e.links.Insert(context.Background(), types.SessionLink{UserID: 8, QuizID: 100, URL: "https://vendor.example/s/b"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rr := e.do(t, http.MethodPost, "/quiz/api/privacy/erasures", "site-admin", map[string]any{"user_id": 7})
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	out := decodeJSONBody(t, rr)
	if out["deleted_links"] != float64(1) {
		t.Fatalf("body=%v", out)
	}
	if _, found, _ := e.links.GetByUserAndQuiz(context.Background(), 7, 100); found {
		t.Fatal("user 7 links should be erased")
	}
	if _, found, _ := e.links.GetByUserAndQuiz(context.Background(), 8, 100); !found {
		t.Fatal("user 8 links must remain")
	}
}
