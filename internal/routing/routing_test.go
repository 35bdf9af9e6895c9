package routing

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const testAllowlist = `
version: 1
entrypoints:
  server:
    routes:
      - path: /health
        methods: [GET]
        route_class: ops
      - path: /quiz/api/access-checks
        methods: [POST]
        route_class: internal_api
      - path: /quiz/api/proctoring-settings
        methods: [GET, PUT, DELETE]
        route_class: internal_api
  gate:
    routes:
      - path: /quiz/attempt
        methods: [GET]
        route_class: attempt
      - path: /quiz/attempt/start
        methods: [POST]
        route_class: attempt
      - path: /quiz/attempt/summary
        methods: [GET]
        route_class: attempt
`

func TestParseAllowlistYAML(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(testAllowlist))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if len(a.Entrypoints["server"].Routes) != 3 {
		t.Fatalf("server routes=%d", len(a.Entrypoints["server"].Routes))
	}
}

func TestParseAllowlistYAML_BadVersion(t *testing.T) {
	if _, err := ParseAllowlistYAML([]byte("version: 2\nentrypoints: {}\n")); err == nil {
		t.Fatal("expected error")
	}
}

func TestPathsByClass(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(testAllowlist))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	paths, err := a.PathsByClass("gate", RouteClassAttempt)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	want := []string{"/quiz/attempt", "/quiz/attempt/start", "/quiz/attempt/summary"}
	if len(paths) != len(want) {
		t.Fatalf("paths=%v", paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("paths[%d]=%q want %q", i, paths[i], want[i])
		}
	}

	if _, err := a.PathsByClass("nope", RouteClassAttempt); err == nil {
		t.Fatal("expected error for missing entrypoint")
	}
}

func TestClassifier(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(testAllowlist))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if rc := c.Classify("/quiz/api/access-checks"); rc != RouteClassInternalAPI {
		t.Fatalf("rc=%q", rc)
	}
	if rc := c.Classify("/nope"); rc != RouteClassUnknown {
		t.Fatalf("rc=%q", rc)
	}
}

func TestPathPattern(t *testing.T) {
	p, ok := parsePathPattern("/quiz/api/quizzes/{quiz_id}/settings")
	if !ok {
		t.Fatal("expected pattern")
	}
	if !p.Match("/quiz/api/quizzes/42/settings") {
		t.Fatal("expected match")
	}
	if p.Match("/quiz/api/quizzes//settings") {
		t.Fatal("expected no match on empty segment")
	}
	if p.Match("/quiz/api/quizzes/42") {
		t.Fatal("expected no match on length mismatch")
	}
}

func TestRouter(t *testing.T) {
	a, err := ParseAllowlistYAML([]byte(testAllowlist))
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	c, err := NewClassifier(a, "server")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	router := NewRouter(c)
	router.Handle(RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestRouter_PanicRecovers(t *testing.T) {
	a, _ := ParseAllowlistYAML([]byte(testAllowlist))
	c, _ := NewClassifier(a, "server")
	router := NewRouter(c)
	router.Handle(RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code=%d", rec.Code)
	}
}

func TestTraceIDFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	if got := TraceIDFromRequest(r); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("got %q", got)
	}
	r.Header.Set("traceparent", "bogus")
	if got := TraceIDFromRequest(r); got != "" {
		t.Fatalf("got %q", got)
	}
}
