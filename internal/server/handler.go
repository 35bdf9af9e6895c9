package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/domain/ports"
	"github.com/invigilo/invigilo/modules/proctoring/infrastructure/persistence"
	"github.com/invigilo/invigilo/modules/proctoring/infrastructure/vendorapi"
	"github.com/invigilo/invigilo/modules/proctoring/services"
)

func NewHandler() (http.Handler, error) {
	return NewHandlerWithOptions(HandlerOptions{})
}

type HandlerOptions struct {
	SettingsStore    ports.SettingsStore
	SessionLinkStore ports.SessionLinkStore
	Gateway          services.CommandExecutor
	AuthKeys         services.AuthKeyIssuer
	Authorizer       authorizer
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	allowlistPath := os.Getenv("ALLOWLIST_PATH")
	if allowlistPath == "" {
		p, err := defaultAllowlistPath()
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}

	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}

	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	attemptPaths, err := a.PathsByClass("gate", routing.RouteClassAttempt)
	if err != nil {
		return nil, err
	}

	settingsStore := opts.SettingsStore
	linkStore := opts.SessionLinkStore
	if settingsStore == nil || linkStore == nil {
		pool, err := pgxpool.New(context.Background(), dbDSNFromEnv())
		if err != nil {
			return nil, err
		}
		if settingsStore == nil {
			settingsStore = persistence.NewSettingsPGStore(pool)
		}
		if linkStore == nil {
			linkStore = persistence.NewSessionLinkPGStore(pool)
		}
	}

	gateway := opts.Gateway
	if gateway == nil {
		client, err := vendorapi.New(os.Getenv("VENDOR_API_URL"), os.Getenv("VENDOR_API_KEY"))
		if err != nil {
			return nil, err
		}
		gateway = client
	}

	resolver := services.NewSettingsResolver()
	cache := services.NewSessionLinkCache(linkStore)
	siteBaseURL := strings.TrimRight(getenvDefault("SITE_BASE_URL", "http://127.0.0.1:8080"), "/")
	provisioner := services.NewSessionProvisioner(gateway, cache, opts.AuthKeys, siteBaseURL)
	gate := services.NewAccessGate(provisioner, attemptPaths)

	auth := opts.Authorizer
	if auth == nil {
		loaded, err := loadAuthorizer()
		if err != nil {
			return nil, err
		}
		auth = loaded
	}

	router := routing.NewRouter(classifier)

	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/quiz/api/access-checks", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleAccessChecksAPI(w, r, gate, settingsStore)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/quiz/api/proctoring-settings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSettingsAPI(w, r, resolver, settingsStore, auth)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPut, "/quiz/api/proctoring-settings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSettingsAPI(w, r, resolver, settingsStore, auth)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodDelete, "/quiz/api/proctoring-settings", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleSettingsAPI(w, r, resolver, settingsStore, auth)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/quiz/api/visibility-rules", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleVisibilityRulesAPI(w, r, resolver)
	}))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/quiz/api/visibility-rules:evaluate", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleVisibilityRulesEvaluateAPI(w, r, resolver)
	}))

	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/quiz/api/privacy/erasures", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlePrivacyErasuresAPI(w, r, linkStore)
	}))

	return withAuthz(auth, router), nil
}

func NewMux() http.Handler {
	h, err := NewHandler()
	if err != nil {
		panic(errors.New("server: failed to build handler: " + err.Error()))
	}
	return h
}

func defaultAllowlistPath() (string, error) {
	path := "config/routing/allowlist.yaml"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: allowlist not found")
}
