package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/invigilo/invigilo/internal/routing"
	"github.com/invigilo/invigilo/modules/proctoring/services"
	"github.com/invigilo/invigilo/pkg/authz"
)

// roleHeader carries the caller's role slug. The service sits behind the
// host platform, which authenticates the end user and forwards the role.
const roleHeader = "X-Actor-Role"

func loadAuthorizer() (*authz.Authorizer, error) {
	modelPath := os.Getenv("AUTHZ_MODEL_PATH")
	if modelPath == "" {
		p, err := defaultAuthzModelPath()
		if err != nil {
			return nil, err
		}
		modelPath = p
	}

	policyPath := os.Getenv("AUTHZ_POLICY_PATH")
	if policyPath == "" {
		p, err := defaultAuthzPolicyPath()
		if err != nil {
			return nil, err
		}
		policyPath = p
	}

	mode, err := authz.ModeFromEnv()
	if err != nil {
		return nil, err
	}

	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

func defaultAuthzModelPath() (string, error) {
	path := "config/access/model.conf"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz model not found")
}

func defaultAuthzPolicyPath() (string, error) {
	path := "config/access/policy.csv"
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: authz policy not found")
}

type authorizer interface {
	Authorize(subject string, object string, action string) (allowed bool, enforced bool, err error)
	AuthorizeAll(subject string, capabilities []string, action string) (allowed bool, enforced bool, err error)
}

func actorRole(r *http.Request) string {
	role := strings.ToLower(strings.TrimSpace(r.Header.Get(roleHeader)))
	if role == "" {
		return authz.RoleAnonymous
	}
	return role
}

func withAuthz(a authorizer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		switch path {
		case "/health", "/healthz":
			next.ServeHTTP(w, r)
			return
		}

		object, action, shouldCheck := authzRequirementForRoute(r.Method, path)
		if !shouldCheck {
			next.ServeHTTP(w, r)
			return
		}

		subject := authz.SubjectFromRoleSlug(actorRole(r))
		allowed, enforced, err := a.Authorize(subject, object, action)
		if err != nil {
			routing.WriteError(w, r, http.StatusInternalServerError, "authz_error", "authz error")
			return
		}
		if enforced && !allowed {
			routing.WriteError(w, r, http.StatusForbidden, "forbidden", "forbidden")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func authzRequirementForRoute(method string, path string) (object string, action string, ok bool) {
	switch path {
	case "/quiz/api/access-checks":
		if method == http.MethodPost {
			return authz.ObjectAccessChecks, authz.ActionManage, true
		}
		return "", "", false
	case "/quiz/api/proctoring-settings":
		if method == http.MethodGet {
			return services.ConfigureCapability, authz.ActionRead, true
		}
		if method == http.MethodPut || method == http.MethodDelete {
			return services.ConfigureCapability, authz.ActionManage, true
		}
		return "", "", false
	case "/quiz/api/visibility-rules", "/quiz/api/visibility-rules:evaluate":
		return services.ConfigureCapability, authz.ActionRead, true
	case "/quiz/api/privacy/erasures":
		if method == http.MethodPost {
			return authz.ObjectPrivacyErasures, authz.ActionManage, true
		}
		return "", "", false
	default:
		return "", "", false
	}
}
