package services

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
	"github.com/invigilo/invigilo/modules/proctoring/infrastructure/vendorapi"
)

// ErrProvisioningUnavailable is returned whenever a launch URL cannot be
// obtained from the vendor. Callers treat it as "access cannot currently
// be granted"; it never downgrades to an allow.
var ErrProvisioningUnavailable = errors.New("proctoring: provisioning unavailable")

const sessionLinkLifetimeSeconds = 3600

type CommandExecutor interface {
	Execute(ctx context.Context, cmd vendorapi.Command) (map[string]any, error)
}

// AuthKeyIssuer registers one-time auth keys with the host's key issuance
// collaborator. The dependency is soft: the key also travels inside the
// session payload, so provisioning proceeds when no issuer is wired.
type AuthKeyIssuer interface {
	Register(ctx context.Context, user types.User, key string) error
}

var authKeyNamespace = uuid.Must(uuid.Parse("b5c7a9d2-4f31-4f08-9f64-37f4bb0a51ce"))

type SessionProvisioner struct {
	gateway     CommandExecutor
	cache       *SessionLinkCache
	authKeys    AuthKeyIssuer
	siteBaseURL string
	now         func() time.Time
}

func NewSessionProvisioner(gateway CommandExecutor, cache *SessionLinkCache, authKeys AuthKeyIssuer, siteBaseURL string) *SessionProvisioner {
	return &SessionProvisioner{
		gateway:     gateway,
		cache:       cache,
		authKeys:    authKeys,
		siteBaseURL: siteBaseURL,
		now:         time.Now,
	}
}

// LaunchURL returns the vendor session URL for the user's attempt,
// serving from the link cache when a live link exists. A cached URL is
// returned verbatim; it is trusted for its declared lifetime.
func (p *SessionProvisioner) LaunchURL(ctx context.Context, user types.User, quiz types.Quiz, settings types.ProctoringSettings, canonicalURL string) (string, error) {
	cached, ok, err := p.cache.Get(ctx, user.ID, quiz.ID)
	if err != nil {
		return "", err
	}
	if ok {
		return cached.URL, nil
	}

	authKey := p.newAuthKey(user)
	if p.authKeys != nil {
		// Best effort: the key is also embedded in the payload below.
		_ = p.authKeys.Register(ctx, user, authKey)
	}

	cmd := vendorapi.SessionCommand{Session: vendorapi.SessionPayload{
		Student: vendorapi.StudentPayload{
			ExternalID: user.ID,
			User: vendorapi.UserTraits{
				FirstName: user.FirstName,
				LastName:  user.LastName,
				Email:     user.Email,
				Password:  passwordToken(user),
			},
		},
		Group: vendorapi.GroupPayload{
			ExternalID:  quiz.ModuleID,
			Name:        fmt.Sprintf("%s - %d", quiz.Name, quiz.ModuleID),
			Description: "Auto-created group for external assessments",
		},
		Assignment: vendorapi.AssignmentPayload{
			Type:         "external",
			Application:  string(settings.Application),
			Name:         quiz.Name,
			ExternalID:   quiz.ModuleID,
			ExternalURL:  fmt.Sprintf("%s/quiz/view?id=%d&forceview=1&hash=%s", p.siteBaseURL, quiz.ModuleID, PageHash(canonicalURL)),
			IsProctoring: settings.Proctoring == types.ProctoringEnabled,
			Settings: vendorapi.AssignmentSettings{
				ProctoringSettings: settings.Toggles(),
				ExitURL:            fmt.Sprintf("%s/quiz/view?id=%d&forceview=1", p.siteBaseURL, quiz.ModuleID),
			},
		},
		SessionData: vendorapi.SessionData{
			Query: map[string]string{"authkey": authKey},
		},
	}}

	out, err := p.gateway.Execute(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProvisioningUnavailable, err)
	}
	sessionURL, _ := out["session_url"].(string)
	if sessionURL == "" {
		return "", fmt.Errorf("%w: response missing session_url", ErrProvisioningUnavailable)
	}

	if _, err := p.cache.Put(ctx, user.ID, quiz.ID, quiz.ModuleID, sessionURL, sessionLinkLifetimeSeconds); err != nil {
		return "", err
	}
	return sessionURL, nil
}

// passwordToken derives the one-way vendor account password from stable
// user identity. The vendor recomputes nothing; it only needs the same
// token on every call.
func passwordToken(user types.User) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d%s", user.ID, user.Username)))
	return hex.EncodeToString(sum[:])
}

// newAuthKey mints a fresh one-time key from issuance time and user id.
func (p *SessionProvisioner) newAuthKey(user types.User) string {
	name := fmt.Sprintf("%d:%d", p.now().UnixNano(), user.ID)
	return uuid.NewSHA1(authKeyNamespace, []byte(name)).String()
}
