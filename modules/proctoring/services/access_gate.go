package services

import (
	"context"

	"github.com/invigilo/invigilo/modules/proctoring/domain/types"
)

const (
	// HashCookieName stores the accepted launch proof on the client.
	HashCookieName = "invigilo_hash"
	// HashQueryParam carries the proof on the first request after launch.
	HashQueryParam = "hash"

	hashCookieTTLSeconds = 3600
)

type LaunchURLProvider interface {
	LaunchURL(ctx context.Context, user types.User, quiz types.Quiz, settings types.ProctoringSettings, canonicalURL string) (string, error)
}

// AccessGate decides, per attempt-access check, whether the request may
// proceed or must be routed through the vendor application first.
type AccessGate struct {
	provisioner  LaunchURLProvider
	attemptPaths map[string]struct{}
}

// NewAccessGate builds a gate. attemptPaths are post-launch internal
// navigation targets (attempt, start, summary) that must never re-trigger
// gating for hash-validated clients.
func NewAccessGate(provisioner LaunchURLProvider, attemptPaths []string) *AccessGate {
	paths := make(map[string]struct{}, len(attemptPaths))
	for _, p := range attemptPaths {
		paths[p] = struct{}{}
	}
	return &AccessGate{provisioner: provisioner, attemptPaths: paths}
}

// Decide runs the access check. enabled reports whether a settings record
// exists for the quiz; without one the gate is inert. Provisioning
// failure propagates as ErrProvisioningUnavailable so the caller fails
// closed.
func (g *AccessGate) Decide(ctx context.Context, rc types.RequestContext, user types.User, quiz types.Quiz, settings types.ProctoringSettings, enabled bool) (types.AccessDecision, error) {
	if !enabled || settings.Proctoring == types.ProctoringDisabled {
		return types.Allowed(types.ReasonProctoringDisabled), nil
	}

	if rc.FetchMetadataCapable() {
		if rc.SecFetchDest == "iframe" {
			return types.Allowed(types.ReasonIframeContext), nil
		}
		return g.requireLaunch(ctx, types.ReasonNotIframe, rc, user, quiz, settings, nil)
	}

	if _, ok := g.attemptPaths[rc.Path]; ok {
		return types.Allowed(types.ReasonAttemptPath), nil
	}

	if cookieHash, ok := rc.Cookies[HashCookieName]; ok {
		if g.hashValid(rc, cookieHash) {
			return types.Allowed(types.ReasonHashValid), nil
		}
		return g.requireLaunch(ctx, types.ReasonHashMismatch, rc, user, quiz, settings, nil)
	}

	if queryHash, ok := rc.Query[HashQueryParam]; ok && queryHash != "" {
		cookie := &types.HashCookie{
			Name:       HashCookieName,
			Value:      queryHash,
			TTLSeconds: hashCookieTTLSeconds,
		}
		if g.hashValid(rc, queryHash) {
			d := types.Allowed(types.ReasonHashValid)
			d.SetCookie = cookie
			return d, nil
		}
		return g.requireLaunch(ctx, types.ReasonHashMismatch, rc, user, quiz, settings, cookie)
	}

	return g.requireLaunch(ctx, types.ReasonNoProof, rc, user, quiz, settings, nil)
}

// hashValid compares the supplied proof against the hash of the canonical
// page URL. This comparison is the integrity control; it is never
// short-circuited to true.
func (g *AccessGate) hashValid(rc types.RequestContext, supplied string) bool {
	return supplied != "" && supplied == PageHash(rc.CanonicalURL)
}

func (g *AccessGate) requireLaunch(ctx context.Context, reason string, rc types.RequestContext, user types.User, quiz types.Quiz, settings types.ProctoringSettings, cookie *types.HashCookie) (types.AccessDecision, error) {
	launchURL, err := g.provisioner.LaunchURL(ctx, user, quiz, settings, rc.CanonicalURL)
	if err != nil {
		return types.AccessDecision{}, err
	}
	d := types.RequireLaunch(reason, launchURL)
	d.SetCookie = cookie
	return d, nil
}
