package types

import "strings"

// RequestContext carries everything the access gate reads from the
// original attempt request. It is built explicitly by the caller; the gate
// never touches ambient request state.
type RequestContext struct {
	Path         string
	CanonicalURL string
	SecFetchDest string
	UserAgent    string
	Cookies      map[string]string
	Query        map[string]string
}

// FetchMetadataCapable reports whether the requesting client belongs to
// the browser class that sends same-origin fetch metadata, which selects
// the iframe validation path instead of hash validation.
func (rc RequestContext) FetchMetadataCapable() bool {
	ua := rc.UserAgent
	if ua == "" {
		return false
	}
	return strings.Contains(ua, "Chrome/") || strings.Contains(ua, "Chromium/")
}

const (
	ReasonProctoringDisabled = "proctoring_disabled"
	ReasonIframeContext      = "iframe_context"
	ReasonNotIframe          = "not_iframe"
	ReasonAttemptPath        = "attempt_path"
	ReasonHashValid          = "hash_valid"
	ReasonHashMismatch       = "hash_mismatch"
	ReasonNoProof            = "no_proof"
)

// HashCookie is the launch-proof cookie a decision may ask the caller to
// set on its response.
type HashCookie struct {
	Name       string
	Value      string
	TTLSeconds int
}

// AccessDecision is computed fresh per access check and never persisted.
type AccessDecision struct {
	Allow     bool
	Reason    string
	LaunchURL string
	SetCookie *HashCookie
}

func Allowed(reason string) AccessDecision {
	return AccessDecision{Allow: true, Reason: reason}
}

func RequireLaunch(reason string, launchURL string) AccessDecision {
	return AccessDecision{Allow: false, Reason: reason, LaunchURL: launchURL}
}
