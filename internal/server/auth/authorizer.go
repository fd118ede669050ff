// Package auth authorizes API callers. A caller presents either the shared
// upload secret or a short-lived grant (HS256 JWT) issued with that secret.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/cryptox"
)

const (
	DefaultGrantValidity = 15 * time.Minute
	// MaxGrantValidity caps the lifetime a caller may request for a grant.
	MaxGrantValidity = 24 * time.Hour

	grantKeyInfo = "gophdrive/grants"
)

var bearer = regexp.MustCompile(`(?i)^Bearer\s+(.+)$`)

// NormalizeToken trims the value and strips an optional "Bearer " prefix.
func NormalizeToken(v string) string {
	v = strings.TrimSpace(v)
	if m := bearer.FindStringSubmatch(v); m != nil {
		return strings.TrimSpace(m[1])
	}
	return v
}

// Principal is an authorized caller. Master is set for holders of the shared secret.
type Principal struct {
	Subject string
	Master  bool
}

type Authorizer struct {
	secret          string
	grantKey        []byte
	defaultValidity time.Duration
	now             func() time.Time
}

// NewAuthorizer builds an authorizer for the given shared secret. An empty
// secret is accepted; every request is then refused with common.ErrMisconfigured.
func NewAuthorizer(secret string, grantValidity time.Duration) (*Authorizer, error) {
	if grantValidity <= 0 {
		grantValidity = DefaultGrantValidity
	}
	a := &Authorizer{
		secret:          NormalizeToken(secret),
		defaultValidity: grantValidity,
		now:             time.Now,
	}
	if a.secret == "" {
		return a, nil
	}
	key, err := cryptox.DeriveKey([]byte(a.secret), grantKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("derive grant key: %w", err)
	}
	a.grantKey = key
	return a, nil
}

// Authorize checks the Authorization and x-authorization headers; either may
// carry the credential.
func (a *Authorizer) Authorize(h http.Header) (Principal, error) {
	if a.secret == "" {
		return Principal{}, common.ErrMisconfigured
	}

	var grantErr error
	for _, name := range []string{common.AuthorizationHeaderName, common.AltAuthorizationHeaderName} {
		token := NormalizeToken(h.Get(name))
		if token == "" {
			continue
		}
		if cryptox.EqualStrings(token, a.secret) {
			return Principal{Master: true}, nil
		}
		if strings.Count(token, ".") != 2 {
			continue
		}
		subject, err := ParseGrant(token, a.grantKey, a.now())
		if err == nil {
			return Principal{Subject: subject}, nil
		}
		grantErr = err
	}

	if grantErr != nil {
		return Principal{}, fmt.Errorf("%w: %w", common.ErrorUnauthorized, grantErr)
	}
	return Principal{}, common.ErrorUnauthorized
}

// IssueGrant signs a grant for subject. Only the master principal may issue
// grants. A non-positive validity selects the configured default.
func (a *Authorizer) IssueGrant(_ context.Context, p Principal, subject string, validity time.Duration) (string, time.Time, error) {
	if !p.Master {
		return "", time.Time{}, common.ErrorUnauthorized
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("%w: subject is required", common.ErrValidation)
	}
	if validity <= 0 {
		validity = a.defaultValidity
	}
	validity = min(validity, MaxGrantValidity)

	return GenerateGrant(subject, a.grantKey, validity, a.now())
}
