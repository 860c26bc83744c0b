package auth

import (
	"context"
	"net/http"
)

// Authorizer decorates an outgoing HTTP request with credentials.
type Authorizer interface {
	Authorize(ctx context.Context, req *http.Request) (*http.Request, error)
}

// tokenAuthorizer attaches "Authorization: Bearer <token>" using the
// current token from a TokenProvider, replacing any existing value.
type tokenAuthorizer struct {
	provider TokenProvider
}

// NewTokenAuthorizer returns an Authorizer backed by the given provider.
func NewTokenAuthorizer(provider TokenProvider) Authorizer {
	return &tokenAuthorizer{provider: provider}
}

func (a *tokenAuthorizer) Authorize(ctx context.Context, req *http.Request) (*http.Request, error) {
	tok, err := a.provider.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	return req, nil
}

// NoAuthAuthorizer returns requests unchanged; used for isEmulator mode.
type NoAuthAuthorizer struct{}

func (NoAuthAuthorizer) Authorize(_ context.Context, req *http.Request) (*http.Request, error) {
	return req, nil
}
