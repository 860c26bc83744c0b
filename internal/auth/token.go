package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zpiroux/pubsubhttp/model"
)

// metadataTokenURL is the GCE instance metadata endpoint for the default
// service account's access token.
const metadataTokenURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"

// TokenProvider returns a current access token. See ServiceAccountProvider,
// MetadataProvider, NoAuthProvider and CachedTokenProvider (in cached.go)
// for the concrete variants.
type TokenProvider interface {
	AccessToken(ctx context.Context) (model.AccessToken, error)
}

// ServiceAccountProvider issues a fresh signed JWT and exchanges it for
// an access token on every call.
type ServiceAccountProvider struct {
	signer *Signer
}

// NewServiceAccountProvider wraps a Signer as a TokenProvider.
func NewServiceAccountProvider(signer *Signer) *ServiceAccountProvider {
	return &ServiceAccountProvider{signer: signer}
}

func (p *ServiceAccountProvider) AccessToken(ctx context.Context) (model.AccessToken, error) {
	tok := p.signer.Exchange(ctx, time.Now())
	if tok.Empty() {
		return model.AccessToken{}, fmt.Errorf("auth: no access token obtained from service-account JWT exchange")
	}
	return tok, nil
}

// MetadataProvider fetches an access token from the GCE instance
// metadata server, for workloads running on Compute Engine / GKE with an
// attached service account.
type MetadataProvider struct {
	httpClient httpDoer
}

// NewMetadataProvider creates a MetadataProvider using httpClient to
// reach the metadata server.
func NewMetadataProvider(httpClient httpDoer) *MetadataProvider {
	return &MetadataProvider{httpClient: httpClient}
}

func (p *MetadataProvider) AccessToken(ctx context.Context) (model.AccessToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataTokenURL, nil)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("auth: failed to build metadata token request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("auth: metadata token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("auth: failed to read metadata token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.AccessToken{}, fmt.Errorf("auth: metadata token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tok model.AccessToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return model.AccessToken{}, fmt.Errorf("auth: failed to parse metadata token response: %w", err)
	}
	return tok, nil
}

// NoAuthProvider returns a sentinel empty-value token, used only when a
// caller has configured IsEmulator to bypass authentication entirely.
type NoAuthProvider struct{}

func (NoAuthProvider) AccessToken(context.Context) (model.AccessToken, error) {
	return model.AccessToken{}, nil
}
