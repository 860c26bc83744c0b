package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teltech/logger"
	"github.com/zpiroux/pubsubhttp/model"
	"github.com/zpiroux/pubsubhttp/pkg/notify"
)

const (
	// tokenEndpoint is the audience claim and the URL the signed JWT
	// bearer assertion is exchanged at.
	tokenEndpoint = "https://www.googleapis.com/oauth2/v4/token"

	// grantType is the fixed RFC 7523 JWT-bearer grant type.
	grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// PubsubScope is the default OAuth2 scope requested by a
	// service-account signer when none is configured.
	PubsubScope = "https://www.googleapis.com/auth/pubsub"

	// DefaultMaxDuration is the default lifetime requested for the
	// signed JWT's exp claim.
	DefaultMaxDuration = time.Hour
)

var log *logger.Log

func init() {
	log = logger.New()
}

// jwtClaims is the claim set signed into the bearer assertion:
// {iss, scope, aud, iat, exp}.
type jwtClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// tokenResponse is the JSON shape returned by the OAuth2 token endpoint;
// only access_token and expires_in are read.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Signer builds and RS256-signs a JWT bearer assertion for a service
// account, and exchanges it for an access token.
type Signer struct {
	privateKey *rsa.PrivateKey
	issuer     string
	scope      string

	maxDuration time.Duration
	httpClient  httpDoer
	notifier    *notify.Notifier
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SignerOption customizes a Signer created with NewSigner.
type SignerOption func(*Signer)

// WithMaxDuration overrides the default 1-hour lifetime requested for
// exp in the signed assertion.
func WithMaxDuration(d time.Duration) SignerOption {
	return func(s *Signer) { s.maxDuration = d }
}

// WithScope overrides the default Pub/Sub OAuth2 scope.
func WithScope(scope string) SignerOption {
	return func(s *Signer) { s.scope = scope }
}

// NewSigner creates a Signer for the given RSA private key and issuer
// (the service account's client_email), using httpClient to reach the
// token endpoint.
func NewSigner(privateKey *rsa.PrivateKey, issuer string, httpClient httpDoer, notifier *notify.Notifier) *Signer {
	return &Signer{
		privateKey:  privateKey,
		issuer:      issuer,
		scope:       PubsubScope,
		maxDuration: DefaultMaxDuration,
		httpClient:  httpClient,
		notifier:    notifier,
	}
}

// Exchange builds a fresh assertion with iat=now, exp=now+maxDuration,
// signs it, and exchanges it for an access token. On any failure it logs
// a warning and returns the zero (absent) AccessToken; it never returns
// an error, per the signer's contract.
func (s *Signer) Exchange(ctx context.Context, now time.Time) model.AccessToken {
	assertion, err := s.sign(now)
	if err != nil {
		s.warn("failed to sign JWT assertion: %v", err)
		return model.AccessToken{}
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		s.warn("failed to build token exchange request: %v", err)
		return model.AccessToken{}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.warn("token exchange request failed: %v", err)
		return model.AccessToken{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.warn("failed to read token exchange response: %v", err)
		return model.AccessToken{}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.warn("token exchange returned status %d: %s", resp.StatusCode, string(body))
		return model.AccessToken{}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		s.warn("failed to parse token exchange response: %v", err)
		return model.AccessToken{}
	}

	return model.AccessToken{Token: tr.AccessToken, ExpiresInSeconds: tr.ExpiresIn}
}

func (s *Signer) sign(now time.Time) (string, error) {
	claims := jwtClaims{
		Scope: s.scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{tokenEndpoint},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.maxDuration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(s.privateKey)
}

func (s *Signer) warn(format string, args ...any) {
	log.Warnf("auth.signer: "+format, args...)
	if s.notifier != nil {
		s.notifier.Notify(notify.LevelWarn, format, args...)
	}
}

// ServiceAccount holds the fields this module reads from a service
// account JSON key file: the RSA private key (PEM-encoded PKCS#8) and
// the issuer email.
type ServiceAccount struct {
	PrivateKey *rsa.PrivateKey
	Email      string
}

type serviceAccountJSON struct {
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
}

// ParseServiceAccountJSON parses a service-account key file's JSON body
// and decodes its PEM-encoded PKCS#8 RSA private key.
func ParseServiceAccountJSON(data []byte) (ServiceAccount, error) {
	var sa serviceAccountJSON
	if err := json.Unmarshal(data, &sa); err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: invalid service account JSON: %w", err)
	}
	if sa.ClientEmail == "" {
		return ServiceAccount{}, fmt.Errorf("auth: service account JSON missing client_email")
	}

	block, _ := pem.Decode([]byte(sa.PrivateKey))
	if block == nil {
		return ServiceAccount{}, fmt.Errorf("auth: service account private_key is not valid PEM")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return ServiceAccount{}, fmt.Errorf("auth: failed to parse PKCS#8 private key: %w", err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return ServiceAccount{}, fmt.Errorf("auth: private key is not an RSA key")
	}

	return ServiceAccount{PrivateKey: rsaKey, Email: sa.ClientEmail}, nil
}
