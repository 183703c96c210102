// Package signer provides the remote signing boundary for Fletcher Signer.
package signer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TokenSource yields a bearer token authorizing calls to the remote signer.
// Tokens expire independently of URL expiry, so callers request a token
// immediately before each signing call instead of caching one.
type TokenSource interface {
	// Token returns a currently valid bearer token.
	Token(ctx context.Context) (string, error)
}

// =============================================================================
// Metadata Server Token Source
// =============================================================================

// DefaultMetadataEndpoint is the GCE metadata server token URL for the
// instance's default service account.
const DefaultMetadataEndpoint = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"

// MetadataTokenSource obtains tokens from the GCE/Cloud Run metadata server
// (ambient identity). The metadata server handles refresh; every call here
// returns whatever token is currently valid.
type MetadataTokenSource struct {
	endpoint   string
	httpClient *http.Client
}

// NewMetadataTokenSource creates a token source backed by the metadata
// server. An empty endpoint selects DefaultMetadataEndpoint.
func NewMetadataTokenSource(endpoint string) *MetadataTokenSource {
	if endpoint == "" {
		endpoint = DefaultMetadataEndpoint
	}
	return &MetadataTokenSource{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type metadataTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Token fetches a bearer token from the metadata server.
func (ts *MetadataTokenSource) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: metadata server returned %s", ErrTokenUnavailable, resp.Status)
	}

	var tok metadataTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token in metadata response", ErrTokenUnavailable)
	}

	return tok.AccessToken, nil
}

// =============================================================================
// Static Token Source
// =============================================================================

// StaticTokenSource returns a fixed token. Intended for tests and local
// development against a signer emulator; production deployments use the
// metadata server.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource creates a static token source.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token returns the configured token.
func (ts *StaticTokenSource) Token(ctx context.Context) (string, error) {
	if ts.token == "" {
		return "", fmt.Errorf("%w: no static token configured", ErrTokenUnavailable)
	}
	return ts.token, ctx.Err()
}
