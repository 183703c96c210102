// Package signer provides the remote signing boundary for Fletcher Signer.
package signer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultIAMEndpoint is the IAM Credentials API base URL.
const DefaultIAMEndpoint = "https://iamcredentials.googleapis.com"

// IAMConfig contains configuration for the IAM signBlob client.
type IAMConfig struct {
	// Endpoint is the IAM Credentials API base URL.
	// Defaults to DefaultIAMEndpoint.
	Endpoint string

	// Timeout bounds a single signBlob call. Defaults to 10s.
	Timeout time.Duration
}

// IAMSigner signs payloads via the IAM Credentials signBlob API.
//
// A fresh bearer token is requested from the token source immediately
// before every call. Exactly one HTTP attempt is made per SignBlob call;
// a canceled context abandons the in-flight request.
type IAMSigner struct {
	endpoint    string
	tokenSource TokenSource
	httpClient  *http.Client
	logger      zerolog.Logger
}

// NewIAMSigner creates a new IAMSigner.
func NewIAMSigner(cfg IAMConfig, tokenSource TokenSource, logger zerolog.Logger) *IAMSigner {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultIAMEndpoint
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &IAMSigner{
		endpoint:    endpoint,
		tokenSource: tokenSource,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With().Str("component", "iam_signer").Logger(),
	}
}

type signBlobRequest struct {
	Payload string `json:"payload"`
}

// signBlobResponse mirrors the IAM Credentials API response shape.
// The signature travels in signedBlob; keyId names the key version used.
type signBlobResponse struct {
	KeyID      string `json:"keyId"`
	SignedBlob string `json:"signedBlob"`
}

// SignBlob signs payload with the key held for identity.
func (s *IAMSigner) SignBlob(ctx context.Context, identity string, payload []byte) ([]byte, error) {
	token, err := s.tokenSource.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(signBlobRequest{
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}

	url := s.endpoint + "/v1/projects/-/serviceAccounts/" + identity + ":signBlob"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		s.logger.Error().
			Str("identity", identity).
			Int("status", resp.StatusCode).
			Msg("signBlob returned non-success status")
		return nil, fmt.Errorf("%w: signBlob returned %s: %s", ErrSigningFailed, resp.Status, bytes.TrimSpace(detail))
	}

	var out signBlobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.SignedBlob == "" {
		return nil, fmt.Errorf("%w: response missing signedBlob field", ErrMalformedResponse)
	}

	signature, err := base64.StdEncoding.DecodeString(out.SignedBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: signedBlob is not valid base64: %v", ErrMalformedResponse, err)
	}

	s.logger.Debug().
		Str("identity", identity).
		Str("key_id", out.KeyID).
		Int("signature_bytes", len(signature)).
		Dur("duration", time.Since(start)).
		Msg("signed blob via IAM")

	return signature, nil
}

// Ensure IAMSigner implements BlobSigner.
var _ BlobSigner = (*IAMSigner)(nil)
