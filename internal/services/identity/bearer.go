// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LoginResponse is the bearer API's login payload.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	User        *Identity `json:"user,omitempty"`
}

// RegisterRequest is the bearer API's registration bundle.
type RegisterRequest struct {
	Email                  string   `json:"email"`
	Password               string   `json:"password"`
	FirstName              string   `json:"first_name"`
	LastName               string   `json:"last_name"`
	ContradictionTolerance *float64 `json:"contradiction_tolerance,omitempty"`
	BeliefSensitivity      string   `json:"belief_sensitivity,omitempty"`
}

// BearerClient talks to the application's own auth API and implements the
// Backend capability set over it. All payloads are validated at this
// boundary; transport failures map to ErrBackendUnavailable, well-formed
// rejections keep their specific kind.
type BearerClient struct {
	baseURL string
	client  *http.Client
}

// NewBearerClient creates a client for the bearer API at baseURL.
// httpClient may be nil; a client with a 15s timeout is used then.
func NewBearerClient(baseURL string, httpClient *http.Client) *BearerClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &BearerClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  httpClient,
	}
}

// Authenticate calls POST /auth/login and returns the identity plus the
// issued bearer token.
func (b *BearerClient) Authenticate(ctx context.Context, cred Credential) (*Identity, string, error) {
	var out LoginResponse
	status, err := b.do(ctx, http.MethodPost, "/auth/login", "", cred, &out)
	if err != nil {
		return nil, "", err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, "", ErrInvalidCredential
	case status < 200 || status >= 300:
		return nil, "", fmt.Errorf("login: unexpected status %d", status)
	}
	if out.AccessToken == "" {
		return nil, "", fmt.Errorf("login: %w: missing access_token", ErrBackendUnavailable)
	}
	return out.User, out.AccessToken, nil
}

// Register calls POST /auth/register.
func (b *BearerClient) Register(ctx context.Context, profile Profile, cred Credential) (*Identity, error) {
	req := RegisterRequest{
		Email:                  cred.Email,
		Password:               cred.Password,
		FirstName:              profile.FirstName,
		LastName:               profile.LastName,
		ContradictionTolerance: profile.ContradictionTolerance,
		BeliefSensitivity:      profile.BeliefSensitivity,
	}

	var out struct {
		User *Identity `json:"user,omitempty"`
	}
	status, err := b.do(ctx, http.MethodPost, "/auth/register", "", req, &out)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusConflict:
		return nil, ErrAlreadyExists
	case status == http.StatusBadRequest:
		return nil, ErrInvalidCredential
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("register: unexpected status %d", status)
	}
	return out.User, nil
}

// CurrentIdentity calls GET /auth/me with the bearer token.
func (b *BearerClient) CurrentIdentity(ctx context.Context, sessionToken string) (*Identity, error) {
	if sessionToken == "" {
		return nil, ErrUnauthenticated
	}

	var ident Identity
	status, err := b.do(ctx, http.MethodGet, "/auth/me", sessionToken, nil, &ident)
	if err != nil {
		return nil, err
	}

	switch {
	case status == http.StatusUnauthorized:
		return nil, ErrUnauthenticated
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("me: unexpected status %d", status)
	}
	return &ident, nil
}

// ResetCredential calls POST /auth/reset. The API always answers
// success-shaped, so only transport failures surface.
func (b *BearerClient) ResetCredential(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	status, err := b.do(ctx, http.MethodPost, "/auth/reset", "", body, nil)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("reset: unexpected status %d", status)
	}
	return nil
}

// do issues a request and decodes a successful JSON body into out (when out
// is non-nil). Returns the HTTP status; error-shaped statuses are left to
// the caller to interpret.
func (b *BearerClient) do(ctx context.Context, method, path, bearer string, body, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decoding response: %v", ErrBackendUnavailable, err)
		}
	}

	return resp.StatusCode, nil
}
