/*
Copyright 2025 Listmirror Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/listmirror/listmirror/config"
	"github.com/pkg/errors"
)

// TokenSource supplies bearer tokens for feed requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a fixed token. Useful for tests and for
// sources that require no authentication (empty value).
type StaticTokenSource struct {
	Value string
}

func (s StaticTokenSource) Token(_ context.Context) (string, error) {
	return s.Value, nil
}

// ClientCredentialsSource obtains tokens with the OAuth2
// client-credentials grant and caches them until shortly before
// expiry.
type ClientCredentialsSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	http         *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource picks the token source implied by configuration: a
// client-credentials source when a token URL is set, otherwise an
// anonymous static source.
func NewTokenSource(cnf config.FeedConfig) TokenSource {
	if cnf.TokenURL == "" {
		return StaticTokenSource{}
	}
	return &ClientCredentialsSource{
		tokenURL:     cnf.TokenURL,
		clientID:     cnf.ClientID,
		clientSecret: cnf.ClientSecret,
		scope:        cnf.Scope,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expiresAt) {
		return s.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)
	if s.scope != "" {
		form.Set("scope", s.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "token request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decoding token response")
	}
	if body.AccessToken == "" {
		return "", errors.New("token endpoint returned an empty access token")
	}

	s.token = body.AccessToken
	// Refresh a minute early so in-flight requests never carry a token
	// that expires mid-call.
	s.expiresAt = time.Now().Add(time.Duration(body.ExpiresIn)*time.Second - time.Minute)
	return s.token, nil
}
