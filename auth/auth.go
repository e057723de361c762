// Package auth provides OAuth2-backed token providers for sheetfeed.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/sheets/v4"

	sheetfeed "github.com/ideamans/go-sheetfeed"
)

// Scopes maps each audience to the OAuth2 scope its tokens are minted for
var Scopes = map[sheetfeed.Audience]string{
	sheetfeed.AudienceSpreadsheets: sheets.SpreadsheetsScope,
	sheetfeed.AudienceDocuments:    drive.DriveMetadataScope,
}

// ServiceAccountKey represents the structure of a service account JSON key file
type ServiceAccountKey struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
	ClientX509CertURL       string `json:"client_x509_cert_url"`
}

// sourceFactory builds a fresh token source. Sources from the oauth2 packages
// cache their token internally, so forgetting a token means building anew.
type sourceFactory func() (oauth2.TokenSource, error)

// Provider implements sheetfeed.TokenProvider on top of one oauth2.TokenSource
// per audience. Tokens are reused until the server rejects them.
type Provider struct {
	mu        sync.Mutex
	factories map[sheetfeed.Audience]sourceFactory
	sources   map[sheetfeed.Audience]oauth2.TokenSource
	issued    map[sheetfeed.Audience]string
}

// Compile-time assertion that Provider implements sheetfeed.TokenProvider.
var _ sheetfeed.TokenProvider = (*Provider)(nil)

func newProvider(factories map[sheetfeed.Audience]sourceFactory) (*Provider, error) {
	p := &Provider{
		factories: factories,
		sources:   make(map[sheetfeed.Audience]oauth2.TokenSource, len(factories)),
		issued:    make(map[sheetfeed.Audience]string),
	}
	for audience, factory := range factories {
		src, err := factory()
		if err != nil {
			return nil, err
		}
		p.sources[audience] = src
	}
	return p, nil
}

// FromTokenSources creates a provider from one token source per audience.
// Each source is asked for a new token only after the previous one was
// invalidated or expired.
func FromTokenSources(sources map[sheetfeed.Audience]oauth2.TokenSource) *Provider {
	factories := make(map[sheetfeed.Audience]sourceFactory, len(sources))
	for audience, src := range sources {
		factories[audience] = func() (oauth2.TokenSource, error) {
			return oauth2.ReuseTokenSource(nil, src), nil
		}
	}
	p, _ := newProvider(factories)
	return p
}

// Token returns a token for audience, minting one if none is held.
func (p *Provider) Token(_ context.Context, audience sheetfeed.Audience) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	src, ok := p.sources[audience]
	if !ok {
		return "", fmt.Errorf("no credentials configured for audience %q", audience)
	}
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("failed to obtain token: %w", err)
	}
	p.issued[audience] = tok.AccessToken
	return tok.AccessToken, nil
}

// InvalidateToken forgets token so the next Token call mints a new one.
func (p *Provider) InvalidateToken(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for audience, issued := range p.issued {
		if issued != token {
			continue
		}
		delete(p.issued, audience)
		src, err := p.factories[audience]()
		if err != nil {
			// keep the old source; the next request fails and surfaces the problem
			continue
		}
		p.sources[audience] = src
	}
}

// FromJSONKeyFile creates a provider using a JSON key file
func FromJSONKeyFile(ctx context.Context, jsonPath string) (*Provider, error) {
	// If jsonPath is empty, try GOOGLE_APPLICATION_CREDENTIALS env var
	if jsonPath == "" {
		jsonPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if jsonPath == "" {
			return nil, fmt.Errorf("no JSON key file path provided and GOOGLE_APPLICATION_CREDENTIALS not set")
		}
	}

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON key file: %w", err)
	}
	return FromJSONKeyData(ctx, jsonData)
}

// FromJSONKeyData creates a provider using JSON key data
func FromJSONKeyData(ctx context.Context, jsonData []byte) (*Provider, error) {
	factories := make(map[sheetfeed.Audience]sourceFactory, len(Scopes))
	for audience, scope := range Scopes {
		factories[audience] = func() (oauth2.TokenSource, error) {
			creds, err := google.CredentialsFromJSON(ctx, jsonData, scope)
			if err != nil {
				return nil, fmt.Errorf("failed to parse credentials: %w", err)
			}
			return creds.TokenSource, nil
		}
	}
	return newProvider(factories)
}

// FromServiceAccountKey creates a provider using a parsed service account key
func FromServiceAccountKey(ctx context.Context, key *ServiceAccountKey) *Provider {
	tokenURL := key.TokenURI
	if tokenURL == "" {
		tokenURL = google.JWTTokenURL
	}

	factories := make(map[sheetfeed.Audience]sourceFactory, len(Scopes))
	for audience, scope := range Scopes {
		jwtConfig := &jwt.Config{
			Email:        key.ClientEmail,
			PrivateKey:   []byte(key.PrivateKey),
			PrivateKeyID: key.PrivateKeyID,
			Scopes:       []string{scope},
			TokenURL:     tokenURL,
		}
		factories[audience] = func() (oauth2.TokenSource, error) {
			return jwtConfig.TokenSource(ctx), nil
		}
	}
	p, _ := newProvider(factories)
	return p
}

// FromDefaultCredentials creates a provider using Application Default Credentials
func FromDefaultCredentials(ctx context.Context) (*Provider, error) {
	// This will use:
	// 1. GOOGLE_APPLICATION_CREDENTIALS environment variable if set
	// 2. gcloud auth application-default credentials if available
	// 3. GCE metadata service if running on Google Cloud
	factories := make(map[sheetfeed.Audience]sourceFactory, len(Scopes))
	for audience, scope := range Scopes {
		factories[audience] = func() (oauth2.TokenSource, error) {
			src, err := google.DefaultTokenSource(ctx, scope)
			if err != nil {
				return nil, fmt.Errorf("failed to get default token source: %w", err)
			}
			return src, nil
		}
	}
	return newProvider(factories)
}

// ParseServiceAccountJSON parses a service account JSON file or data
func ParseServiceAccountJSON(jsonData []byte) (*ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(jsonData, &key); err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}

	if key.Type != "service_account" {
		return nil, fmt.Errorf("invalid key type: %s (expected: service_account)", key.Type)
	}

	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("missing required fields in service account key")
	}

	return &key, nil
}
