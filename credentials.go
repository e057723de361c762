package sheetfeed

import (
	"context"
	"fmt"
	"sync"
)

// Audience names the service a bearer token is scoped to.
type Audience string

const (
	// AudienceSpreadsheets covers reading and querying spreadsheet feeds.
	AudienceSpreadsheets Audience = "spreadsheets"
	// AudienceDocuments covers reading and writing document metadata.
	AudienceDocuments Audience = "documents"
)

// TokenProvider issues and revokes bearer tokens
type TokenProvider interface {
	// Token returns a token valid for the audience.
	Token(ctx context.Context, audience Audience) (string, error)

	// InvalidateToken tells the provider that token was rejected by the server.
	InvalidateToken(token string)
}

// CredentialCache holds one token per audience, fetched lazily from a provider.
// It is shared by every call made through the owning Executor.
type CredentialCache struct {
	provider TokenProvider
	mu       sync.Mutex
	tokens   map[Audience]string
}

// NewCredentialCache creates an empty cache backed by provider
func NewCredentialCache(provider TokenProvider) *CredentialCache {
	return &CredentialCache{
		provider: provider,
		tokens:   make(map[Audience]string),
	}
}

// Token returns the cached token for audience, fetching it on first use.
func (c *CredentialCache) Token(ctx context.Context, audience Audience) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token, ok := c.tokens[audience]; ok {
		return token, nil
	}

	token, err := c.provider.Token(ctx, audience)
	if err != nil {
		return "", fmt.Errorf("failed to get %s token: %w", audience, err)
	}
	c.tokens[audience] = token
	return token, nil
}

// InvalidateAll revokes every cached token at the provider and empties the cache.
func (c *CredentialCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for audience, token := range c.tokens {
		c.provider.InvalidateToken(token)
		delete(c.tokens, audience)
	}
}

// Len returns the number of cached tokens
func (c *CredentialCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tokens)
}
