package sheetfeed

import (
	"context"
	"encoding/xml"
	"errors"

	"go.uber.org/zap"
)

// maxAttempts bounds Do: the first run plus one retry after invalidating credentials.
const maxAttempts = 2

// Operation performs exactly one HTTP exchange and decodes its result.
// It must be safe to run again from scratch.
type Operation func(ctx context.Context) error

// Executor runs operations against the feed service, recovering once from
// expired credentials and classifying every failure.
type Executor struct {
	cfg    Config
	creds  *CredentialCache
	logger *zap.Logger
}

// NewExecutor creates an executor that owns a credential cache over provider
func NewExecutor(provider TokenProvider, config *Config) *Executor {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.withDefaults()

	return &Executor{
		cfg:    cfg,
		creds:  NewCredentialCache(provider),
		logger: cfg.Logger,
	}
}

// Credentials returns the executor's credential cache.
func (e *Executor) Credentials() *CredentialCache {
	return e.creds
}

// Do runs op. When the server reports expired credentials, every cached token
// is invalidated and op runs once more; a second failure is returned as is.
func (e *Executor) Do(ctx context.Context, op Operation) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}

		var httpErr *HTTPError
		if attempt < maxAttempts && errors.As(err, &httpErr) && httpErr.credentialsExpired() {
			e.logger.Warn("credentials expired, retrying with fresh tokens",
				zap.Int("attempt", attempt),
				zap.Int("status", httpErr.StatusCode))
			e.creds.InvalidateAll()
			continue
		}
		break
	}
	return classify(err)
}

// classify maps decoder failures onto ProtocolError. HTTP errors, protocol
// errors and transport errors pass through unchanged.
func classify(err error) error {
	var httpErr *HTTPError
	var protoErr *ProtocolError
	if errors.As(err, &httpErr) || errors.As(err, &protoErr) {
		return err
	}

	var syntaxErr *xml.SyntaxError
	var unmarshalErr xml.UnmarshalError
	var tagErr *xml.TagPathError
	if errors.As(err, &syntaxErr) || errors.As(err, &unmarshalErr) || errors.As(err, &tagErr) {
		return &ProtocolError{Err: err}
	}
	return err
}
