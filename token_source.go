package easygoogle

import (
	"context"
	"sync"

	"github.com/goliatone/go-easygoogle/core"
	"golang.org/x/oauth2"
)

// persistingTokenSource saves every token the wrapped source mints so the
// stored credential follows automatic refreshes.
type persistingTokenSource struct {
	mu      sync.Mutex
	ctx     context.Context
	base    oauth2.TokenSource
	store   core.CredentialStore
	key     string
	stored  core.StoredCredential
	logger  core.Logger
	current string
}

func newPersistingTokenSource(
	ctx context.Context,
	base oauth2.TokenSource,
	store core.CredentialStore,
	key string,
	stored core.StoredCredential,
	logger core.Logger,
) *persistingTokenSource {
	return &persistingTokenSource{
		ctx:     ctx,
		base:    base,
		store:   store,
		key:     key,
		stored:  stored.Clone(),
		logger:  logger,
		current: stored.Token,
	}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, core.RefreshError(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.current {
		return token, nil
	}
	s.current = token.AccessToken

	updated := mergeToken(s.stored, token)
	if err := s.store.Save(s.ctx, s.key, updated); err != nil {
		core.LogWarn(s.ctx, s.logger, "failed to persist refreshed credential", map[string]any{"error": err.Error()})
		return token, nil
	}
	s.stored = updated
	core.LogDebug(s.ctx, s.logger, "refreshed credential persisted", nil)
	return token, nil
}

// mergeToken copies fresh token material over stored, keeping the refresh
// and id tokens when the token endpoint omits them.
func mergeToken(stored core.StoredCredential, token *oauth2.Token) core.StoredCredential {
	out := stored.Clone()
	out.Token = token.AccessToken
	out.TokenType = token.TokenType
	out.Expiry = token.Expiry
	if token.RefreshToken != "" {
		out.RefreshToken = token.RefreshToken
	}
	if idToken, ok := token.Extra("id_token").(string); ok && idToken != "" {
		out.IDToken = idToken
	}
	return out
}
