package security

import (
	"context"
	"fmt"

	"github.com/goliatone/go-easygoogle/core"
)

// RotatingSecretProvider encrypts with the current key and decrypts
// payloads sealed by any retired key it still knows.
type RotatingSecretProvider struct {
	current *AppKeySecretProvider
	byKeyID map[string]*AppKeySecretProvider
}

func NewRotatingSecretProvider(current *AppKeySecretProvider, retired ...*AppKeySecretProvider) (*RotatingSecretProvider, error) {
	if current == nil {
		return nil, fmt.Errorf("security: current secret provider is required")
	}
	provider := &RotatingSecretProvider{
		current: current,
		byKeyID: map[string]*AppKeySecretProvider{current.KeyID(): current},
	}
	for _, previous := range retired {
		if previous == nil {
			continue
		}
		if _, exists := provider.byKeyID[previous.KeyID()]; exists {
			continue
		}
		provider.byKeyID[previous.KeyID()] = previous
	}
	return provider, nil
}

// NewRotatingSecretProviderFromStrings builds the current key and every
// retired key from raw key material.
func NewRotatingSecretProviderFromStrings(current string, retired ...string) (*RotatingSecretProvider, error) {
	primary, err := NewAppKeySecretProviderFromString(current)
	if err != nil {
		return nil, err
	}
	previous := make([]*AppKeySecretProvider, 0, len(retired))
	for _, material := range retired {
		provider, err := NewAppKeySecretProviderFromString(material)
		if err != nil {
			return nil, err
		}
		previous = append(previous, provider)
	}
	return NewRotatingSecretProvider(primary, previous...)
}

func (p *RotatingSecretProvider) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	if p == nil || p.current == nil {
		return nil, fmt.Errorf("security: rotating secret provider is not configured")
	}
	return p.current.Encrypt(ctx, plaintext)
}

func (p *RotatingSecretProvider) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if p == nil || p.current == nil {
		return nil, fmt.Errorf("security: rotating secret provider is not configured")
	}
	metadata, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return nil, err
	}
	provider, ok := p.byKeyID[metadata.KeyID]
	if !ok {
		return nil, fmt.Errorf("security: no key registered for key id %q", metadata.KeyID)
	}
	return provider.Decrypt(ctx, ciphertext)
}

// NeedsRotation reports whether ciphertext was sealed by a retired key.
func (p *RotatingSecretProvider) NeedsRotation(ciphertext []byte) bool {
	if p == nil || p.current == nil {
		return false
	}
	metadata, err := ParseEnvelopeMetadata(ciphertext)
	if err != nil {
		return false
	}
	return metadata.KeyID != p.current.KeyID() || metadata.Version != p.current.Version()
}

func (p *RotatingSecretProvider) KeyID() string {
	if p == nil {
		return ""
	}
	return p.current.KeyID()
}

var _ core.SecretProvider = (*RotatingSecretProvider)(nil)
