package core

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	CredentialPayloadFormatJSONV1  = "stored_credential_json"
	CredentialPayloadFormatCompact = "stored_credential_compact"
	CredentialPayloadVersionV1     = 1

	compactFieldSeparator = "\x10"
	compactScopeSeparator = "~"
	compactFieldCount     = 7
)

type JSONCredentialCodec struct{}

func (JSONCredentialCodec) Format() string {
	return CredentialPayloadFormatJSONV1
}

func (JSONCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

type jsonCredentialPayload struct {
	Token        *string    `json:"token"`
	RefreshToken *string    `json:"refresh_token"`
	IDToken      *string    `json:"id_token"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret"`
	Scopes       []string   `json:"scopes"`
	TokenURI     string     `json:"token_uri"`
	TokenType    string     `json:"token_type,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

func (JSONCredentialCodec) Encode(credential StoredCredential) ([]byte, error) {
	payload := jsonCredentialPayload{
		Token:        optionalString(credential.Token),
		RefreshToken: optionalString(credential.RefreshToken),
		IDToken:      optionalString(credential.IDToken),
		ClientID:     strings.TrimSpace(credential.ClientID),
		ClientSecret: strings.TrimSpace(credential.ClientSecret),
		Scopes:       NormalizeScopes(credential.Scopes),
		TokenURI:     strings.TrimSpace(credential.TokenURI),
		TokenType:    strings.TrimSpace(credential.TokenType),
	}
	if !credential.Expiry.IsZero() {
		expiry := credential.Expiry.UTC()
		payload.Expiry = &expiry
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("core: encode credential payload: %w", err)
	}
	return encoded, nil
}

func (JSONCredentialCodec) Decode(payload []byte) (StoredCredential, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return StoredCredential{}, fmt.Errorf("core: credential payload is empty")
	}
	decoded := jsonCredentialPayload{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return StoredCredential{}, fmt.Errorf("core: decode credential payload: %w", err)
	}
	if strings.TrimSpace(decoded.ClientID) == "" {
		return StoredCredential{}, fmt.Errorf("core: decode credential payload: client_id is required")
	}
	out := StoredCredential{
		Token:        derefString(decoded.Token),
		RefreshToken: derefString(decoded.RefreshToken),
		IDToken:      derefString(decoded.IDToken),
		ClientID:     strings.TrimSpace(decoded.ClientID),
		ClientSecret: strings.TrimSpace(decoded.ClientSecret),
		Scopes:       NormalizeScopes(decoded.Scopes),
		TokenURI:     strings.TrimSpace(decoded.TokenURI),
		TokenType:    strings.TrimSpace(decoded.TokenType),
	}
	if decoded.Expiry != nil {
		out.Expiry = decoded.Expiry.UTC()
	}
	return out, nil
}

// CompactCredentialCodec packs the credential into a gzip compressed,
// separator delimited record. Expiry and token type are not carried.
type CompactCredentialCodec struct{}

func (CompactCredentialCodec) Format() string {
	return CredentialPayloadFormatCompact
}

func (CompactCredentialCodec) Version() int {
	return CredentialPayloadVersionV1
}

func (CompactCredentialCodec) Encode(credential StoredCredential) ([]byte, error) {
	fields := []string{
		credential.Token,
		credential.RefreshToken,
		credential.IDToken,
		credential.ClientID,
		credential.ClientSecret,
		strings.Join(NormalizeScopes(credential.Scopes), compactScopeSeparator),
		credential.TokenURI,
	}
	for _, field := range fields {
		if strings.Contains(field, compactFieldSeparator) {
			return nil, fmt.Errorf("core: compact credential field contains separator")
		}
	}

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := io.WriteString(writer, strings.Join(fields, compactFieldSeparator)); err != nil {
		return nil, fmt.Errorf("core: compress credential payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("core: compress credential payload: %w", err)
	}
	return buf.Bytes(), nil
}

func (CompactCredentialCodec) Decode(payload []byte) (StoredCredential, error) {
	if len(payload) == 0 {
		return StoredCredential{}, fmt.Errorf("core: credential payload is empty")
	}
	reader, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return StoredCredential{}, fmt.Errorf("core: decompress credential payload: %w", err)
	}
	defer reader.Close()
	raw, err := io.ReadAll(reader)
	if err != nil {
		return StoredCredential{}, fmt.Errorf("core: decompress credential payload: %w", err)
	}

	fields := strings.Split(string(raw), compactFieldSeparator)
	if len(fields) != compactFieldCount {
		return StoredCredential{}, fmt.Errorf("core: decode compact credential: expected %d fields, got %d", compactFieldCount, len(fields))
	}
	var scopes []string
	if fields[5] != "" {
		scopes = strings.Split(fields[5], compactScopeSeparator)
	}
	return StoredCredential{
		Token:        fields[0],
		RefreshToken: fields[1],
		IDToken:      fields[2],
		ClientID:     fields[3],
		ClientSecret: fields[4],
		Scopes:       NormalizeScopes(scopes),
		TokenURI:     fields[6],
	}, nil
}

// SealCredential encodes a credential and, when secrets is set, encrypts the
// encoded payload.
func SealCredential(ctx context.Context, codec CredentialCodec, secrets SecretProvider, credential StoredCredential) ([]byte, error) {
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	payload, err := codec.Encode(credential)
	if err != nil {
		return nil, err
	}
	if secrets == nil {
		return payload, nil
	}
	sealed, err := secrets.Encrypt(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("core: encrypt credential payload: %w", err)
	}
	return sealed, nil
}

func OpenCredential(ctx context.Context, codec CredentialCodec, secrets SecretProvider, payload []byte) (StoredCredential, error) {
	if codec == nil {
		codec = JSONCredentialCodec{}
	}
	if secrets != nil {
		opened, err := secrets.Decrypt(ctx, payload)
		if err != nil {
			return StoredCredential{}, fmt.Errorf("core: decrypt credential payload: %w", err)
		}
		payload = opened
	}
	return codec.Decode(payload)
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return strings.TrimSpace(*value)
}

// CodecForFormat returns the codec that reads payloads written in format.
// An empty format, or the fallback's own format, selects fallback.
func CodecForFormat(format string, fallback CredentialCodec) (CredentialCodec, error) {
	if fallback == nil {
		fallback = JSONCredentialCodec{}
	}
	switch strings.TrimSpace(format) {
	case "", fallback.Format():
		return fallback, nil
	case CredentialPayloadFormatJSONV1:
		return JSONCredentialCodec{}, nil
	case CredentialPayloadFormatCompact:
		return CompactCredentialCodec{}, nil
	default:
		return nil, fmt.Errorf("core: unsupported credential payload format %q", format)
	}
}
