package core

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestJSONCredentialCodec_RoundTrip(t *testing.T) {
	expiry := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	codec := JSONCredentialCodec{}
	encoded, err := codec.Encode(StoredCredential{
		Token:        "access-1",
		RefreshToken: "refresh-1",
		IDToken:      "id-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Scopes:       []string{"https://www.googleapis.com/auth/drive", " https://www.googleapis.com/auth/drive "},
		TokenURI:     "https://oauth2.googleapis.com/token",
		TokenType:    "Bearer",
		Expiry:       expiry,
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Token != "access-1" || decoded.RefreshToken != "refresh-1" || decoded.IDToken != "id-1" {
		t.Fatalf("expected token fields roundtrip, got %#v", decoded)
	}
	if len(decoded.Scopes) != 1 {
		t.Fatalf("expected deduped scopes, got %v", decoded.Scopes)
	}
	if !decoded.Expiry.Equal(expiry) {
		t.Fatalf("expected expiry roundtrip, got %v", decoded.Expiry)
	}
}

func TestJSONCredentialCodec_WritesNullTokenWhenOmitted(t *testing.T) {
	encoded, err := JSONCredentialCodec{}.Encode(StoredCredential{
		RefreshToken: "refresh-1",
		ClientID:     "client-1",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(encoded, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	value, ok := raw["token"]
	if !ok {
		t.Fatalf("expected token key to be present")
	}
	if value != nil {
		t.Fatalf("expected null token, got %v", value)
	}
	for _, key := range []string{"refresh_token", "id_token", "client_id", "client_secret", "scopes", "token_uri"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("expected key %q in payload", key)
		}
	}
}

func TestJSONCredentialCodec_RejectsMalformedPayload(t *testing.T) {
	codec := JSONCredentialCodec{}
	if _, err := codec.Decode([]byte("{not json")); err == nil {
		t.Fatalf("expected malformed payload error")
	}
	if _, err := codec.Decode([]byte(`{"token":"a"}`)); err == nil {
		t.Fatalf("expected missing client id error")
	}
	if _, err := codec.Decode(nil); err == nil {
		t.Fatalf("expected empty payload error")
	}
}

func TestCompactCredentialCodec_RoundTrip(t *testing.T) {
	codec := CompactCredentialCodec{}
	encoded, err := codec.Encode(StoredCredential{
		Token:        "access-1",
		RefreshToken: "refresh-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		Scopes:       []string{"scope-a", "scope-b"},
		TokenURI:     "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := codec.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Token != "access-1" || decoded.ClientSecret != "secret-1" {
		t.Fatalf("unexpected decoded credential: %#v", decoded)
	}
	if strings.Join(decoded.Scopes, ",") != "scope-a,scope-b" {
		t.Fatalf("unexpected scopes: %v", decoded.Scopes)
	}
	if decoded.IDToken != "" {
		t.Fatalf("expected empty id token, got %q", decoded.IDToken)
	}
}

func TestCompactCredentialCodec_RejectsSeparatorInField(t *testing.T) {
	_, err := CompactCredentialCodec{}.Encode(StoredCredential{ClientID: "bad\x10id"})
	if err == nil {
		t.Fatalf("expected separator error")
	}
}

func TestSealAndOpenCredential_UsesSecretProvider(t *testing.T) {
	ctx := context.Background()
	secrets := reversingSecretProvider{}
	credential := StoredCredential{Token: "a", ClientID: "client-1", Scopes: []string{"s1"}}

	sealed, err := SealCredential(ctx, nil, secrets, credential)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if strings.Contains(string(sealed), "client-1") {
		t.Fatalf("expected payload to be transformed by secret provider")
	}
	opened, err := OpenCredential(ctx, nil, secrets, sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if opened.ClientID != "client-1" || opened.Token != "a" {
		t.Fatalf("unexpected opened credential: %#v", opened)
	}
}

type reversingSecretProvider struct{}

func (reversingSecretProvider) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return reverseBytes(plaintext), nil
}

func (reversingSecretProvider) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return reverseBytes(ciphertext), nil
}

func reverseBytes(in []byte) []byte {
	out := make([]byte, len(in))
	for i := range in {
		out[len(in)-1-i] = in[i]
	}
	return out
}

func TestCodecForFormat(t *testing.T) {
	codec, err := CodecForFormat("", CompactCredentialCodec{})
	if err != nil || codec.Format() != CredentialPayloadFormatCompact {
		t.Fatalf("expected fallback codec, got %v %v", codec, err)
	}
	codec, err = CodecForFormat(CredentialPayloadFormatJSONV1, CompactCredentialCodec{})
	if err != nil || codec.Format() != CredentialPayloadFormatJSONV1 {
		t.Fatalf("expected json codec, got %v %v", codec, err)
	}
	codec, err = CodecForFormat(CredentialPayloadFormatCompact, nil)
	if err != nil || codec.Format() != CredentialPayloadFormatCompact {
		t.Fatalf("expected compact codec, got %v %v", codec, err)
	}
	if _, err := CodecForFormat("yaml", nil); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
