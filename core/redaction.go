package core

import (
	"regexp"
	"strings"
)

const RedactedValue = "[REDACTED]"

// credentialKeys name the fields of client secrets, token responses, service
// account keys and authorization requests that must never reach a log.
var credentialKeys = map[string]struct{}{
	"access_token":            {},
	"refresh_token":           {},
	"id_token":                {},
	"token":                   {},
	"client_secret":           {},
	"private_key":             {},
	"private_key_id":          {},
	"code":                    {},
	"code_verifier":           {},
	"assertion":               {},
	"client_assertion":        {},
	"authorization":           {},
	"password":                {},
	"encryption_key":          {},
	"retired_encryption_keys": {},
	"payload":                 {},
}

// traceabilityKeys identify a credential without revealing it.
var traceabilityKeys = map[string]struct{}{
	"storage_key":       {},
	"user":              {},
	"scope":             {},
	"scopes":            {},
	"subject":           {},
	"client_id":         {},
	"client_email":      {},
	"service_account":   {},
	"token_url":         {},
	"token_uri":         {},
	"token_type":        {},
	"auth_uri":          {},
	"auth_mode":         {},
	"redirect_url":      {},
	"has_refresh_token": {},
	"encryption_key_id": {},
	"expiry":            {},
}

var sensitiveKeyFragments = []string{"secret", "token", "password", "private_key", "credential"}

// credentialValuePattern matches Google access tokens, refresh tokens and
// PEM private keys embedded in free text such as error messages.
var credentialValuePattern = regexp.MustCompile(
	`ya29\.[A-Za-z0-9_\-.]+|1//[A-Za-z0-9_\-]+|-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`,
)

func RedactSensitiveMap(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(metadata)
}

// redactCredentialText masks token and key material inside a string.
func redactCredentialText(value string) string {
	return credentialValuePattern.ReplaceAllString(value, RedactedValue)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case string:
		return redactCredentialText(typed)
	case map[string]any:
		return redactSensitiveMap(typed)
	case map[string]string:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = item
		}
		return redactSensitiveMap(out)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	if _, ok := traceabilityKeys[key]; ok {
		return false
	}
	if _, ok := credentialKeys[key]; ok {
		return true
	}
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}
