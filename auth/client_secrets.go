package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ClientSecrets is a parsed OAuth client file (the "installed" or "web"
// document downloaded from the Google console).
type ClientSecrets struct {
	config *oauth2.Config
}

func ParseClientSecrets(data []byte) (*ClientSecrets, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("auth: client secrets are empty")
	}
	config, err := google.ConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("auth: parse client secrets: %w", err)
	}
	if strings.TrimSpace(config.ClientID) == "" {
		return nil, fmt.Errorf("auth: client secrets require client_id")
	}
	return &ClientSecrets{config: config}, nil
}

func LoadClientSecrets(path string) (*ClientSecrets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read client secrets %s: %w", path, err)
	}
	return ParseClientSecrets(data)
}

// ClientSecretsFromMap accepts the client file already decoded as a JSON
// object.
func ClientSecretsFromMap(values map[string]any) (*ClientSecrets, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("auth: client secrets are empty")
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("auth: encode client secrets: %w", err)
	}
	return ParseClientSecrets(data)
}

func (s *ClientSecrets) ClientID() string {
	if s == nil || s.config == nil {
		return ""
	}
	return s.config.ClientID
}

func (s *ClientSecrets) TokenURL() string {
	if s == nil || s.config == nil {
		return ""
	}
	return s.config.Endpoint.TokenURL
}

// Config returns a fresh oauth2 config for scopes. An empty redirectURL
// keeps the first redirect URI of the client file.
func (s *ClientSecrets) Config(scopes []string, redirectURL string) *oauth2.Config {
	if s == nil || s.config == nil {
		return nil
	}
	out := *s.config
	out.Scopes = slices.Clone(scopes)
	if trimmed := strings.TrimSpace(redirectURL); trimmed != "" {
		out.RedirectURL = trimmed
	}
	return &out
}
