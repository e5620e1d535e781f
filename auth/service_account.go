package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const serviceAccountKeyType = "service_account"

// ServiceAccountKey holds a parsed service account key file. The private
// key is only used when a token is first requested.
type ServiceAccountKey struct {
	config    *jwt.Config
	projectID string
	clientID  string
}

type serviceAccountKeyFile struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
	ClientID  string `json:"client_id"`
}

func ParseServiceAccountKey(data []byte) (*ServiceAccountKey, error) {
	var file serviceAccountKeyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("auth: decode service account key: %w", err)
	}
	if file.Type != serviceAccountKeyType {
		return nil, fmt.Errorf("auth: key type %q is not %s", file.Type, serviceAccountKeyType)
	}
	config, err := google.JWTConfigFromJSON(data)
	if err != nil {
		return nil, fmt.Errorf("auth: parse service account key: %w", err)
	}
	if strings.TrimSpace(config.Email) == "" {
		return nil, fmt.Errorf("auth: service account key requires client_email")
	}
	return &ServiceAccountKey{
		config:    config,
		projectID: strings.TrimSpace(file.ProjectID),
		clientID:  strings.TrimSpace(file.ClientID),
	}, nil
}

func LoadServiceAccountKey(path string) (*ServiceAccountKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read service account key %s: %w", path, err)
	}
	return ParseServiceAccountKey(data)
}

func ServiceAccountKeyFromMap(values map[string]any) (*ServiceAccountKey, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("auth: service account key is empty")
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("auth: encode service account key: %w", err)
	}
	return ParseServiceAccountKey(data)
}

func (k *ServiceAccountKey) Email() string {
	if k == nil || k.config == nil {
		return ""
	}
	return k.config.Email
}

func (k *ServiceAccountKey) ProjectID() string {
	if k == nil {
		return ""
	}
	return k.projectID
}

func (k *ServiceAccountKey) ClientID() string {
	if k == nil {
		return ""
	}
	return k.clientID
}

// Subject is the user impersonated through domain wide delegation.
func (k *ServiceAccountKey) Subject() string {
	if k == nil || k.config == nil {
		return ""
	}
	return k.config.Subject
}

// WithSubject returns a copy of the key that impersonates subject.
func (k *ServiceAccountKey) WithSubject(subject string) *ServiceAccountKey {
	if k == nil || k.config == nil {
		return nil
	}
	out := *k
	cfg := *k.config
	cfg.Subject = strings.TrimSpace(subject)
	cfg.Scopes = slices.Clone(k.config.Scopes)
	out.config = &cfg
	return &out
}

// JWTConfig returns the two legged JWT config for scopes.
func (k *ServiceAccountKey) JWTConfig(scopes []string) *jwt.Config {
	if k == nil || k.config == nil {
		return nil
	}
	cfg := *k.config
	cfg.Scopes = slices.Clone(scopes)
	return &cfg
}

// TokenSource returns a caching token source. The token is exchanged on the
// first call to Token.
func (k *ServiceAccountKey) TokenSource(ctx context.Context, scopes []string) oauth2.TokenSource {
	cfg := k.JWTConfig(scopes)
	if cfg == nil {
		return nil
	}
	return cfg.TokenSource(context.WithoutCancel(ctx))
}

// DefaultCredentialsFinder locates application default credentials.
type DefaultCredentialsFinder func(ctx context.Context, scopes ...string) (*google.Credentials, error)

func FindDefaultCredentials(ctx context.Context, scopes ...string) (*google.Credentials, error) {
	creds, err := google.FindDefaultCredentials(ctx, scopes...)
	if err != nil {
		return nil, fmt.Errorf("auth: find default credentials: %w", err)
	}
	return creds, nil
}
