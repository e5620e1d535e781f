package command

import (
	"strings"

	"github.com/goliatone/go-easygoogle/core"
)

const (
	TypeAuthorize     = "easygoogle.command.authorize"
	TypeForget        = "easygoogle.command.forget"
	TypeSetCredential = "easygoogle.command.credential.set"
)

type AuthorizeMessage struct {
	Request core.AuthorizeRequest
}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (m AuthorizeMessage) Validate() error {
	if len(core.NormalizeScopes(m.Request.Scopes)) == 0 {
		return commandValidationError("scopes", "at least one scope is required")
	}
	if m.Request.Mode != "" && !m.Request.Mode.Valid() {
		return commandValidationError("mode", "unknown auth mode")
	}
	return nil
}

type ForgetMessage struct {
	Request core.ForgetRequest
}

func (ForgetMessage) Type() string { return TypeForget }

func (m ForgetMessage) Validate() error {
	return validateUser(m.Request.User)
}

type SetCredentialMessage struct {
	Request core.SetCredentialRequest
}

func (SetCredentialMessage) Type() string { return TypeSetCredential }

func (m SetCredentialMessage) Validate() error {
	credential := m.Request.Credential
	if strings.TrimSpace(credential.Token) == "" && strings.TrimSpace(credential.RefreshToken) == "" {
		return commandValidationError("credential", "an access or refresh token is required")
	}
	return nil
}

// validateUser accepts an empty user, which selects the configured default.
func validateUser(user string) error {
	if user != "" && strings.TrimSpace(user) == "" {
		return commandValidationError("user", "user must not be blank")
	}
	return nil
}
