package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorInvalidAPIIdentifier      = "EASYGOOGLE_INVALID_API_IDENTIFIER"
	ErrorUnknownPreferredVersion   = "EASYGOOGLE_UNKNOWN_PREFERRED_VERSION"
	ErrorUncertainPreferredVersion = "EASYGOOGLE_UNCERTAIN_PREFERRED_VERSION"
	ErrorUnknownVersion            = "EASYGOOGLE_UNKNOWN_VERSION"
	ErrorBadInput                  = "EASYGOOGLE_BAD_INPUT"
	ErrorCredentialStore           = "EASYGOOGLE_CREDENTIAL_STORE"
	ErrorCredentialMissing         = "EASYGOOGLE_CREDENTIAL_MISSING"
	ErrorAuthFlow                  = "EASYGOOGLE_AUTH_FLOW"
	ErrorRefreshFailed             = "EASYGOOGLE_REFRESH_FAILED"
	ErrorInternal                  = "EASYGOOGLE_INTERNAL_ERROR"
)

const InvalidAPIIdentifierMessage = "Invalid API identifier"

func InvalidAPIIdentifierError(tag string) *goerrors.Error {
	return newError(InvalidAPIIdentifierMessage, goerrors.CategoryBadInput, ErrorInvalidAPIIdentifier).
		WithMetadata(map[string]any{"api": tag})
}

func UnknownPreferredVersionError(api string) *goerrors.Error {
	return newError(
		fmt.Sprintf("Could not determine preferred version for api %q", api),
		goerrors.CategoryBadInput,
		ErrorUnknownPreferredVersion,
	).WithMetadata(map[string]any{"api": api})
}

func UncertainPreferredVersionError(api string) *goerrors.Error {
	return newError(
		fmt.Sprintf("The api %q has multiple preferred versions, it is mandatory to specify a version", api),
		goerrors.CategoryBadInput,
		ErrorUncertainPreferredVersion,
	).WithMetadata(map[string]any{"api": api})
}

func UnknownVersionError(api string, version string) *goerrors.Error {
	return newError(
		fmt.Sprintf("Version %q is not registered for api %q", version, api),
		goerrors.CategoryBadInput,
		ErrorUnknownVersion,
	).WithMetadata(map[string]any{"api": api, "version": version})
}

func BadInputError(message string) *goerrors.Error {
	return newError(message, goerrors.CategoryBadInput, ErrorBadInput)
}

func CredentialMissingError(message string) *goerrors.Error {
	return newError(message, goerrors.CategoryAuth, ErrorCredentialMissing)
}

func CredentialStoreError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryInternal, message).
			WithTextCode(ErrorCredentialStore),
	)
}

func AuthFlowError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryAuth, message).
			WithTextCode(ErrorAuthFlow),
	)
}

func RefreshError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return ensureErrorEnvelope(
		goerrors.Wrap(err, goerrors.CategoryAuth, "credential refresh failed").
			WithTextCode(ErrorRefreshFailed),
	)
}

// MapError normalises any error into the rich error envelope used across
// the module.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "oauth2:"), strings.Contains(msg, "token"):
		return newError(err.Error(), goerrors.CategoryAuth, ErrorAuthFlow)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newError(err.Error(), goerrors.CategoryBadInput, ErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func newError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorAuthFlow
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
