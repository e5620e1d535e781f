// Package core holds the easygoogle domain types: identities, stored
// credentials, configuration, error codes and the storage contracts that
// store adapters implement. Core must not depend on any adapter package.
package core
