// Package transport declares the HTTP transport contract this module
// consumes. The transport itself — retries, TLS, connection pooling — is
// an external collaborator; this module only depends on the
// request/response shape.
package transport

import "net/http"

// HTTPClient is satisfied directly by *http.Client, and by any wrapper
// that layers a retry policy (exponential backoff on idempotent
// requests) around one.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
