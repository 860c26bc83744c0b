package pubsubhttp

import "github.com/zpiroux/pubsubhttp/internal/transport"

// HTTPClient is the transport interface consumed by this module. It is
// satisfied directly by *http.Client, and by any wrapper that layers a
// retry policy (exponential backoff on idempotent requests) around one:
// the retry policy itself is an external collaborator, not something
// this module implements.
type HTTPClient = transport.HTTPClient
