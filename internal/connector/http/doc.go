// Package http is the transport shared by every backend adapter.
//
// Structure:
//
//	client.go     - request executor: window, retries, Retry-After, auth
//	window.go     - sliding request window (per minute / per hour caps)
//	breaker.go    - circuit breaker around the executor
//	errors.go     - ConnectionError, AuthenticationError, RateLimitError, RequestError
//	auth.go       - authentication strategies (Basic, Bearer, token)
//	paginator.go  - offset (startAt/maxResults) and page (page/per_page) pagination
//	base.go       - connection lifecycle and health probe embedded by adapters
//
// The request window is private to one Client. Two adapters connected to
// the same backend do not share limits.
package http
