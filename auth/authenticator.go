package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ConnectRequest carries the credential-bearing parts of a connection
// upgrade request.
type ConnectRequest struct {
	// Header contains the HTTP headers of the upgrade request.
	Header http.Header

	// Query contains the query parameters of the connection URL.
	Query url.Values

	// Origin is the declared Origin header value (may be empty).
	Origin string

	// RemoteAddr is the peer address, for logging only.
	RemoteAddr string
}

// NewConnectRequest builds a ConnectRequest from an HTTP upgrade request.
func NewConnectRequest(r *http.Request) *ConnectRequest {
	return &ConnectRequest{
		Header:     r.Header,
		Query:      r.URL.Query(),
		Origin:     r.Header.Get("Origin"),
		RemoteAddr: r.RemoteAddr,
	}
}

// SessionToken extracts the session credential. Checked in order: the
// "token" query parameter, then an "Authorization: Bearer <token>" header.
// Returns empty when neither is present.
func (r *ConnectRequest) SessionToken() string {
	if r.Query != nil {
		if tok := r.Query.Get("token"); tok != "" {
			return tok
		}
	}
	if r.Header != nil {
		header := r.Header.Get("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
	}
	return ""
}

// AppKey extracts the application credential from the "api_key" query
// parameter. Returns empty when absent.
func (r *ConnectRequest) AppKey() string {
	if r.Query == nil {
		return ""
	}
	return r.Query.Get("api_key")
}

// Authenticator resolves one credential class into an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Authenticate must honor cancellation/deadlines.
// - Errors: credential failures are reported via Result.Authenticated=false;
//   a non-nil error means the authenticator itself broke.
type Authenticator interface {
	// Name returns a unique identifier for this authenticator.
	Name() string

	// Supports returns true if this authenticator can handle the request.
	Supports(ctx context.Context, req *ConnectRequest) bool

	// Authenticate resolves the request's credential into an identity.
	Authenticate(ctx context.Context, req *ConnectRequest) (*Result, error)
}

// Result is the outcome of one authentication attempt.
type Result struct {
	// Authenticated is true if the credential resolved to an identity.
	Authenticated bool

	// Identity is the resolved identity. Nil unless Authenticated.
	Identity *Identity

	// Method names the authenticator that produced this result.
	Method string

	// Reason carries the failure cause when Authenticated is false.
	Reason error
}

// Success builds a successful result.
func Success(id *Identity, method string) *Result {
	return &Result{Authenticated: true, Identity: id, Method: method}
}

// Failure builds a failed result.
func Failure(reason error, method string) *Result {
	return &Result{Authenticated: false, Reason: reason, Method: method}
}
