package auth

import "context"

// Record is an identity record returned by the user directory.
type Record struct {
	// UserID is the unique user identifier.
	UserID string

	// AppName is the application the credential is scoped to.
	AppName string

	// Role is the user's role within the application.
	Role string
}

// Directory is the external user-directory collaborator. It is the single
// lookup boundary into the out-of-scope credential subsystem.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: LookupToken must honor cancellation/deadlines.
// - Errors: a missing record is (nil, nil), not an error. A non-nil error
//   means the directory itself failed; callers treat that as an
//   authentication failure.
type Directory interface {
	// LookupToken resolves a credential token to its identity record.
	// Returns (nil, nil) when the token is unknown.
	LookupToken(ctx context.Context, token string) (*Record, error)
}

// DirectoryAuthenticator resolves session tokens through the user directory.
type DirectoryAuthenticator struct {
	directory Directory
}

// NewDirectoryAuthenticator creates a directory-backed authenticator.
func NewDirectoryAuthenticator(d Directory) *DirectoryAuthenticator {
	return &DirectoryAuthenticator{directory: d}
}

// Name returns "directory".
func (a *DirectoryAuthenticator) Name() string {
	return "directory"
}

// Supports returns true if the request carries a session token.
func (a *DirectoryAuthenticator) Supports(_ context.Context, req *ConnectRequest) bool {
	return req.SessionToken() != ""
}

// Authenticate looks the session token up in the directory. Directory errors
// are reported as failures, never propagated, so a broken directory can
// never accidentally admit a connection.
func (a *DirectoryAuthenticator) Authenticate(ctx context.Context, req *ConnectRequest) (*Result, error) {
	token := req.SessionToken()
	if token == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	rec, err := a.directory.LookupToken(ctx, token)
	if err != nil {
		return Failure(ErrDirectoryUnavailable, a.Name()), nil
	}
	if rec == nil {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	return Success(&Identity{
		UserID:  rec.UserID,
		AppName: rec.AppName,
		Role:    rec.Role,
		Kind:    KindSession,
	}, a.Name()), nil
}

// Ensure DirectoryAuthenticator implements Authenticator
var _ Authenticator = (*DirectoryAuthenticator)(nil)
