package auth

import "context"

// AppKeyAuthenticator resolves application keys through the user directory.
// Application keys identify the application rather than a human user, so the
// resulting identity carries KindApplication.
type AppKeyAuthenticator struct {
	directory Directory
}

// NewAppKeyAuthenticator creates an application-key authenticator.
func NewAppKeyAuthenticator(d Directory) *AppKeyAuthenticator {
	return &AppKeyAuthenticator{directory: d}
}

// Name returns "app_key".
func (a *AppKeyAuthenticator) Name() string {
	return "app_key"
}

// Supports returns true if the request carries an api_key parameter.
func (a *AppKeyAuthenticator) Supports(_ context.Context, req *ConnectRequest) bool {
	return req.AppKey() != ""
}

// Authenticate looks the application key up in the directory.
func (a *AppKeyAuthenticator) Authenticate(ctx context.Context, req *ConnectRequest) (*Result, error) {
	key := req.AppKey()
	if key == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	rec, err := a.directory.LookupToken(ctx, key)
	if err != nil {
		return Failure(ErrDirectoryUnavailable, a.Name()), nil
	}
	if rec == nil {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	userID := rec.UserID
	if userID == "" {
		userID = AnonymousUser
	}

	return Success(&Identity{
		UserID:  userID,
		AppName: rec.AppName,
		Role:    rec.Role,
		Kind:    KindApplication,
	}, a.Name()), nil
}

// Ensure AppKeyAuthenticator implements Authenticator
var _ Authenticator = (*AppKeyAuthenticator)(nil)
