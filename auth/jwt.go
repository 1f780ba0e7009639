package auth

import (
	"context"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures local validation of session JWTs.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim). Empty skips the check.
	Issuer string

	// Audience is the expected token audience (aud claim). Empty skips the check.
	Audience string

	// UserClaim is the claim containing the user id.
	// Default: "sub"
	UserClaim string

	// AppClaim is the claim containing the application name.
	// Default: "app"
	AppClaim string

	// RoleClaim is the claim containing the user role.
	// Default: "role"
	RoleClaim string
}

// KeyProvider retrieves signing keys for JWT validation.
type KeyProvider interface {
	// GetKey returns the key for the given key ID.
	GetKey(ctx context.Context, keyID string) (any, error)
}

// StaticKeyProvider provides a single static signing key.
type StaticKeyProvider struct {
	key []byte
}

// NewStaticKeyProvider creates a static key provider.
func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{key: key}
}

// GetKey returns the static key.
func (p *StaticKeyProvider) GetKey(_ context.Context, _ string) (any, error) {
	return p.key, nil
}

// JWTAuthenticator validates session tokens that are JWTs, without a
// directory round trip.
type JWTAuthenticator struct {
	config      JWTConfig
	keyProvider KeyProvider
}

// NewJWTAuthenticator creates a new JWT authenticator.
func NewJWTAuthenticator(config JWTConfig, keyProvider KeyProvider) *JWTAuthenticator {
	// Apply defaults
	if config.UserClaim == "" {
		config.UserClaim = "sub"
	}
	if config.AppClaim == "" {
		config.AppClaim = "app"
	}
	if config.RoleClaim == "" {
		config.RoleClaim = "role"
	}

	return &JWTAuthenticator{
		config:      config,
		keyProvider: keyProvider,
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return "jwt"
}

// Supports returns true if the session token looks like a JWT.
func (a *JWTAuthenticator) Supports(_ context.Context, req *ConnectRequest) bool {
	token := req.SessionToken()
	return strings.Count(token, ".") == 2
}

// Authenticate parses and validates the session JWT.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req *ConnectRequest) (*Result, error) {
	tokenString := req.SessionToken()
	if tokenString == "" {
		return Failure(ErrMissingCredentials, a.Name()), nil
	}

	opts := []jwt.ParserOption{}
	if a.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.config.Issuer))
	}
	if a.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(a.config.Audience))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		kid := ""
		if kidVal, ok := token.Header["kid"].(string); ok {
			kid = kidVal
		}
		return a.keyProvider.GetKey(ctx, kid)
	}, opts...)

	if err != nil {
		if strings.Contains(err.Error(), "expired") {
			return Failure(ErrTokenExpired, a.Name()), nil
		}
		return Failure(ErrTokenMalformed, a.Name()), nil
	}

	if !token.Valid {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Failure(ErrTokenMalformed, a.Name()), nil
	}

	id := &Identity{
		UserID:  stringClaim(claims, a.config.UserClaim),
		AppName: stringClaim(claims, a.config.AppClaim),
		Role:    stringClaim(claims, a.config.RoleClaim),
		Kind:    KindSession,
	}
	if id.UserID == "" {
		return Failure(ErrInvalidCredentials, a.Name()), nil
	}
	if id.AppName == "" {
		id.AppName = DefaultApp
	}

	return Success(id, a.Name()), nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if name == "" {
		return ""
	}
	v, ok := claims[name].(string)
	if !ok {
		return ""
	}
	return v
}

// Ensure JWTAuthenticator implements Authenticator
var _ Authenticator = (*JWTAuthenticator)(nil)
