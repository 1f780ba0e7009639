package auth

import (
	"context"
	"time"
)

// Config configures the connection authentication manager.
type Config struct {
	// Enabled turns credential checking on. When false every connection
	// resolves to the anonymous identity without a lookup.
	Enabled bool

	// AllowedOrigins is the origin allow-list. Empty permits only loopback
	// origins.
	AllowedOrigins []string

	// Directory is the external user-directory collaborator. Required when
	// Enabled.
	Directory Directory

	// JWTKey, when set, enables local validation of session JWTs with the
	// given HMAC key, tried before the directory lookup.
	JWTKey []byte

	// JWT tunes claim mapping for locally validated session tokens.
	JWT JWTConfig

	// Timeout bounds a single authentication attempt.
	// Default: 5 seconds.
	Timeout time.Duration
}

// Manager authenticates connections: it checks the origin, resolves session
// and application credentials, and classifies the result into one of the
// four identity kinds.
type Manager struct {
	config  Config
	origin  *OriginPolicy
	session Authenticator
	appKey  Authenticator
}

// NewManager creates an authentication manager.
func NewManager(config Config) *Manager {
	// Apply defaults
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	m := &Manager{
		config: config,
		origin: NewOriginPolicy(config.AllowedOrigins),
	}

	if config.Directory != nil {
		dir := NewDirectoryAuthenticator(config.Directory)
		if len(config.JWTKey) > 0 {
			jwtAuth := NewJWTAuthenticator(config.JWT, NewStaticKeyProvider(config.JWTKey))
			m.session = NewCompositeAuthenticator(jwtAuth, dir)
		} else {
			m.session = dir
		}
		m.appKey = NewAppKeyAuthenticator(config.Directory)
	} else if len(config.JWTKey) > 0 {
		m.session = NewJWTAuthenticator(config.JWT, NewStaticKeyProvider(config.JWTKey))
	}

	return m
}

// CheckOrigin validates the declared origin. It is split out from
// Authenticate so the transport can reject before upgrading.
func (m *Manager) CheckOrigin(origin string) error {
	return m.origin.Check(origin)
}

// Authenticate resolves the connection's credentials into an identity.
// It is the single terminal decision for a connection: a non-nil error means
// the connection must be closed before it ever joins the registry.
func (m *Manager) Authenticate(ctx context.Context, req *ConnectRequest) (*Identity, error) {
	if err := m.origin.Check(req.Origin); err != nil {
		return nil, err
	}

	if !m.config.Enabled {
		return Anonymous(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	var session, app *Identity

	if m.session != nil && m.session.Supports(ctx, req) {
		res, err := m.session.Authenticate(ctx, req)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		if !res.Authenticated {
			return nil, res.Reason
		}
		session = res.Identity
	}

	if m.appKey != nil && m.appKey.Supports(ctx, req) {
		res, err := m.appKey.Authenticate(ctx, req)
		if err != nil {
			return nil, ErrInvalidCredentials
		}
		if !res.Authenticated {
			return nil, res.Reason
		}
		app = res.Identity
	}

	switch {
	case session != nil && app != nil:
		// Both credential classes resolved: the user comes from the session,
		// the application scope from the key.
		return &Identity{
			UserID:  session.UserID,
			AppName: app.AppName,
			Role:    session.Role,
			Kind:    KindDual,
		}, nil
	case session != nil:
		return session, nil
	case app != nil:
		return app, nil
	default:
		return nil, ErrMissingCredentials
	}
}
