package auth

// Kind indicates which credential class produced an identity.
type Kind string

const (
	// KindSession means a user session token (query token or bearer header).
	KindSession Kind = "session"
	// KindApplication means an application key (api_key).
	KindApplication Kind = "application"
	// KindDual means both a session token and an application key resolved.
	KindDual Kind = "dual"
	// KindNone means the connection is unauthenticated.
	KindNone Kind = "none"
)

// Sentinel values used by anonymous identities.
const (
	AnonymousUser = "anonymous"
	DefaultApp    = "default"
	GuestRole     = "guest"
)

// Identity is the resolved identity context for a connection. It is set once
// at accept time and never mutated afterwards; it lives only in process
// memory.
type Identity struct {
	// UserID is the unique user identifier.
	UserID string

	// AppName is the application the connection acts on behalf of.
	AppName string

	// Role is the user's role within the application.
	Role string

	// Kind indicates how this identity was established.
	Kind Kind
}

// IsAnonymous returns true for unauthenticated identities.
func (id *Identity) IsAnonymous() bool {
	return id == nil || id.Kind == KindNone || id.UserID == "" || id.UserID == AnonymousUser
}

// Anonymous returns the fixed identity used for unauthenticated connections.
func Anonymous() *Identity {
	return &Identity{
		UserID:  AnonymousUser,
		AppName: DefaultApp,
		Role:    GuestRole,
		Kind:    KindNone,
	}
}
