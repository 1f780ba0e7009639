package cache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/observe"
)

// SchemaLoader fetches a schema definition on a schema-cache miss.
type SchemaLoader func(ctx context.Context, model string) (any, error)

// Config configures the cache manager.
type Config struct {
	// Policy controls TTL defaulting and clamping for query results.
	Policy Policy

	// Logger receives cache diagnostics. Defaults to a no-op logger.
	Logger observe.Logger
}

// entry is one cached query result and its ownership.
type entry struct {
	data      any
	createdAt time.Time
	ttl       time.Duration
	userID    string
	appName   string
}

// Manager owns the query-result cache, its two reverse indexes, and the
// permanent schema cache.
//
// Contract:
// - Concurrency: safe for concurrent use; the primary map and both indexes
//   are mutated under a single critical section per logical operation, so
//   the indexes always mirror the primary exactly.
// - Locking: no lock is held across a loader call or any other blocking
//   operation.
type Manager struct {
	mu      sync.Mutex
	entries map[string]*entry
	byUser  map[string]map[string]struct{}
	byApp   map[string]map[string]struct{}
	schemas map[string]any
	policy  Policy
	stats   Stats

	loadGroup singleflight.Group
	logger    observe.Logger

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewManager creates a cache manager.
func NewManager(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	if config.Policy == (Policy{}) {
		config.Policy = DefaultPolicy()
	}

	return &Manager{
		entries: make(map[string]*entry),
		byUser:  make(map[string]map[string]struct{}),
		byApp:   make(map[string]map[string]struct{}),
		schemas: make(map[string]any),
		policy:  config.Policy,
		logger:  logger,
		now:     time.Now,
	}
}

// GenerateKey derives the isolation-safe cache key for a request under the
// given identity. A nil identity is a caller bug; it is logged as a security
// warning and keyed as anonymous so it can only ever share the anonymous
// cache partition.
func (m *Manager) GenerateKey(ctx context.Context, req Request, id *auth.Identity) string {
	if id == nil {
		m.logger.Warn(ctx, "cache key requested without identity, falling back to anonymous",
			observe.Field{Key: "command", Value: req.Command})
		id = auth.Anonymous()
	}
	return deriveKey(req, id)
}

// GetQuery looks a query result up by key. Entries found expired are removed
// from the primary map and both indexes before reporting a miss.
func (m *Manager) GetQuery(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		m.stats.Query.Misses++
		return nil, false
	}

	if m.now().Sub(e.createdAt) > e.ttl {
		m.removeLocked(key, e)
		m.stats.Query.Expired++
		m.stats.Query.Misses++
		return nil, false
	}

	m.stats.Query.Hits++
	return e.data, true
}

// CacheQuery stores a query result under the given key. A ttl <= 0 uses the
// policy default; overrides are clamped to the policy maximum. The entry and
// both index memberships are installed in one critical section.
func (m *Manager) CacheQuery(key string, data any, ttl time.Duration, id *auth.Identity) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if id == nil {
		m.logger.Warn(context.Background(), "caching without identity, falling back to anonymous",
			observe.Field{Key: "key", Value: key})
		id = auth.Anonymous()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Resolved under the lock so a concurrent SetDefaultTTL is never missed.
	effective := m.policy.EffectiveTTL(ttl)

	// Overwriting an entry may change its owner; detach the old memberships
	// first so the indexes stay exact mirrors.
	if old, ok := m.entries[key]; ok {
		m.removeLocked(key, old)
	}

	m.entries[key] = &entry{
		data:      data,
		createdAt: m.now(),
		ttl:       effective,
		userID:    id.UserID,
		appName:   id.AppName,
	}

	if m.byUser[id.UserID] == nil {
		m.byUser[id.UserID] = make(map[string]struct{})
	}
	m.byUser[id.UserID][key] = struct{}{}

	if m.byApp[id.AppName] == nil {
		m.byApp[id.AppName] = make(map[string]struct{})
	}
	m.byApp[id.AppName][key] = struct{}{}

	return nil
}

// ClearUser removes every entry owned by the user and returns the count.
// Cost is proportional to the user's entry set, not the whole cache.
func (m *Manager) ClearUser(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, ok := m.byUser[userID]
	if !ok {
		return 0
	}

	count := 0
	for key := range keys {
		e, ok := m.entries[key]
		if !ok {
			// Index referenced a missing entry. Should never happen; heal by
			// dropping the dangling reference.
			m.logger.Error(context.Background(), "cache index referenced missing entry",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "user_id", Value: userID})
			continue
		}
		m.removeLocked(key, e)
		count++
	}
	delete(m.byUser, userID)

	return count
}

// ClearApp removes every entry owned by the application and returns the count.
func (m *Manager) ClearApp(appName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys, ok := m.byApp[appName]
	if !ok {
		return 0
	}

	count := 0
	for key := range keys {
		e, ok := m.entries[key]
		if !ok {
			m.logger.Error(context.Background(), "cache index referenced missing entry",
				observe.Field{Key: "key", Value: key},
				observe.Field{Key: "app_name", Value: appName})
			continue
		}
		m.removeLocked(key, e)
		count++
	}
	delete(m.byApp, appName)

	return count
}

// ClearAll drops every query entry and both indexes. The schema cache is
// untouched: schemas are permanent for the process lifetime.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := len(m.entries)
	m.entries = make(map[string]*entry)
	m.byUser = make(map[string]map[string]struct{})
	m.byApp = make(map[string]map[string]struct{})
	return count
}

// SetDefaultTTL changes the default TTL applied when requests do not supply
// one. Existing entries keep their original TTL.
func (m *Manager) SetDefaultTTL(ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy.DefaultTTL = ttl
}

// DefaultTTL reports the current default TTL.
func (m *Manager) DefaultTTL() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.policy.DefaultTTL
}

// GetSchema returns the cached schema for a model, calling load on a miss.
// Loaded schemas are cached permanently. Concurrent misses for the same
// model share one loader call.
func (m *Manager) GetSchema(ctx context.Context, model string, load SchemaLoader) (any, error) {
	m.mu.Lock()
	if schema, ok := m.schemas[model]; ok {
		m.stats.Schema.Hits++
		m.mu.Unlock()
		return schema, nil
	}
	m.stats.Schema.Misses++
	m.mu.Unlock()

	if load == nil {
		return nil, ErrNoLoader
	}

	schema, err, _ := m.loadGroup.Do(model, func() (any, error) {
		loaded, err := load(ctx, model)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.schemas[model] = loaded
		m.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return schema, nil
}

// Stats returns a snapshot of cache counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len reports the number of live query entries.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// removeLocked deletes an entry and its two index memberships. Empty index
// buckets are dropped immediately. Caller holds m.mu.
func (m *Manager) removeLocked(key string, e *entry) {
	delete(m.entries, key)

	if bucket, ok := m.byUser[e.userID]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(m.byUser, e.userID)
		}
	}
	if bucket, ok := m.byApp[e.appName]; ok {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(m.byApp, e.appName)
		}
	}
}
