package bridge

import (
	"context"

	"github.com/jonwraymond/uibridge/auth"
	"github.com/jonwraymond/uibridge/cache"
	"github.com/jonwraymond/uibridge/catalog"
	"github.com/jonwraymond/uibridge/observe"
)

// InfoManager builds the connection_info hello payload and answers
// discovery and introspection requests. It is read-only: nothing here may
// mutate cache or registry state.
type InfoManager struct {
	version string
	feats   []string
	cache   *cache.Manager
	catalog catalog.Catalog
	logger  observe.Logger
}

// NewInfoManager creates an InfoManager. The catalog may be nil; model
// discovery is then omitted from hello payloads.
func NewInfoManager(version string, features []string, cm *cache.Manager, cat catalog.Catalog, logger observe.Logger) *InfoManager {
	if logger == nil {
		logger = observe.NewNopLogger()
	}
	return &InfoManager{
		version: version,
		feats:   features,
		cache:   cm,
		catalog: cat,
		logger:  logger,
	}
}

// BuildHello assembles the hello payload for a freshly accepted
// connection. Model discovery is best-effort: a missing or failing catalog
// drops the available_models field, it never fails the handshake.
func (im *InfoManager) BuildHello(ctx context.Context, id *auth.Identity) map[string]any {
	data := map[string]any{
		"server_version": im.version,
		"features":       im.feats,
		"cache_stats":    im.cache.Stats(),
		"session": map[string]any{
			"user_id":   id.UserID,
			"app_name":  id.AppName,
			"role":      id.Role,
			"auth_kind": string(id.Kind),
		},
	}

	if im.catalog != nil {
		models, err := im.catalog.ListModels(ctx)
		if err != nil {
			im.logger.Debug(ctx, "model discovery unavailable",
				observe.Field{Key: "error", Value: err.Error()})
		} else {
			data["available_models"] = models
		}
	}

	return data
}

// Introspect returns the schema for one model, or the full catalog when
// model is empty.
func (im *InfoManager) Introspect(ctx context.Context, model string) (any, error) {
	if im.catalog == nil {
		return nil, catalog.ErrModelNotFound
	}
	if model == "" {
		return im.catalog.ListModels(ctx)
	}
	return im.catalog.Describe(ctx, model)
}

// SchemaLoader adapts the catalog into the cache's schema loader. Returns
// nil when no catalog is configured.
func (im *InfoManager) SchemaLoader() cache.SchemaLoader {
	if im.catalog == nil {
		return nil
	}
	return func(ctx context.Context, model string) (any, error) {
		return im.catalog.Describe(ctx, model)
	}
}
