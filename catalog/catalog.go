package catalog

import "context"

// Operation names a data operation a model supports.
type Operation string

// Standard operations.
const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Model describes one discoverable entity.
type Model struct {
	// Name is the model identifier clients use in requests.
	Name string `json:"name"`

	// Operations lists the data operations the model supports.
	Operations []Operation `json:"operations"`

	// Schema is the model's field-level definition. May be nil when the
	// catalog exposes names only.
	Schema map[string]any `json:"schema,omitempty"`
}

// Catalog lists queryable models and describes their schemas.
//
// Contract:
//   - ListModels returns every discoverable model; order is unspecified.
//   - Describe returns the named model's schema, or ErrModelNotFound.
//   - Both calls are read-only and safe for concurrent use.
//   - Implementations should honor ctx cancellation on remote lookups.
type Catalog interface {
	ListModels(ctx context.Context) ([]Model, error)
	Describe(ctx context.Context, model string) (map[string]any, error)
}
