package catalog

import "context"

// Static is an in-memory Catalog backed by a fixed model list.
type Static struct {
	models []Model
	byName map[string]*Model
}

var _ Catalog = (*Static)(nil)

// NewStatic builds a Static catalog from the given models. Later entries
// with a duplicate name shadow earlier ones in Describe.
func NewStatic(models ...Model) *Static {
	s := &Static{
		models: make([]Model, len(models)),
		byName: make(map[string]*Model, len(models)),
	}
	copy(s.models, models)
	for i := range s.models {
		s.byName[s.models[i].Name] = &s.models[i]
	}
	return s
}

// ListModels returns a copy of the model list.
func (s *Static) ListModels(_ context.Context) ([]Model, error) {
	out := make([]Model, len(s.models))
	copy(out, s.models)
	return out, nil
}

// Describe returns the named model's schema.
func (s *Static) Describe(_ context.Context, model string) (map[string]any, error) {
	m, ok := s.byName[model]
	if !ok {
		return nil, ErrModelNotFound
	}
	return m.Schema, nil
}
