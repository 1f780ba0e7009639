package catalog

import (
	"context"
	"errors"
	"testing"
)

func TestStaticListModels(t *testing.T) {
	s := NewStatic(
		Model{Name: "users", Operations: []Operation{OpRead, OpCreate}},
		Model{Name: "orders", Operations: []Operation{OpRead}},
	)

	models, err := s.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("ListModels() returned %d models, want 2", len(models))
	}

	// Mutating the returned slice must not affect the catalog.
	models[0].Name = "mutated"
	again, _ := s.ListModels(context.Background())
	if again[0].Name == "mutated" {
		t.Error("ListModels() returned internal slice, want copy")
	}
}

func TestStaticDescribe(t *testing.T) {
	schema := map[string]any{"id": "int", "email": "string"}
	s := NewStatic(Model{Name: "users", Operations: []Operation{OpRead}, Schema: schema})

	got, err := s.Describe(context.Background(), "users")
	if err != nil {
		t.Fatalf("Describe(users) error = %v", err)
	}
	if got["email"] != "string" {
		t.Errorf("Describe(users)[email] = %v, want string", got["email"])
	}

	if _, err := s.Describe(context.Background(), "missing"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Describe(missing) error = %v, want ErrModelNotFound", err)
	}
}
