package artifact

import "testing"

func TestNewComputesStableHash(t *testing.T) {
	a := New("hello", "openai", "gpt-4o")
	b := New("hello", "openai", "gpt-4o")
	if a.Hash != b.Hash {
		t.Fatalf("expected identical hash for identical content, got %s and %s", a.Hash, b.Hash)
	}
	if a.ID == b.ID {
		t.Fatalf("expected unique ids")
	}
	c := New("hello", "anthropic", "gpt-4o")
	if a.Hash == c.Hash {
		t.Fatalf("expected hash to depend on adapter")
	}
}

func TestForBackendDoesNotMutateOriginal(t *testing.T) {
	a := New("hello", "openai", "gpt-4o")
	b := a.ForBackend("gpt4o-primary")
	if a.Backend != "" {
		t.Fatalf("original mutated: %q", a.Backend)
	}
	if b.Backend != "gpt4o-primary" || b.Hash != a.Hash {
		t.Fatalf("unexpected copy: %+v", b)
	}
}

func TestWithMetadataCopies(t *testing.T) {
	a := New("hello", "openai", "gpt-4o")
	b := a.WithMetadata("cache", "hit")
	if _, ok := a.Metadata["cache"]; ok {
		t.Fatalf("original metadata mutated")
	}
	if b.Metadata["cache"] != "hit" {
		t.Fatalf("metadata not set")
	}
}
